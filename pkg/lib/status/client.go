package status

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcstatus "google.golang.org/grpc/status"
)

// Dial connects to the status endpoint.
func Dial(e Endpoint) (*grpc.ClientConn, error) {
	creds, err := e.ClientCredentials()
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(e.Address, grpc.WithTransportCredentials(creds))
}

// Running asks whether a run is live.
func Running(ctx context.Context, conn *grpc.ClientConn) (bool, error) {
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		if grpcCode(err) == codes.NotFound {
			return false, fmt.Errorf("%s is not served at this address", ServiceName)
		}
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func grpcCode(err error) codes.Code {
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}
