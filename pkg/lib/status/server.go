// Package status serves the run state of a workspace over the gRPC health
// protocol, so any health-checking client can tell whether a run is live.
package status

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/peer"

	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib"
	"github.com/segfault-survivor/vscode-cpp-live/pkg/lib/logging"
)

// ServiceName is SERVING while a run is live.
const ServiceName = "cpplive.Runner"

// stopGrace is how long Stop lets in-flight calls finish. Health Watch
// streams never finish on their own, so they are cut after it.
const stopGrace = 2 * time.Second

var logger = logging.For("status")

// Server is the gRPC status endpoint.
type Server struct {
	lis    net.Listener
	s      *grpc.Server
	health *health.Server
}

// NewServer listens on the endpoint's address. The runner service starts
// NOT_SERVING.
func NewServer(e Endpoint) (*Server, error) {
	creds, err := e.ServerCredentials()
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", e.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	s := grpc.NewServer(grpc.Creds(creds), grpc.UnaryInterceptor(logPeerUnary))
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return &Server{lis: lis, s: s, health: hs}, nil
}

// Report publishes state. It is cheap and non-blocking, so it can be used
// as a coordinator state listener.
func (srv *Server) Report(state lib.RunState) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if state == lib.RunStateRunning {
		st = healthpb.HealthCheckResponse_SERVING
	}
	srv.health.SetServingStatus(ServiceName, st)
}

// Serve blocks serving requests until Stop.
func (srv *Server) Serve() error {
	return srv.s.Serve(srv.lis)
}

// Addr returns the address the server is bound to.
func (srv *Server) Addr() net.Addr { return srv.lis.Addr() }

// Stop marks everything NOT_SERVING, stops gracefully and closes whatever
// is still open after a short grace period.
func (srv *Server) Stop() {
	srv.health.Shutdown()

	done := make(chan struct{})
	go func() {
		srv.s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		logger.Debug("grace period over, closing open streams")
		srv.s.Stop()
		<-done
	}
}

func logPeerUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	logger.Debugf("%s from %s", info.FullMethod, peerIdentity(ctx))
	return handler(ctx, req)
}

// peerIdentity names the caller: the SPIFFE trust domain of its client
// certificate, else its network address.
func peerIdentity(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return "unknown"
	}

	if ti, ok := p.AuthInfo.(credentials.TLSInfo); ok && len(ti.State.PeerCertificates) > 0 {
		leaf := ti.State.PeerCertificates[0]
		for _, uri := range leaf.URIs {
			if uri != nil && uri.Scheme == "spiffe" {
				return "spiffe://" + uri.Host
			}
		}
		if leaf.Subject.CommonName != "" {
			return leaf.Subject.CommonName
		}
	}
	if p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
