package status

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const DefaultAddress = "localhost:50061"

const (
	EnvAddress = "CPPLIVE_ADDRESS"
	EnvTLSKey  = "CPPLIVE_TLS_KEY"
	EnvTLSCert = "CPPLIVE_TLS_CERT"
	EnvCACert  = "CPPLIVE_CA_TLS_CERT"
)

// Endpoint is where the status server listens and how it is secured.
type Endpoint struct {
	Address string
	// KeyPEM, CertPEM and CAPEM are all set for mTLS or all empty for
	// plain TCP.
	KeyPEM  string
	CertPEM string
	CAPEM   string
}

// EndpointFromEnv reads the CPPLIVE_* variables. address, when not empty,
// overrides CPPLIVE_ADDRESS.
func EndpointFromEnv(address string) (Endpoint, error) {
	e := Endpoint{
		Address: strings.TrimSpace(address),
		KeyPEM:  strings.TrimSpace(os.Getenv(EnvTLSKey)),
		CertPEM: strings.TrimSpace(os.Getenv(EnvTLSCert)),
		CAPEM:   strings.TrimSpace(os.Getenv(EnvCACert)),
	}
	if e.Address == "" {
		e.Address = strings.TrimSpace(os.Getenv(EnvAddress))
	}
	if e.Address == "" {
		e.Address = DefaultAddress
	}

	set := 0
	for _, v := range []string{e.KeyPEM, e.CertPEM, e.CAPEM} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return e, fmt.Errorf("incomplete TLS environment; require all of %s, %s, %s or none", EnvTLSKey, EnvTLSCert, EnvCACert)
	}
	return e, nil
}

// Secure reports whether the endpoint uses mTLS.
func (e Endpoint) Secure() bool {
	return e.KeyPEM != ""
}

func (e Endpoint) keyPairAndPool() (tls.Certificate, *x509.CertPool, error) {
	cert, err := tls.X509KeyPair([]byte(e.CertPEM), []byte(e.KeyPEM))
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("failed to load key pair: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(e.CAPEM)) {
		return tls.Certificate{}, nil, fmt.Errorf("failed to append CA certificate to pool")
	}
	return cert, pool, nil
}

// ServerCredentials requires and verifies client certificates when the
// endpoint is secure.
func (e Endpoint) ServerCredentials() (credentials.TransportCredentials, error) {
	if !e.Secure() {
		return insecure.NewCredentials(), nil
	}
	cert, pool, err := e.keyPairAndPool()
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

// ClientCredentials presents the endpoint's certificate when secure.
func (e Endpoint) ClientCredentials() (credentials.TransportCredentials, error) {
	if !e.Secure() {
		return insecure.NewCredentials(), nil
	}
	cert, pool, err := e.keyPairAndPool()
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}), nil
}
