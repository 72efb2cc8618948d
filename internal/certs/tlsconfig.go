package certs

import (
	"crypto/tls"
	"fmt"
)

// ServerConfig builds the TLS configuration used to terminate client
// connections. Cipher suites and curve preferences are left nil so that
// crypto/tls picks its safe defaults. No client certificate is requested.
func ServerConfig(m *Material) (*tls.Config, error) {
	if m == nil {
		return nil, fmt.Errorf("TLS material is required")
	}
	cert, err := m.TLSCertificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.NoClientCert,
	}, nil
}
