// Package assets holds the self-signed certificate and private key compiled
// into the ssfs binary.
package assets

import (
	"bytes"
	_ "embed"
)

//go:generate go run ../../cmd/ssfs-gencert -out .

//go:embed cert.pem
var certPEM []byte

//go:embed key.pem
var keyPEM []byte

// Cert returns the embedded PEM certificate chain.
func Cert() []byte {
	return bytes.Clone(certPEM)
}

// Key returns the embedded PEM private key.
func Key() []byte {
	return bytes.Clone(keyPEM)
}
