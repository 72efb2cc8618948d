package certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// DefaultValidity is the lifetime of certificates made by GenerateSelfSigned
// when no validity is given. The embedded pair is a development asset, so it
// is long-lived.
const DefaultValidity = 10 * 365 * 24 * time.Hour

// DefaultHosts are the names a generated certificate covers by default.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// GenerateSelfSigned creates a self-signed server certificate for hosts and
// returns it PEM-encoded together with its private key, encoded as kind.
// Hosts that parse as IP addresses become IP SANs, the rest DNS SANs.
func GenerateSelfSigned(hosts []string, kind KeyKind, validity time.Duration) (certPEM, keyPEM []byte, err error) {
	if len(hosts) == 0 {
		return nil, nil, fmt.Errorf("at least one host is required")
	}
	if validity <= 0 {
		validity = DefaultValidity
	}

	signer, keyBlock, err := generateKey(kind)
	if err != nil {
		return nil, nil, err
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"ssfs"},
			CommonName:   hosts[0],
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if kind == KeyRSA {
		template.KeyUsage |= x509.KeyUsageKeyEncipherment
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: blockCertificate, Bytes: der})
	keyPEM = pem.EncodeToMemory(keyBlock)
	return certPEM, keyPEM, nil
}

func generateKey(kind KeyKind) (crypto.Signer, *pem.Block, error) {
	switch kind {
	case KeyRSA:
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, nil, fmt.Errorf("generate RSA key: %w", err)
		}
		return k, &pem.Block{Type: blockRSAKey, Bytes: x509.MarshalPKCS1PrivateKey(k)}, nil

	case KeyPKCS8:
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("generate ECDSA key: %w", err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal key: %w", err)
		}
		return k, &pem.Block{Type: blockPKCS8Key, Bytes: der}, nil

	case KeyEC:
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("generate ECDSA key: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal key: %w", err)
		}
		return k, &pem.Block{Type: blockECKey, Bytes: der}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, kind)
	}
}

// randomSerial generates a random 128-bit serial number.
func randomSerial() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, max)
}

// ParseKeyKind maps "rsa", "pkcs8" or "ec" to a KeyKind.
func ParseKeyKind(s string) (KeyKind, error) {
	for _, k := range []KeyKind{KeyRSA, KeyPKCS8, KeyEC} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedKey, s)
}
