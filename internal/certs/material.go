// Package certs decodes the PEM certificate chain and private key that ssfs
// terminates TLS with, and builds the server-side TLS configuration from
// them. It has no HTTP concerns.
package certs

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// PEM block types recognised by the loader.
const (
	blockCertificate = "CERTIFICATE"
	blockRSAKey      = "RSA PRIVATE KEY"
	blockPKCS8Key    = "PRIVATE KEY"
	blockECKey       = "EC PRIVATE KEY"
)

var (
	// ErrNoCertificates is returned when the certificate PEM holds no
	// CERTIFICATE block.
	ErrNoCertificates = errors.New("no certificates found")

	// ErrNoPrivateKey is returned when the key PEM holds no recognised item.
	ErrNoPrivateKey = errors.New("no private key found")

	// ErrUnsupportedKey is returned when the first recognised PEM item is
	// not one of the supported private key encodings.
	ErrUnsupportedKey = errors.New("unsupported private key type")
)

// KeyKind identifies the encoding of a private key.
type KeyKind int

const (
	// KeyRSA is a PKCS #1 "RSA PRIVATE KEY".
	KeyRSA KeyKind = iota + 1

	// KeyPKCS8 is a PKCS #8 "PRIVATE KEY" wrapping any algorithm.
	KeyPKCS8

	// KeyEC is a SEC 1 "EC PRIVATE KEY".
	KeyEC
)

// String returns the PEM-ish name for the kind.
func (k KeyKind) String() string {
	switch k {
	case KeyRSA:
		return "rsa"
	case KeyPKCS8:
		return "pkcs8"
	case KeyEC:
		return "ec"
	default:
		return "unknown"
	}
}

// PrivateKey is a decoded private key together with the encoding it came in.
type PrivateKey struct {
	Kind   KeyKind
	DER    []byte
	Signer crypto.Signer
}

// Material holds the TLS certificate chain and its private key. The chain
// is leaf first, in the order it appeared in the PEM input.
type Material struct {
	Chain [][]byte
	Key   PrivateKey
}

// Load decodes a PEM certificate chain and a PEM private key.
func Load(certPEM, keyPEM []byte) (*Material, error) {
	chain, err := ParseCertificates(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parse certificates: %w", err)
	}
	key, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Material{Chain: chain, Key: key}, nil
}

// ParseCertificates returns the DER bytes of every CERTIFICATE block in
// data. Other block types are ignored. Each certificate must parse, and
// anything but whitespace left after the last block is an error.
func ParseCertificates(data []byte) ([][]byte, error) {
	var chain [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			if len(bytes.TrimSpace(data)) > 0 {
				return nil, fmt.Errorf("malformed PEM data after certificate %d", len(chain))
			}
			break
		}
		if block.Type != blockCertificate {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return nil, fmt.Errorf("certificate %d: %w", len(chain), err)
		}
		chain = append(chain, block.Bytes)
	}
	if len(chain) == 0 {
		return nil, ErrNoCertificates
	}
	return chain, nil
}

// ParsePrivateKey decodes the first recognised PEM item in data. Unknown
// sections (for example "EC PARAMETERS") are skipped. If that item is a
// certificate instead of a key, or no item is found, an error is returned.
func ParsePrivateKey(data []byte) (PrivateKey, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return PrivateKey{}, ErrNoPrivateKey
		}

		switch block.Type {
		case blockRSAKey:
			k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return PrivateKey{}, fmt.Errorf("parse RSA key: %w", err)
			}
			return PrivateKey{Kind: KeyRSA, DER: block.Bytes, Signer: k}, nil

		case blockPKCS8Key:
			k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return PrivateKey{}, fmt.Errorf("parse PKCS8 key: %w", err)
			}
			signer, ok := k.(crypto.Signer)
			if !ok {
				return PrivateKey{}, fmt.Errorf("%w: PKCS8 %T", ErrUnsupportedKey, k)
			}
			return PrivateKey{Kind: KeyPKCS8, DER: block.Bytes, Signer: signer}, nil

		case blockECKey:
			k, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return PrivateKey{}, fmt.Errorf("parse EC key: %w", err)
			}
			return PrivateKey{Kind: KeyEC, DER: block.Bytes, Signer: k}, nil

		case blockCertificate:
			return PrivateKey{}, fmt.Errorf("%w: found %s", ErrUnsupportedKey, block.Type)

		default:
			if isKeyBlock(block.Type) {
				return PrivateKey{}, fmt.Errorf("%w: %s", ErrUnsupportedKey, block.Type)
			}
		}
	}
}

// isKeyBlock reports whether a PEM type names a private key we do not decode,
// such as "DSA PRIVATE KEY" or "ENCRYPTED PRIVATE KEY".
func isKeyBlock(typ string) bool {
	return strings.HasSuffix(typ, "PRIVATE KEY")
}

// Leaf returns the parsed leaf (first) certificate of the chain.
func (m *Material) Leaf() (*x509.Certificate, error) {
	if len(m.Chain) == 0 {
		return nil, ErrNoCertificates
	}
	return x509.ParseCertificate(m.Chain[0])
}

// TLSCertificate assembles a tls.Certificate, checking that the private key
// belongs to the leaf certificate.
func (m *Material) TLSCertificate() (tls.Certificate, error) {
	leaf, err := m.Leaf()
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := validateKeyMatchesCert(m.Key.Signer, leaf); err != nil {
		return tls.Certificate{}, fmt.Errorf("bad certificate/key: %w", err)
	}
	return tls.Certificate{
		Certificate: m.Chain,
		PrivateKey:  m.Key.Signer,
		Leaf:        leaf,
	}, nil
}

type publicKeyEqualer interface {
	Equal(crypto.PublicKey) bool
}

func validateKeyMatchesCert(key crypto.Signer, cert *x509.Certificate) error {
	if key == nil {
		return ErrNoPrivateKey
	}
	switch cert.PublicKey.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
	default:
		return fmt.Errorf("certificate public key type %T is not supported", cert.PublicKey)
	}
	pub, ok := key.Public().(publicKeyEqualer)
	if !ok || !pub.Equal(cert.PublicKey) {
		return errors.New("private key does not match certificate public key")
	}
	return nil
}
