// ssfs-gencert writes a fresh self-signed certificate and private key for
// embedding into ssfs. It is run by go generate in internal/assets.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ssfs/internal/certs"
)

func main() {
	var (
		outDir   = flag.String("out", ".", "directory to write cert.pem and key.pem to")
		hosts    = flag.String("hosts", strings.Join(certs.DefaultHosts, ","), "comma-separated DNS names and IP addresses")
		keyType  = flag.String("key", "pkcs8", "private key encoding: rsa, pkcs8 or ec")
		validity = flag.Duration("validity", certs.DefaultValidity, "certificate validity")
	)
	flag.Parse()

	if err := run(*outDir, splitHosts(*hosts), *keyType, *validity); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(outDir string, hosts []string, keyType string, validity time.Duration) error {
	kind, err := certs.ParseKeyKind(keyType)
	if err != nil {
		return err
	}
	certPEM, keyPEM, err := certs.GenerateSelfSigned(hosts, kind, validity)
	if err != nil {
		return err
	}

	// Round-trip through the loader so a broken pair is never written.
	m, err := certs.Load(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("verify generated material: %w", err)
	}
	if _, err := m.TLSCertificate(); err != nil {
		return fmt.Errorf("verify generated material: %w", err)
	}

	if err := os.WriteFile(filepath.Join(outDir, "cert.pem"), certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "key.pem"), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

// splitHosts splits a comma-separated host list, trimming whitespace.
func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
