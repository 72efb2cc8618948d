package assets

import (
	"testing"

	"ssfs/internal/certs"
)

func TestEmbeddedMaterialLoads(t *testing.T) {
	m, err := certs.Load(Cert(), Key())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Chain) == 0 {
		t.Fatal("empty certificate chain")
	}
	if _, err := certs.ServerConfig(m); err != nil {
		t.Fatalf("ServerConfig: %v", err)
	}

	leaf, err := m.Leaf()
	if err != nil {
		t.Fatalf("Leaf: %v", err)
	}
	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("embedded certificate does not cover localhost: %v", err)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := Cert()
	c[0] = 'X'
	if Cert()[0] == 'X' {
		t.Error("Cert() exposes the embedded slice")
	}
}
