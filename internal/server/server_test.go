package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ssfs/internal/certs"
	"ssfs/internal/config"
)

// pickPort finds a free TCP port for testing.
func pickPort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pick port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return uint16(port)
}

// testMaterial generates a certificate for localhost/127.0.0.1 and returns
// the loaded material and a client pool trusting it.
func testMaterial(t *testing.T) (*certs.Material, *x509.CertPool) {
	t.Helper()
	certPEM, keyPEM, err := certs.GenerateSelfSigned([]string{"localhost", "127.0.0.1"}, certs.KeyEC, time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSigned: %v", err)
	}
	m, err := certs.Load(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		t.Fatal("AppendCertsFromPEM failed")
	}
	return m, pool
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRoot creates a directory tree to serve:
//
//	hello.txt
//	sub/notes.md
func testRoot(t *testing.T) (string, time.Time) {
	t.Helper()
	dir := t.TempDir()
	modTime := time.Date(2023, 4, 9, 15, 35, 25, 0, time.UTC)

	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello, world\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(filepath.Join(dir, "hello.txt"), modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "notes.md"), []byte("# notes\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir, modTime
}

func testConfig(root string, port uint16) config.Config {
	cfg := config.Default()
	cfg.IP = "127.0.0.1"
	cfg.Port = port
	cfg.Root = root
	return cfg
}

func tlsClient(pool *x509.CertPool) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    pool,
				ServerName: "localhost",
			},
			ForceAttemptHTTP2: true,
		},
		Timeout: 5 * time.Second,
	}
}

// TestServer_ServesFilesOverHTTPS starts a real listener and fetches a file
// and a directory listing through TLS.
func TestServer_ServesFilesOverHTTPS(t *testing.T) {
	root, modTime := testRoot(t)
	material, pool := testMaterial(t)
	port := pickPort(t)

	srv, err := New(testConfig(root, port), material, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	client := tlsClient(pool)
	base := "https://127.0.0.1:" + strconv.Itoa(int(port))
	waitForHTTPS(t, base+"/", client)

	resp, err := client.Get(base + "/hello.txt")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "hello, world\n" {
		t.Errorf("body = %q", body)
	}
	if got, want := resp.Header.Get("Last-Modified"), modTime.Format(http.TimeFormat); got != want {
		t.Errorf("Last-Modified = %q, want %q", got, want)
	}
	if resp.Proto != "HTTP/2.0" {
		t.Errorf("proto = %s, want HTTP/2.0", resp.Proto)
	}
	if resp.TLS == nil || len(resp.TLS.PeerCertificates) == 0 {
		t.Fatal("response has no TLS peer certificates")
	}

	resp, err = client.Get(base + "/sub/")
	if err != nil {
		t.Fatalf("GET dir: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("dir status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "notes.md") {
		t.Errorf("directory listing does not mention notes.md: %q", body)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("server error: %v", err)
	}
}

// TestServer_BindFailure verifies that Run reports an address that is
// already in use instead of serving.
func TestServer_BindFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	root, _ := testRoot(t)
	material, _ := testMaterial(t)
	srv, err := New(testConfig(root, uint16(l.Addr().(*net.TCPAddr).Port)), material, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = srv.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bind") {
		t.Fatalf("Run error = %v, want bind error", err)
	}
}

func TestNew_Errors(t *testing.T) {
	root, _ := testRoot(t)
	material, _ := testMaterial(t)

	if _, err := New(testConfig(root, 0), nil, discardLogger()); err == nil {
		t.Error("New should fail without TLS material")
	}

	file := filepath.Join(root, "hello.txt")
	if _, err := New(testConfig(file, 0), material, discardLogger()); err == nil {
		t.Error("New should fail when root is a file")
	}

	if _, err := New(testConfig(filepath.Join(root, "missing"), 0), material, discardLogger()); err == nil {
		t.Error("New should fail when root does not exist")
	}

	cfg := testConfig(root, 0)
	cfg.Auth = config.AuthConfig{Username: "alice", PasswordHash: "plaintext"}
	if _, err := New(cfg, material, discardLogger()); err == nil {
		t.Error("New should fail with a malformed password hash")
	}
}

func TestNew_RelativeRoot(t *testing.T) {
	material, _ := testMaterial(t)
	srv, err := New(testConfig(".", 0), material, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wd, _ := os.Getwd()
	if srv.Root() != wd {
		t.Errorf("Root() = %q, want %q", srv.Root(), wd)
	}
}

// --- Helpers ---

func waitForHTTPS(t *testing.T, url string, client *http.Client) {
	t.Helper()
	for i := 0; i < 50; i++ {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("HTTPS server at %s did not become ready", url)
}
