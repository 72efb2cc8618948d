// Package server implements the ssfs HTTPS static file server.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"ssfs/internal/certs"
	"ssfs/internal/config"
)

// Server serves the files under a root directory over HTTPS. TLS is
// terminated with the material given to New; no client certificate is
// requested.
type Server struct {
	config    config.Config
	root      string
	tlsConfig *tls.Config
	handler   http.Handler
	logger    *slog.Logger
}

// New creates a Server for cfg. It fails if the TLS material is unusable or
// the root is not a readable directory.
func New(cfg config.Config, material *certs.Material, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tlsConfig, err := certs.ServerConfig(material)
	if err != nil {
		return nil, fmt.Errorf("build TLS config: %w", err)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", cfg.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	s := &Server{
		config:    cfg,
		root:      root,
		tlsConfig: tlsConfig,
		logger:    logger,
	}
	if s.handler, err = s.buildHandler(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the request handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Root returns the absolute directory being served.
func (s *Server) Root() string {
	return s.root
}

// Run binds the configured address and serves HTTPS until ctx is cancelled
// or the process receives SIGINT or SIGTERM. A bind failure is returned
// before anything is served.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		TLSConfig:         s.tlsConfig.Clone(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
		ln.Close()
		return fmt.Errorf("configure HTTP/2: %w", err)
	}

	s.logger.Info("starting server",
		"url", "https://"+addr,
		"root", s.root,
		"workers", runtime.GOMAXPROCS(0),
	)

	return s.listenAndShutdown(ctx, srv, func() error {
		// TLSConfig is pre-configured on the server, so pass empty strings.
		return srv.ServeTLS(ln, "", "")
	})
}

// listenAndShutdown runs serveFn and shuts srv down gracefully on context
// cancellation or OS signal.
func (s *Server) listenAndShutdown(ctx context.Context, srv *http.Server, serveFn func() error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := serveFn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		s.logger.Info("shutdown complete")
	}

	return nil
}
