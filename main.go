// ssfs serves the current working directory over HTTPS using a self-signed
// certificate compiled into the binary.
//
// Usage:
//
//	ssfs [--ip <address>] [--port <port>]
//
// The server listens on 0.0.0.0:8443 by default.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"ssfs/internal/assets"
	"ssfs/internal/certs"
	"ssfs/internal/config"
	"ssfs/internal/server"
	"ssfs/internal/version"
)

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, config.ErrVersion):
		fmt.Println(version.String())
		os.Exit(0)
	case err != nil:
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	material, err := certs.Load(assets.Cert(), assets.Key())
	if err != nil {
		return fmt.Errorf("load embedded TLS material: %w", err)
	}
	logger.Debug("loaded embedded TLS material",
		"certificates", len(material.Chain),
		"key", material.Key.Kind.String(),
	)

	srv, err := server.New(cfg, material, logger)
	if err != nil {
		return err
	}
	logger.Info("ssfs starting", "version", version.Version)
	return srv.Run(context.Background())
}
