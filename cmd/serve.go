package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	providerfactory "islamai-relay/internal/provider/factory"
	"islamai-relay/internal/router"
	"islamai-relay/internal/server"
	"islamai-relay/internal/settings"
)

const serveUsage = `Usage:
  islamai-relay serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (defaults are used when absent)
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	store, err := settings.Open(ctx, cfg.Settings)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing settings store", "error", err)
		}
	}()
	slog.Info("settings store ready", "backend", cfg.Settings.Backend)

	registry, adapters, err := providerfactory.Build(cfg)
	if err != nil {
		return err
	}

	rt := router.New(store, registry, adapters)

	srv, err := server.New(cfg, rt, store, registry)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
