package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"islamai-relay/internal/config"
)

const usage = `islamai-relay serves the IslamAI chat frontend and relays questions to Gemini or DeepSeek.

Usage:
  islamai-relay <command> [flags]

Commands:
  serve    Start the HTTP server
  keys     Read or store provider API keys
  models   List model aliases and the active model

Flags:
  -h, --help  Show this help message`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return printUsage(out)
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "keys":
		return keys(ctx, args[1:], out)
	case "models":
		return listModels(ctx, args[1:], out)
	case "help", "-h", "--help":
		return printUsage(out)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printUsage(out io.Writer) error {
	fmt.Fprintln(out, strings.TrimSpace(usage))
	return nil
}

// loadConfig reads .env, then the YAML file, and installs the slog handler.
func loadConfig(path string) (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}
