package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"islamai-relay/internal/models"
	"islamai-relay/internal/settings"
)

const keysUsage = `Usage:
  islamai-relay keys get [--config <path>] <provider>
  islamai-relay keys set [--config <path>] <provider> <key>

Providers: gemini, deepseek`

func keys(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(keysUsage)
	}
	action := args[0]

	fs := flag.NewFlagSet("keys "+action, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, keysUsage)
	}
	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse keys flags: %w", err)
	}
	rest := fs.Args()

	var want int
	switch action {
	case "get":
		want = 1
	case "set":
		want = 2
	default:
		return fmt.Errorf("unknown keys action %q\n\n%s", action, keysUsage)
	}
	if len(rest) != want {
		return errors.New(keysUsage)
	}

	p, ok := models.ParseProvider(rest[0])
	if !ok {
		return settings.ErrUnknownProvider
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	store, err := settings.Open(ctx, cfg.Settings)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	if action == "set" {
		if rest[1] == "" {
			return errors.New("key must not be empty")
		}
		if err := store.SetKey(ctx, p, rest[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s API key updated successfully\n", p)
		return nil
	}

	key, err := store.GetKey(ctx, p)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%s API key not configured", p)
	}
	fmt.Fprintln(out, key)
	return nil
}
