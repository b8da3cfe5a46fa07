package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	providerfactory "islamai-relay/internal/provider/factory"
	"islamai-relay/internal/settings"
)

func listModels(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse models flags: %w", err)
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	registry, _, err := providerfactory.Build(cfg)
	if err != nil {
		return err
	}
	store, err := settings.Open(ctx, cfg.Settings)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	active, err := store.ActiveModel(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ALIAS\tPROVIDER\tMODEL\tSTYLE\tACTIVE")
	for _, entry := range registry.Entries() {
		mark := ""
		if entry.Alias == active {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", entry.Alias, entry.Provider, entry.ProviderModelID, entry.Style, mark)
	}
	return tw.Flush()
}
