// cmd/hmi/types.go
//
// types – initialize extensions and list the value types they announced.
//
// The command never touches the log directory: it logs to the console at
// the configured level and prints a table on stdout.
package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yanizio/hmi/extensions/hmi"
	"github.com/yanizio/hmi/internal/config"
	"github.com/yanizio/hmi/internal/logger"
	"github.com/yanizio/hmi/internal/metatype"
)

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List value types announced by extensions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.Console(cfg.Log.Level)
			defer func() { _ = log.Sync() }()

			if _, err := hmi.NewInitializer(); err != nil {
				log.Errorw("extension initialization failed", "err", err)
				return fmt.Errorf("initialize hmi extension: %w", err)
			}
			log.Debugw("extensions initialized", "types", metatype.Default().Count())

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tGO TYPE")
			for _, e := range metatype.Default().Entries() {
				fmt.Fprintf(tw, "%s\t%s.%s\n", e.Name, e.Type.PkgPath(), e.Type.Name())
			}
			return tw.Flush()
		},
	}
}
