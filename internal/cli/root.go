// Package cli is the pageloader command line: one-shot sync, page display,
// store inspection and the local reader.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagecache/internal/config"
)

// RootOptions holds global flags and the settings every command starts from.
type RootOptions struct {
	Config    config.Config
	Log       *slog.Logger
	Level     *slog.LevelVar
	Ephemeral bool
	StorePath string
	Verbose   bool
	Format    string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. level may be nil; when set,
// --verbose lowers it to debug.
func NewRootCommand(cfg config.Config, log *slog.Logger, level *slog.LevelVar) *cobra.Command {
	opts := &RootOptions{Config: cfg, Log: log, Level: level}

	cmd := &cobra.Command{
		Use:   "pageloader",
		Short: "Cache-first page loader",
		Long: `pageloader mirrors a remote site of localized pages into a local
content-addressed store and displays them from the cache first.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Ephemeral {
				opts.Config.StoreBackend = config.BackendMemory
			}
			if opts.StorePath != "" {
				opts.Config.StorePath = opts.StorePath
			}
			if opts.Verbose && opts.Level != nil {
				opts.Level.Set(slog.LevelDebug)
			}
			if err := opts.Config.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.Ephemeral, "ephemeral", false, "keep the cache in memory only")
	cmd.PersistentFlags().StringVar(&opts.StorePath, "db", "", "path to the SQLite cache (overrides STORE_PATH)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))

	return cmd
}
