// Package cli holds the taskapi commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"taskapi/internal/config"
	"taskapi/internal/kv"
	"taskapi/internal/logger"
)

const serviceName = "taskapi"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the configuration loaded before any
// subcommand runs.
type RootOptions struct {
	Format  string
	EnvFile string

	Config config.Config

	// OpenStore overrides how the key-value backend is opened (for testing).
	OpenStore func(ctx context.Context, cfg config.Config) (kv.Store, error)
	// OnListen is called with the bound address once serve is accepting.
	OnListen func(addr string)
}

// NewRootCommand creates the root command for the taskapi CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Task API - users, tasks, priorities and tags over a key-value store",
		Long: `Serve CRUD endpoints for users, tasks, priorities and tags.

Records live in Redis (or an embedded SQLite file) as one hash per record,
with a counter per type for ids and a set indexing the live records.
Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if _, err := config.LoadDotenv(opts.EnvFile); err != nil {
				return WrapExitError(ExitCommandError, "failed to read env file", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			logger.New(cfg.LogLevel, cfg.LoggerOptions()...)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "file to load environment variables from, if it exists")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

func (opts *RootOptions) openStore(ctx context.Context) (kv.Store, error) {
	if opts.OpenStore != nil {
		return opts.OpenStore(ctx, opts.Config)
	}
	return openStore(ctx, opts.Config)
}

func openStore(ctx context.Context, cfg config.Config) (kv.Store, error) {
	if cfg.Store.Backend == kv.BackendSQLite && cfg.Store.SQLitePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return kv.Open(ctx, cfg.Store, logger.Sugar.WithServiceName(serviceName))
}

func closeStore(st kv.Store) {
	if err := st.Close(); err != nil {
		logger.Sugar.Infof("error closing store: %v", err)
	}
}
