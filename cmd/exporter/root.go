package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/eventlog-export-service/internal/config"
	"github.com/PratikDhanave/eventlog-export-service/internal/export"
	"github.com/PratikDhanave/eventlog-export-service/internal/lock"
	"github.com/PratikDhanave/eventlog-export-service/internal/logging"
	"github.com/PratikDhanave/eventlog-export-service/internal/presentation"
	"github.com/PratikDhanave/eventlog-export-service/internal/store"
	"github.com/PratikDhanave/eventlog-export-service/internal/translate"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Event log export service",
	Long: `exporter copies event log records of monitored information systems into
a columnar store (ClickHouse, Postgres or SQLite), checkpointing after every
batch so an interrupted run resumes without duplicating rows.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/eventlog-export/config.yaml)")
}

func initConfig(*cobra.Command, []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("eventlog-exporter"))
	slog.SetDefault(logger)
	return nil
}

// opener returns the store opener and translator built from the config.
func opener() (export.Opener, *translate.Translator, error) {
	table := presentation.Default()
	if cfg.Export.PresentationsFile != "" {
		var err error
		table, err = presentation.Load(cfg.Export.PresentationsFile)
		if err != nil {
			return nil, nil, err
		}
	}

	open := func(ctx context.Context) (store.Backend, error) {
		return store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	}
	return open, translate.New(table), nil
}

// openSession connects to the configured store and provisions its schema.
func openSession(ctx context.Context) (*export.Session, error) {
	open, translator, err := opener()
	if err != nil {
		return nil, err
	}
	return export.Open(ctx, open, translator, logger)
}

// withSession runs fn over a fresh Session that is closed on return.
func withSession(ctx context.Context, fn func(*export.Session) error) error {
	open, translator, err := opener()
	if err != nil {
		return err
	}
	return export.WithSession(ctx, open, translator, logger, fn)
}

// newLocker returns the Redis locker when enabled. The returned close func
// is always safe to call.
func newLocker(ctx context.Context) (lock.Locker, func() error, error) {
	if !cfg.Redis.Enabled {
		logger.Warn("Redis lock disabled; run at most one exporter per system")
		return lock.NoopLocker{}, func() error { return nil }, nil
	}

	l, err := lock.NewRedisLocker(ctx, cfg.Redis.URL, cfg.Redis.LockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect lock store: %w", err)
	}
	return l, l.Close, nil
}
