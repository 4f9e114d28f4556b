package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/config"
	"github.com/roach88/precedent-offline/internal/edge"
	"github.com/roach88/precedent-offline/internal/store"
)

// env is what a command runs with: the resolved config, a logger writing
// to stderr and, when it could be opened, the store.
type env struct {
	cfg    config.Config
	store  *store.Store
	logger *slog.Logger
	out    *OutputFormatter
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig returns the config file, or the defaults when none is given,
// with the --db override applied.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return config.Config{}, err
		}
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// setup loads config and opens the store. A store that cannot be opened
// is an error when requireStore is set and a logged warning otherwise, in
// which case env.store is nil.
func (o *RootOptions) setup(cmd *cobra.Command, requireStore bool) (*env, error) {
	e := &env{
		out:    o.formatter(cmd),
		logger: o.newLogger(cmd.ErrOrStderr()),
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, e.out.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	e.cfg = cfg

	e.out.VerboseLog("opening store %s", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		if requireStore {
			return nil, e.out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		e.logger.Warn("store unavailable, continuing without offline storage",
			"path", cfg.Database,
			"error", err,
		)
	}
	e.store = st
	return e, nil
}

func (e *env) close() {
	if e.store == nil {
		return
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

// edge wires an edge over the env's store and config.
func (e *env) edge(ctx context.Context) (*edge.Edge, error) {
	ed, err := edge.New(ctx, edge.Options{
		Config: e.cfg,
		Store:  e.store,
		Logger: e.logger,
	})
	if err != nil {
		return nil, e.out.Fail(ExitCommandError, ErrCodeEdge, "failed to build edge", err)
	}
	return ed, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
