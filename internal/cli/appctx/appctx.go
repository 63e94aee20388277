// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logging, database opening and actor
// resolution to reduce boilerplate across commands.
package appctx

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lherron/roster/internal/config"
	"github.com/lherron/roster/internal/db"
	"github.com/lherron/roster/internal/logging"
	"github.com/lherron/roster/internal/selectors"
	"github.com/lherron/roster/internal/store"
	"github.com/lherron/roster/internal/telemetry"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration with flag overrides applied
	Config *config.Config

	// Log writes to the command's stderr
	Log zerolog.Logger

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB
	Store *store.Store

	// ActorUUID is the resolved actor UUID (empty if NeedsActor is false)
	ActorUUID string

	// ActorID is the resolved actor friendly ID (e.g., "A-00001")
	ActorID string

	telemetry bool
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
		a.Store = nil
	}
	if a.telemetry {
		telemetry.Shutdown(context.Background())
		a.telemetry = false
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// NeedsActor indicates whether to resolve the current actor.
	// Requires NeedsDB to also be true.
	NeedsActor bool

	// SkipMigrationCheck allows opening a database with pending migrations.
	SkipMigrationCheck bool
}

// DefaultOptions returns default options (DB required, no actor).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// WithActor returns options that require both DB and actor.
func WithActor() Options {
	return Options{NeedsDB: true, NeedsActor: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	if v := flagValue(cmd, "db"); v != "" {
		cfg.DBPath = v
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := flagValue(cmd, "log-format"); v != "" {
		cfg.LogFormat = v
	}
	if v := flagValue(cmd, "output"); v != "" {
		cfg.Output = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app.Log, err = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	if cfg.OTelEnabled {
		err := telemetry.Init(commandContext(cmd), telemetry.Options{
			Enabled:     true,
			Stdout:      cfg.OTelStdout,
			ServiceName: "rosteradm",
		})
		if err != nil {
			return nil, err
		}
		app.telemetry = true
	}

	if opts.NeedsDB {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.DB = database
		app.Store = store.New(database)

		if !opts.SkipMigrationCheck {
			if err := database.RequiresMigrationError(); err != nil {
				app.Close()
				return nil, err
			}
		}
	}

	if opts.NeedsActor {
		if app.DB == nil {
			app.Close()
			return nil, fmt.Errorf("actor resolution requires database (set NeedsDB: true)")
		}
		if err := app.resolveActor(cmd); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

// resolveActor resolves the current actor from --as or config. An unset actor
// leaves ActorUUID empty so authorization can reject it.
func (a *App) resolveActor(cmd *cobra.Command) error {
	actorSelector := flagValue(cmd, "as")
	if actorSelector == "" {
		actorSelector = a.Config.GetActor()
	}
	if actorSelector == "" {
		return nil
	}

	account, err := selectors.ResolveAccount(commandContext(cmd), a.Store, actorSelector)
	if err != nil {
		return fmt.Errorf("failed to resolve actor: %w", err)
	}
	a.ActorUUID = account.UUID
	a.ActorID = account.ID
	return nil
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
