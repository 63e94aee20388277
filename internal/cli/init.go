package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/roster/internal/cli/appctx"
	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/store"
)

type initOptions struct {
	adminSlug string
	adminName string
}

func newInitCmd() *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the roster database",
		Long: `Initialize creates the database, runs migrations, and seeds an
administrator account when the database has no accounts yet.

This is an administrative command and should not be exposed to students.`,
		Args: cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{NeedsDB: true, SkipMigrationCheck: true}, func(app *appctx.App, cmd *cobra.Command, args []string) error {
			return runInit(app, cmd, opts)
		}),
	}
	cmd.Flags().StringVar(&opts.adminSlug, "admin-slug", "admin", "Slug for the seeded administrator account")
	cmd.Flags().StringVar(&opts.adminName, "admin-name", "Administrator", "Display name for the seeded administrator account")
	return cmd
}

func runInit(app *appctx.App, cmd *cobra.Command, opts *initOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	applied, err := app.DB.MigrateWithInfo()
	if err != nil {
		return exitError(ExitError, fmt.Errorf("failed to run migrations: %w", err))
	}
	for _, m := range applied {
		fmt.Fprintf(out, "✓ Applied migration: %s\n", m)
	}

	accounts, err := app.Store.Accounts.List(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		admin, err := app.Store.Accounts.Create(ctx, "", store.CreateAccountParams{
			Slug:        opts.adminSlug,
			DisplayName: opts.adminName,
			Role:        domain.AccountRoleAdmin,
		})
		if err != nil {
			return exitError(ExitUsage, fmt.Errorf("failed to seed administrator: %w", err))
		}
		fmt.Fprintf(out, "✓ Created account %s (%s, %s)\n", admin.ID, admin.Slug, admin.Role)
	}

	fmt.Fprintf(out, "✓ Database ready at %s\n", app.DB.Path())
	return nil
}

type migrateOptions struct {
	dryRun bool
	status bool
}

func newMigrateCmd() *cobra.Command {
	opts := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run any pending database migrations",
		Long: `Migrate applies any pending SQL migrations to the database.

Migrations are embedded in the rosteradm binary and tracked via the
schema_migrations table. Each migration file is applied exactly once, so
this command is safe to run multiple times.

Use --dry-run to see which migrations would be applied without running them.
Use --status to show the current migration status.`,
		Args: cobra.NoArgs,
		RunE: appctx.WithApp(appctx.Options{NeedsDB: true, SkipMigrationCheck: true}, func(app *appctx.App, cmd *cobra.Command, args []string) error {
			return runMigrate(app, cmd, opts)
		}),
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show which migrations would be applied without running them")
	cmd.Flags().BoolVar(&opts.status, "status", false, "Show current migration status")
	return cmd
}

func runMigrate(app *appctx.App, cmd *cobra.Command, opts *migrateOptions) error {
	out := cmd.OutOrStdout()

	applied, pending, err := app.DB.MigrationStatus()
	if err != nil {
		return exitError(ExitError, fmt.Errorf("failed to get migration status: %w", err))
	}

	if opts.status {
		if len(applied) == 0 && len(pending) == 0 {
			fmt.Fprintln(out, "No migrations found.")
			return nil
		}
		if len(applied) > 0 {
			fmt.Fprintln(out, "Applied migrations:")
			for _, m := range applied {
				fmt.Fprintf(out, "  ✓ %s\n", m)
			}
		}
		if len(pending) > 0 {
			if len(applied) > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, "Pending migrations:")
			for _, m := range pending {
				fmt.Fprintf(out, "  ○ %s\n", m)
			}
		}
		return nil
	}

	if opts.dryRun {
		if len(pending) == 0 {
			fmt.Fprintln(out, "No pending migrations. Database is up to date.")
			return nil
		}
		fmt.Fprintln(out, "Pending migrations (would be applied):")
		for _, m := range pending {
			fmt.Fprintf(out, "  ○ %s\n", m)
		}
		fmt.Fprintf(out, "\nTotal: %d migration(s) would be applied.\n", len(pending))
		return nil
	}

	done, err := app.DB.MigrateWithInfo()
	if err != nil {
		return exitError(ExitError, fmt.Errorf("failed to run migrations: %w", err))
	}
	if len(done) == 0 {
		fmt.Fprintln(out, "Database is up to date. No migrations to apply.")
		return nil
	}
	for _, m := range done {
		fmt.Fprintf(out, "✓ Applied migration: %s\n", m)
	}
	fmt.Fprintf(out, "\nApplied %d migration(s).\n", len(done))
	return nil
}
