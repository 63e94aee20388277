package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// newRootCmd builds the rosteradm command tree. Each call returns a fresh
// tree so flag state never leaks between invocations.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rosteradm",
		Short: "Administrative CLI for the roster student database",
		Long: `rosteradm manages the roster database: migrations, accounts, students,
and merging duplicate student identities into the claimed one.

These operations should not be exposed to students.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("db", "", "Path to database file or postgres:// DSN (overrides ROSTER_DB_PATH)")
	root.PersistentFlags().String("as", "", "Account to perform action as (slug, friendly ID or UUID)")
	root.PersistentFlags().StringP("output", "o", "", "Output format: table, json or yaml")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "", "Log format: console or json")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitError(ExitUsage, err)
	})

	root.AddCommand(
		newInitCmd(),
		newMigrateCmd(),
		newAccountCmd(),
		newStudentCmd(),
		newMergeCmd(),
		newRelationsCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs rosteradm with os.Args and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCode(err)
}
