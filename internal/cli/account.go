package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/roster/internal/cli/appctx"
	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/slug"
	"github.com/lherron/roster/internal/store"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage login accounts",
	}
	cmd.AddCommand(newAccountAddCmd(), newAccountLsCmd())
	return cmd
}

func newAccountAddCmd() *cobra.Command {
	var params store.CreateAccountParams
	var role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: appctx.WithApp(appctx.WithActor(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			params.Role = domain.AccountRole(role)
			if params.Slug == "" {
				derived, err := slug.Normalize(params.DisplayName)
				if err != nil {
					return exitError(ExitUsage, fmt.Errorf("--slug or --name is required: %w", err))
				}
				params.Slug = derived
			}
			a, err := app.Store.Accounts.Create(cmd.Context(), app.ActorUUID, params)
			if err != nil {
				return exitError(ExitUsage, err)
			}
			r, err := newRenderer(app, cmd)
			if err != nil {
				return err
			}
			return r.Render(a, accountHeaders, [][]string{accountRow(a)})
		}),
	}
	cmd.Flags().StringVar(&params.Slug, "slug", "", "Account slug (derived from --name when omitted)")
	cmd.Flags().StringVar(&params.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", string(domain.AccountRoleStudent), "Role: student, instructor or admin")
	return cmd
}

func newAccountLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			accounts, err := app.Store.Accounts.List(cmd.Context())
			if err != nil {
				return err
			}
			if accounts == nil {
				accounts = []domain.Account{}
			}
			rows := make([][]string, 0, len(accounts))
			for i := range accounts {
				rows = append(rows, accountRow(&accounts[i]))
			}
			r, err := newRenderer(app, cmd)
			if err != nil {
				return err
			}
			return r.Render(accounts, accountHeaders, rows)
		}),
	}
}

var accountHeaders = []string{"ID", "SLUG", "ROLE", "NAME", "UUID"}

func accountRow(a *domain.Account) []string {
	return []string{a.ID, a.Slug, string(a.Role), deref(a.DisplayName), a.UUID}
}

// accountLabel formats an account for one-line messages.
func accountLabel(a *domain.Account) string {
	return fmt.Sprintf("%s (%s)", a.ID, a.Slug)
}
