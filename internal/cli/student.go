package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/roster/internal/cli/appctx"
	"github.com/lherron/roster/internal/cursor"
	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/merge"
	"github.com/lherron/roster/internal/parse"
	"github.com/lherron/roster/internal/selectors"
	"github.com/lherron/roster/internal/store"
)

func newStudentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "student",
		Aliases: []string{"students"},
		Short:   "Manage student identities",
	}
	cmd.AddCommand(
		newStudentAddCmd(),
		newStudentLsCmd(),
		newStudentShowCmd(),
		newStudentSetCmd(),
		newStudentClaimCmd(),
	)
	return cmd
}

// profileFlags maps flag names to profile columns.
var profileFlags = []struct {
	flag, field, usage string
}{
	{"skill-level", domain.FieldSkillLevel, "Skill level"},
	{"goals", domain.FieldGoals, "Goals"},
	{"phone", domain.FieldPhone, "Phone number"},
	{"dob", domain.FieldDateOfBirth, "Date of birth (YYYY-MM-DD)"},
	{"emergency-name", domain.FieldEmergencyContactName, "Emergency contact name"},
	{"emergency-phone", domain.FieldEmergencyContactPhone, "Emergency contact phone"},
	{"emergency-relation", domain.FieldEmergencyContactRelation, "Emergency contact relation"},
	{"medical-notes", domain.FieldMedicalNotes, "Medical notes"},
}

func newStudentAddCmd() *cobra.Command {
	var params store.CreateStudentParams
	profile := make(map[string]*string, len(profileFlags))
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a student",
		Args:  cobra.NoArgs,
		RunE: appctx.WithApp(appctx.WithActor(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			params.Profile = map[string]string{}
			for _, pf := range profileFlags {
				if cmd.Flags().Changed(pf.flag) {
					params.Profile[pf.field] = *profile[pf.field]
				}
			}
			s, err := app.Store.Students.Create(cmd.Context(), app.ActorUUID, params)
			if err != nil {
				return exitError(ExitUsage, err)
			}
			r, err := newRenderer(app, cmd)
			if err != nil {
				return err
			}
			return r.Render(s, studentHeaders, [][]string{studentRow(s)})
		}),
	}
	cmd.Flags().StringVar(&params.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&params.Email, "email", "", "Email address")
	for _, pf := range profileFlags {
		profile[pf.field] = cmd.Flags().String(pf.flag, "", pf.usage)
	}
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStudentLsCmd() *cobra.Command {
	var params store.ListStudentsParams
	var after string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List students",
		Long: `Ls lists students ordered by friendly ID.

When --limit fills a page, the cursor for the next page is printed to stderr;
pass it back with --cursor.`,
		Args: cobra.NoArgs,
		RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			if params.ClaimedOnly && params.UnclaimedOnly {
				return exitError(ExitUsage, fmt.Errorf("--claimed and --unclaimed are mutually exclusive"))
			}
			if after != "" {
				c, err := cursor.Decode(after, studentCursorKind)
				if err != nil {
					return exitError(ExitUsage, err)
				}
				params.AfterID = c.LastID
			}
			students, err := app.Store.Students.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			if students == nil {
				students = []domain.Student{}
			}
			rows := make([][]string, 0, len(students))
			for i := range students {
				rows = append(rows, studentRow(&students[i]))
			}
			r, err := newRenderer(app, cmd)
			if err != nil {
				return err
			}
			if err := r.Render(students, studentHeaders, rows); err != nil {
				return err
			}
			if params.Limit > 0 && len(students) == params.Limit {
				next, err := cursor.New(studentCursorKind, students[len(students)-1].ID).Encode()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Next cursor: %s\n", next)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&after, "cursor", "", "Resume after the page that printed this cursor")
	cmd.Flags().BoolVar(&params.ClaimedOnly, "claimed", false, "Only students linked to an account")
	cmd.Flags().BoolVar(&params.UnclaimedOnly, "unclaimed", false, "Only students not linked to an account")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "Maximum number of students (0 = all)")
	return cmd
}

// studentDetail is the structured form of `student show`.
type studentDetail struct {
	*domain.Student `yaml:",inline"`
	Dependents      merge.Counts `json:"dependents" yaml:"dependents"`
}

func newStudentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <student>",
		Short: "Show a student's profile and dependent record counts",
		Args:  cobra.ExactArgs(1),
		RunE: appctx.WithApp(appctx.DefaultOptions(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := selectors.ResolveStudent(ctx, app.Store, args[0])
			if err != nil {
				return err
			}

			catalog := merge.DefaultCatalog()
			counts := merge.NewCounts(catalog.ReportKeys())
			for _, rel := range catalog {
				n, err := app.Store.CountByStudent(ctx, rel.Spec(), s.UUID)
				if err != nil {
					return err
				}
				counts.Add(rel.ReportKey, n)
			}

			r, err := newRenderer(app, cmd)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"id", s.ID},
				{"uuid", s.UUID},
				{"display_name", s.DisplayName},
				{"email", deref(s.Email)},
				{"account_uuid", deref(s.AccountUUID)},
				{"etag", strconv.FormatInt(s.ETag, 10)},
			}
			profile := s.Profile()
			for _, field := range domain.ProfileFields {
				rows = append(rows, []string{field, deref(profile[field])})
			}
			for _, key := range counts.Keys() {
				rows = append(rows, []string{"dependents." + key, strconv.Itoa(counts.Get(key))})
			}
			return r.Render(studentDetail{Student: s, Dependents: counts}, []string{"FIELD", "VALUE"}, rows)
		}),
	}
}

func newStudentSetCmd() *cobra.Command {
	var ifMatch int64
	var file, format string
	cmd := &cobra.Command{
		Use:   "set <student> [<field>=<value>...]",
		Short: "Update profile fields",
		Long: `Set updates scalar profile fields. An empty value clears the field.

Fields can also be read from a JSON, YAML or markdown file with --file
("-" reads stdin). A markdown body becomes the medical notes. Assignments on
the command line override the file.

Use --if-match to reject the update when the student changed since it was read.`,
		Args: cobra.MinimumNArgs(1),
		RunE: appctx.WithApp(appctx.WithActor(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fields := map[string]string{}
			if file != "" {
				data, err := readInput(cmd, file)
				if err != nil {
					return exitError(ExitUsage, err)
				}
				update, err := parse.Parse(data, format)
				if err != nil {
					return exitError(ExitUsage, err)
				}
				for k, v := range update {
					fields[k] = v
				}
			}
			assigned, err := parseAssignments(args[1:])
			if err != nil {
				return exitError(ExitUsage, err)
			}
			for k, v := range assigned {
				fields[k] = v
			}
			if len(fields) == 0 {
				return exitError(ExitUsage, fmt.Errorf("nothing to update: pass field=value or --file"))
			}
			if err := domain.ValidateProfile(fields); err != nil {
				return exitError(ExitUsage, err)
			}

			s, err := selectors.ResolveStudent(ctx, app.Store, args[0])
			if err != nil {
				return err
			}
			etag, err := app.Store.Students.UpdateFields(ctx, app.ActorUUID, s.UUID, fields, ifMatch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated %s (etag %d)\n", s.ID, etag)
			return nil
		}),
	}
	cmd.Flags().Int64Var(&ifMatch, "if-match", 0, "Only update if the student's etag matches")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read fields from a JSON, YAML or markdown file (- for stdin)")
	cmd.Flags().StringVar(&format, "format", "", "Input format: json, yaml or md (auto-detected when empty)")
	return cmd
}

func newStudentClaimCmd() *cobra.Command {
	var accountSelector string
	cmd := &cobra.Command{
		Use:   "claim <student>",
		Short: "Link a student to a login account",
		Args:  cobra.ExactArgs(1),
		RunE: appctx.WithApp(appctx.WithActor(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := selectors.ResolveStudent(ctx, app.Store, args[0])
			if err != nil {
				return err
			}
			account, err := selectors.ResolveAccount(ctx, app.Store, accountSelector)
			if err != nil {
				return err
			}
			if _, err := app.Store.Students.Claim(ctx, app.ActorUUID, s.UUID, account.UUID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s claimed by %s\n", s.ID, accountLabel(account))
			return nil
		}),
	}
	cmd.Flags().StringVar(&accountSelector, "account", "", "Account selector (slug, friendly ID or UUID)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

const studentCursorKind = "student"

var studentHeaders = []string{"ID", "NAME", "EMAIL", "CLAIMED", "UUID"}

func studentRow(s *domain.Student) []string {
	claimed := "no"
	if s.IsClaimed() {
		claimed = "yes"
	}
	return []string{s.ID, s.DisplayName, deref(s.Email), claimed, s.UUID}
}
