package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lherron/roster/internal/authz"
	"github.com/lherron/roster/internal/cli/appctx"
	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/merge"
	"github.com/lherron/roster/internal/render"
	"github.com/lherron/roster/internal/selectors"
)

type mergeOptions struct {
	source     string
	target     string
	dryRun     bool
	retries    int
	timeout    time.Duration
	reportPath string
	conflicts  string
}

func newMergeCmd() *cobra.Command {
	opts := &mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge --source <student> --target <student>",
		Short: "Merge a duplicate student into the claimed student",
		Long: `Merge moves every record owned by the source student onto the target
student, fills empty profile fields on the target from the source, and
deletes the source. The source must be unclaimed and the target claimed.

Records the target already has (the same class enrollment or the same
instructor) are discarded from the source, or with --conflicts=reject the
merge is refused. The merge commits completely or not at all.

Use --dry-run to run the merge, print what it would do, and roll back.

Exit codes: 0 ok, 2 invalid request or rejected precondition,
3 concurrent writes outlasted every retry, 4 fatal inconsistency, 1 other.`,
		Args: cobra.NoArgs,
		RunE: appctx.WithApp(appctx.WithActor(), func(app *appctx.App, cmd *cobra.Command, args []string) error {
			return runMerge(app, cmd, opts)
		}),
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "Student to merge away (UUID, S-xxxxx or s:<id>)")
	cmd.Flags().StringVar(&opts.target, "target", "", "Claimed student that survives")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run the merge and roll it back")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Retries after a concurrent write conflict (default from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Give up after this long, retries included (default from config)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write JSON report to path")
	cmd.Flags().StringVar(&opts.conflicts, "conflicts", "discard", "Conflicting records: discard or reject")
	return cmd
}

func runMerge(app *appctx.App, cmd *cobra.Command, opts *mergeOptions) error {
	if opts.source == "" || opts.target == "" {
		return exitError(ExitUsage, fmt.Errorf("both --source and --target are required"))
	}
	policy, err := merge.ParseConflictPolicy(opts.conflicts)
	if err != nil {
		return exitError(ExitUsage, err)
	}

	retries := app.Config.MergeRetries
	if cmd.Flags().Changed("retries") {
		retries = opts.retries
	}
	if retries < 0 {
		return exitError(ExitUsage, fmt.Errorf("--retries must not be negative"))
	}
	timeout := app.Config.MergeTimeout
	if cmd.Flags().Changed("timeout") {
		timeout = opts.timeout
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	actor, err := authz.NewMergeGate(app.Store.Accounts).Authorize(ctx, app.ActorUUID)
	if err != nil {
		return err
	}

	source, err := resolveMergeStudent(ctx, app, opts.source, "source")
	if err != nil {
		return err
	}
	target, err := resolveMergeStudent(ctx, app, opts.target, "target")
	if err != nil {
		return err
	}

	engine, err := merge.NewEngine(merge.FromStore(app.Store),
		merge.WithLogger(app.Log.With().Str("actor", actor.Slug).Logger()),
		merge.WithConflictPolicy(policy),
	)
	if err != nil {
		return err
	}

	report, err := mergeWithRetry(ctx, engine, merge.MergeRequest{
		SourceUUID: source.UUID,
		TargetUUID: target.UUID,
		ActorUUID:  actor.UUID,
		DryRun:     opts.dryRun,
	}, retries, app.Log)
	if err != nil {
		return err
	}

	if opts.reportPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return exitError(ExitError, fmt.Errorf("failed to encode report: %w", err))
		}
		if err := os.WriteFile(opts.reportPath, data, 0644); err != nil {
			return exitError(ExitError, fmt.Errorf("failed to write report: %w", err))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Report written to %s\n", opts.reportPath)
	}

	r, err := newRenderer(app, cmd)
	if err != nil {
		return err
	}
	if app.Config.Output != string(render.FormatTable) {
		return r.Render(report, nil, nil)
	}
	return printMergeSummary(cmd, r, report, source, target)
}

// resolveMergeStudent resolves a selector and tags a miss with the student's role.
func resolveMergeStudent(ctx context.Context, app *appctx.App, selector, role string) (*domain.Student, error) {
	s, err := selectors.ResolveStudent(ctx, app.Store, selector)
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		nf.Role = role
	}
	return s, err
}

type studentMerger interface {
	MergeStudents(ctx context.Context, req merge.MergeRequest) (*merge.Report, error)
}

// mergeWithRetry retries conflicting merges with exponential backoff. Every
// other error stops immediately.
func mergeWithRetry(ctx context.Context, m studentMerger, req merge.MergeRequest, retries int, log zerolog.Logger) (*merge.Report, error) {
	var report *merge.Report
	op := func() error {
		r, err := m.MergeStudents(ctx, req)
		if err != nil {
			if errors.Is(err, domain.ErrConflictRetryable) {
				return err
			}
			return backoff.Permanent(err)
		}
		report = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("merge conflicted with a concurrent write, retrying")
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(newMergeBackoff(), uint64(retries)), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		var aborted *domain.AbortedError
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && !errors.As(err, &aborted) {
			return nil, &domain.AbortedError{Op: "merge", Err: ctxErr}
		}
		return nil, err
	}
	return report, nil
}

func newMergeBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0 // bounded by --retries and --timeout
	return bo
}

func printMergeSummary(cmd *cobra.Command, r *render.Renderer, report *merge.Report, source, target *domain.Student) error {
	out := cmd.OutOrStdout()
	if report.DryRun {
		fmt.Fprintf(out, "Dry run: would merge %s into %s (rolled back)\n\n", source.ID, target.ID)
	} else {
		fmt.Fprintf(out, "✓ Merged %s into %s\n\n", source.ID, target.ID)
	}

	rows := make([][]string, 0, len(report.TransferredCounts.Keys()))
	for _, key := range report.TransferredCounts.Keys() {
		rows = append(rows, []string{
			key,
			strconv.Itoa(report.TransferredCounts.Get(key)),
			strconv.Itoa(report.DiscardedCounts.Get(key)),
		})
	}
	if err := r.RenderTable([]string{"RELATION", "TRANSFERRED", "DISCARDED"}, rows); err != nil {
		return err
	}

	reconciled := "none"
	if len(report.ReconciledFields) > 0 {
		reconciled = strings.Join(report.ReconciledFields, ", ")
	}
	fmt.Fprintf(out, "\nReconciled fields: %s\n", reconciled)

	if report.DryRun && len(report.ReconciledFields) > 0 {
		fmt.Fprintln(out)
		return r.RenderDiff(target.ID+" (before)", target.ID+" (after)",
			profileText(report.TargetBefore), profileText(report.TargetAfter()))
	}
	return nil
}

// profileText renders a profile one field per line in display order.
func profileText(profile map[string]*string) string {
	var b strings.Builder
	for _, field := range domain.ProfileFields {
		fmt.Fprintf(&b, "%s: %s\n", field, deref(profile[field]))
	}
	return b.String()
}
