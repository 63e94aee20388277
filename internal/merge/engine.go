package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/store"
	"github.com/lherron/roster/internal/telemetry"
)

// UnitOfWork is everything the engine does against the store inside one
// transaction. *store.Tx implements it.
type UnitOfWork interface {
	RelationReader

	GetStudent(ctx context.Context, studentUUID string) (*domain.Student, error)
	GetStudentForUpdate(ctx context.Context, studentUUID string) (*domain.Student, error)
	UpdateStudentFields(ctx context.Context, actorUUID, studentUUID string, fields map[string]string, ifMatch int64) (int64, error)
	DeleteStudent(ctx context.Context, actorUUID, studentUUID string, payload map[string]interface{}) error
	LogStudentMerged(ctx context.Context, actorUUID, targetUUID string, etag int64, payload map[string]interface{}) error

	ReassignStudent(ctx context.Context, rel store.RelationSpec, recordUUIDs []string, from, to string) (int64, error)
	DeleteRecords(ctx context.Context, rel store.RelationSpec, recordUUIDs []string, studentUUID string) (int64, error)
	CountByStudent(ctx context.Context, rel store.RelationSpec, studentUUID string) (int, error)
}

// TxRunner runs fn inside a single serializable transaction, committing only
// when fn returns nil.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type storeRunner struct {
	s *store.Store
}

// FromStore adapts a store to TxRunner.
func FromStore(s *store.Store) TxRunner {
	return storeRunner{s: s}
}

func (r storeRunner) RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return r.s.RunInTx(ctx, func(tx *store.Tx) error { return fn(tx) })
}

// ConflictPolicy decides what happens to source records that collide with a
// record the target already has.
type ConflictPolicy int

const (
	// DiscardConflicts deletes the source's colliding records. The target's
	// record always wins.
	DiscardConflicts ConflictPolicy = iota
	// RejectConflicts aborts the merge so the conflicts can be resolved by hand.
	RejectConflicts
)

func (p ConflictPolicy) String() string {
	switch p {
	case DiscardConflicts:
		return "discard"
	case RejectConflicts:
		return "reject"
	default:
		return fmt.Sprintf("ConflictPolicy(%d)", int(p))
	}
}

// ParseConflictPolicy parses "discard" or "reject".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "", "discard":
		return DiscardConflicts, nil
	case "reject":
		return RejectConflicts, nil
	default:
		return 0, fmt.Errorf("unknown conflict policy %q (want discard or reject)", s)
	}
}

// Engine merges duplicate students.
type Engine struct {
	runner  TxRunner
	catalog Catalog
	fields  []string
	policy  ConflictPolicy
	log     zerolog.Logger
	now     func() time.Time
	tracer  trace.Tracer
	metrics *telemetry.MergeInstruments
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog replaces the default relation catalog.
func WithCatalog(c Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithLogger sets the engine's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithConflictPolicy sets how conflicting records are handled.
func WithConflictPolicy(p ConflictPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock overrides time.Now for duration measurement.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithInstruments overrides the tracer and metrics.
func WithInstruments(tracer trace.Tracer, metrics *telemetry.MergeInstruments) Option {
	return func(e *Engine) {
		e.tracer = tracer
		e.metrics = metrics
	}
}

// NewEngine creates an engine. It fails if the catalog is inconsistent.
func NewEngine(runner TxRunner, opts ...Option) (*Engine, error) {
	e := &Engine{
		runner:  runner,
		catalog: DefaultCatalog(),
		fields:  MergeableFields,
		policy:  DiscardConflicts,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = telemetry.Tracer(telemetry.MergeTracerName())
	}
	if e.metrics == nil {
		e.metrics = telemetry.NewMergeInstruments(nil)
	}
	if err := e.catalog.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Catalog returns the relations the engine processes.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// MergeRequest names the two students to merge.
type MergeRequest struct {
	SourceUUID string // removed
	TargetUUID string // survives; must be claimed
	ActorUUID  string // recorded on events; may be empty
	DryRun     bool   // run everything, then roll back
}

var errDryRun = errors.New("dry run")

// MergeStudents moves everything the source student owns onto the target,
// fills gaps in the target's profile from the source and deletes the source.
// It either commits completely or leaves the store untouched.
//
// Errors: *domain.NotFoundError, *domain.InvalidOperationError,
// *domain.ConflictRetryableError, *domain.FatalInconsistencyError and
// *domain.AbortedError. The engine never retries.
func (e *Engine) MergeStudents(ctx context.Context, req MergeRequest) (*Report, error) {
	start := e.now()
	ctx, span := e.tracer.Start(ctx, "merge.students", trace.WithAttributes(
		attribute.String("merge.source_uuid", req.SourceUUID),
		attribute.String("merge.target_uuid", req.TargetUUID),
		attribute.Bool("merge.dry_run", req.DryRun),
	))
	defer span.End()

	log := e.log.With().
		Str("source_uuid", req.SourceUUID).
		Str("target_uuid", req.TargetUUID).
		Bool("dry_run", req.DryRun).
		Logger()
	log.Info().Msg("merge started")

	var report *Report
	err := e.runner.RunInTx(ctx, func(uow UnitOfWork) error {
		r, err := e.merge(ctx, uow, req, log, span)
		if err != nil {
			return err
		}
		report = r
		if req.DryRun {
			return errDryRun
		}
		return nil
	})
	if req.DryRun && errors.Is(err, errDryRun) {
		err = nil
		report.DryRun = true
	}

	ms := float64(e.now().Sub(start).Microseconds()) / 1000
	outcome := outcomeOf(err)
	e.metrics.RecordOutcome(ctx, outcome, ms, req.DryRun)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logFailure(log, err)
		return nil, err
	}

	for _, rel := range e.catalog {
		e.metrics.RecordRecords(ctx, rel.ReportKey, "transferred", report.TransferredCounts.Get(rel.ReportKey))
		e.metrics.RecordRecords(ctx, rel.ReportKey, "discarded", report.DiscardedCounts.Get(rel.ReportKey))
	}
	span.SetAttributes(
		attribute.Int("merge.transferred", report.TransferredCounts.Total()),
		attribute.Int("merge.discarded", report.DiscardedCounts.Total()),
	)
	log.Info().
		Int("transferred", report.TransferredCounts.Total()).
		Int("discarded", report.DiscardedCounts.Total()).
		Strs("reconciled_fields", report.ReconciledFields).
		Float64("duration_ms", ms).
		Msg("merge completed")
	return report, nil
}

func (e *Engine) merge(ctx context.Context, uow UnitOfWork, req MergeRequest, log zerolog.Logger, span trace.Span) (*Report, error) {
	source, target, err := e.checkPreconditions(ctx, uow, req)
	if err != nil {
		return nil, err
	}

	report := newReport(source.UUID, target.UUID, e.catalog)

	resolutions := make([]Resolution, len(e.catalog))
	for i, rel := range e.catalog {
		res, err := Resolve(ctx, uow, rel, source.UUID, target.UUID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", rel.Name, err)
		}
		resolutions[i] = res
	}
	if e.policy == RejectConflicts {
		if err := e.rejectConflicts(resolutions); err != nil {
			return nil, err
		}
	}

	for i, rel := range e.catalog {
		res := resolutions[i]
		spec := rel.Spec()

		deleted, err := uow.DeleteRecords(ctx, spec, res.Conflicting, source.UUID)
		if err != nil {
			return nil, fmt.Errorf("discard conflicting %s records: %w", rel.Name, err)
		}
		if int(deleted) != len(res.Conflicting) {
			return nil, &domain.ConflictRetryableError{
				Op:  "discard " + rel.Name,
				Err: fmt.Errorf("expected to delete %d records, deleted %d", len(res.Conflicting), deleted),
			}
		}

		moved, err := uow.ReassignStudent(ctx, spec, res.Transferable, source.UUID, target.UUID)
		if err != nil {
			return nil, fmt.Errorf("reassign %s records: %w", rel.Name, err)
		}
		if int(moved) != len(res.Transferable) {
			return nil, &domain.ConflictRetryableError{
				Op:  "reassign " + rel.Name,
				Err: fmt.Errorf("expected to move %d records, moved %d", len(res.Transferable), moved),
			}
		}

		report.TransferredCounts.Add(rel.ReportKey, int(moved))
		report.DiscardedCounts.Add(rel.ReportKey, int(deleted))
		span.AddEvent("relation", trace.WithAttributes(
			attribute.String("relation", rel.ReportKey),
			attribute.Int64("transferred", moved),
			attribute.Int64("discarded", deleted),
		))
		log.Debug().
			Str("relation", rel.ReportKey).
			Int64("transferred", moved).
			Int64("discarded", deleted).
			Msg("relation merged")
	}

	for _, rel := range e.catalog {
		left, err := uow.CountByStudent(ctx, rel.Spec(), source.UUID)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", rel.Name, err)
		}
		if left != 0 {
			return nil, &domain.FatalInconsistencyError{
				Op:  "verify transfer",
				Err: fmt.Errorf("%d %s records still reference source %s", left, rel.Name, source.UUID),
			}
		}
	}

	report.TargetBefore = target.Profile()
	updates := Reconcile(source.Profile(), report.TargetBefore, e.fields)
	report.Reconciled = updates
	report.ReconciledFields = ReconciledFieldNames(updates, e.fields)

	etag := target.ETag
	if len(updates) > 0 {
		etag, err = uow.UpdateStudentFields(ctx, req.ActorUUID, target.UUID, updates, target.ETag)
		if err != nil {
			return nil, fmt.Errorf("reconcile target fields: %w", err)
		}
	}

	if err := uow.DeleteStudent(ctx, req.ActorUUID, source.UUID, map[string]interface{}{
		"merged_into": target.UUID,
		"id":          source.ID,
	}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &domain.AbortedError{Op: "delete source student", Err: ctxErr}
		}
		if store.IsRetryableError(err) {
			return nil, &domain.ConflictRetryableError{Op: "delete source student", Err: err}
		}
		return nil, &domain.FatalInconsistencyError{Op: "delete source student", Err: err}
	}

	if err := uow.LogStudentMerged(ctx, req.ActorUUID, target.UUID, etag, report.eventPayload()); err != nil {
		return nil, fmt.Errorf("log merge event: %w", err)
	}

	return report, nil
}

// checkPreconditions loads both students, locking the target, and applies
// the precondition checks in order.
func (e *Engine) checkPreconditions(ctx context.Context, uow UnitOfWork, req MergeRequest) (*domain.Student, *domain.Student, error) {
	target, targetErr := uow.GetStudentForUpdate(ctx, req.TargetUUID)
	source, sourceErr := uow.GetStudent(ctx, req.SourceUUID)

	if sourceErr != nil {
		return nil, nil, withRole(sourceErr, "source")
	}
	if targetErr != nil {
		return nil, nil, withRole(targetErr, "target")
	}
	if source.UUID == target.UUID {
		return nil, nil, &domain.InvalidOperationError{Reason: domain.ReasonSelfMerge, Detail: source.UUID}
	}
	if source.IsClaimed() {
		return nil, nil, &domain.InvalidOperationError{Reason: domain.ReasonSourceClaimed, Detail: source.UUID}
	}
	if !target.IsClaimed() {
		return nil, nil, &domain.InvalidOperationError{Reason: domain.ReasonTargetNotClaimed, Detail: target.UUID}
	}
	return source, target, nil
}

func (e *Engine) rejectConflicts(resolutions []Resolution) error {
	var detail string
	for i, res := range resolutions {
		if len(res.Conflicting) == 0 {
			continue
		}
		if detail != "" {
			detail += ", "
		}
		detail += fmt.Sprintf("%d %s", len(res.Conflicting), e.catalog[i].ReportKey)
	}
	if detail == "" {
		return nil
	}
	return &domain.InvalidOperationError{Reason: domain.ReasonUnresolvedConflicts, Detail: detail}
}

func (e *Engine) logFailure(log zerolog.Logger, err error) {
	if errors.Is(err, domain.ErrFatalInconsistency) {
		log.Error().Err(err).Bool("fatal_inconsistency", true).Msg("merge rolled back: store inconsistency")
		return
	}
	log.Warn().Err(err).Str("outcome", outcomeOf(err)).Msg("merge failed")
}

func withRole(err error, role string) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return &domain.NotFoundError{Kind: nf.Kind, Role: role, ID: nf.ID}
	}
	return err
}

func outcomeOf(err error) string {
	var aborted *domain.AbortedError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidOperation):
		return "invalid"
	case errors.Is(err, domain.ErrConflictRetryable):
		return "conflict"
	case errors.Is(err, domain.ErrFatalInconsistency):
		return "fatal"
	case errors.As(err, &aborted):
		return "aborted"
	default:
		return "error"
	}
}
