package catalogue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/store"
)

// Repository is the persistence the service needs. *store.Store implements it.
type Repository interface {
	Building(ctx context.Context, id int64) (ir.Building, error)
	BuildingAt(ctx context.Context, id, revision int64) (ir.Building, error)
	BuildingsByReference(ctx context.Context, kind ir.ReferenceKind, value ir.Value) ([]ir.Building, error)
	BuildingsNear(ctx context.Context, p ir.Point) ([]ir.Building, error)
	History(ctx context.Context, buildingID int64) ([]ir.LogEntry, error)
	LogEntry(ctx context.Context, logID int64) (ir.LogEntry, error)
	UpdateBuilding(ctx context.Context, id, expectedRevision int64, proposed ir.Object, principal ir.Principal) (ir.Building, error)
	LikeBuilding(ctx context.Context, id int64, principal ir.Principal) (ir.Building, error)
}

// DefaultRetryBackoff is the pause before the first like retry. Later
// retries wait proportionally longer.
const DefaultRetryBackoff = 5 * time.Millisecond

// Service exposes the catalogue operations to transports.
// It is safe for concurrent use; all coordination happens in the store.
type Service struct {
	repo         Repository
	likeRetries  int
	backoff      time.Duration
	logCacheSize int
	entries      *lru.Cache[int64, ir.LogEntry]
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLikeRetries sets how many times a like is retried after a transient
// store failure. Zero disables retries.
//
// Default: 3 (DefaultLikeRetries)
func WithLikeRetries(n int) Option {
	return func(s *Service) {
		s.likeRetries = n
	}
}

// WithRetryBackoff sets the pause before the first like retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) {
		s.backoff = d
	}
}

// WithLogCacheSize sets how many revision log entries are cached for
// reverts. Zero disables the cache.
//
// Default: 4096 (DefaultLogCacheSize)
func WithLogCacheSize(n int) Option {
	return func(s *Service) {
		s.logCacheSize = n
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service over repo.
func New(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		likeRetries:  DefaultLikeRetries,
		backoff:      DefaultRetryBackoff,
		logCacheSize: DefaultLogCacheSize,
		logger:       slog.Default(),
		tracer:       otel.Tracer("brickbook/catalogue"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.entries = newLogCache(s.logCacheSize)
	return s
}

// SaveBuilding applies a proposed record through the optimistic update
// protocol. proposed is the record as the client last saw it, edited, and
// must include revision_id.
//
// Returns VALIDATION before any transaction for malformed input, CONFLICT if
// revision_id is stale, TRANSIENT on store failure.
func (s *Service) SaveBuilding(ctx context.Context, id int64, proposed ir.Object, principal ir.Principal) (ir.Building, error) {
	const op = "save"
	ctx, span := s.tracer.Start(ctx, "catalogue.SaveBuilding",
		trace.WithAttributes(attribute.Int64("building_id", id)),
	)
	defer span.End()
	start := time.Now()

	b, err := s.save(ctx, op, id, proposed, principal)
	s.observe(ctx, span, op, id, principal, start, b, err)
	return b, err
}

func (s *Service) save(ctx context.Context, op string, id int64, proposed ir.Object, principal ir.Principal) (ir.Building, error) {
	if err := checkPrincipal(op, id, principal); err != nil {
		return ir.Building{}, err
	}
	p, err := ParseProposal(id, proposed)
	if err != nil {
		return ir.Building{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("expected_revision", p.ExpectedRevision))

	b, err := s.repo.UpdateBuilding(ctx, id, p.ExpectedRevision, p.Fields, principal)
	if err != nil {
		return ir.Building{}, err
	}
	if b.RevisionID != p.ExpectedRevision {
		revisionsCommitted.Inc()
	}
	return b, nil
}

// LikeBuilding records that principal likes the building.
//
// TRANSIENT failures are retried up to the configured budget with a linear
// backoff; the final error is returned once the budget is spent.
// ALREADY_ACTED is returned for a repeated like and is never retried.
func (s *Service) LikeBuilding(ctx context.Context, id int64, principal ir.Principal) (ir.Building, error) {
	const op = "like"
	ctx, span := s.tracer.Start(ctx, "catalogue.LikeBuilding",
		trace.WithAttributes(attribute.Int64("building_id", id)),
	)
	defer span.End()
	start := time.Now()

	b, err := s.like(ctx, op, id, principal)
	s.observe(ctx, span, op, id, principal, start, b, err)
	return b, err
}

func (s *Service) like(ctx context.Context, op string, id int64, principal ir.Principal) (ir.Building, error) {
	if err := checkPrincipal(op, id, principal); err != nil {
		return ir.Building{}, err
	}

	budget := newRetryBudget(s.likeRetries)
	for {
		b, err := s.repo.LikeBuilding(ctx, id, principal)
		if err == nil {
			revisionsCommitted.Inc()
			return b, nil
		}
		if !store.IsTransient(err) || ctx.Err() != nil {
			return ir.Building{}, err
		}
		if spendErr := budget.Spend(err); spendErr != nil {
			return ir.Building{}, spendErr
		}

		likeRetriesTotal.Inc()
		s.logger.Debug("retrying like",
			"building_id", id,
			"attempt", budget.Used(),
			"error", err,
		)
		// A canceled wait surfaces the last store failure, still TRANSIENT.
		if sleepContext(ctx, s.backoff*time.Duration(budget.Used())) != nil {
			return ir.Building{}, err
		}
	}
}

// RevertChange undoes the change recorded by log entry logID by submitting
// its reverse patch through the optimistic update protocol, which writes a
// new log entry of its own. expectedRevision is the revision the caller
// last saw.
//
// Returns NOT_FOUND if the entry does not exist or belongs to another
// building, VALIDATION for counter entries, which carry no reverse patch.
func (s *Service) RevertChange(ctx context.Context, id, logID, expectedRevision int64, principal ir.Principal) (ir.Building, error) {
	const op = "revert"
	ctx, span := s.tracer.Start(ctx, "catalogue.RevertChange",
		trace.WithAttributes(
			attribute.Int64("building_id", id),
			attribute.Int64("log_id", logID),
			attribute.Int64("expected_revision", expectedRevision),
		),
	)
	defer span.End()
	start := time.Now()

	b, err := s.revert(ctx, op, id, logID, expectedRevision, principal)
	s.observe(ctx, span, op, id, principal, start, b, err)
	return b, err
}

func (s *Service) revert(ctx context.Context, op string, id, logID, expectedRevision int64, principal ir.Principal) (ir.Building, error) {
	if err := checkPrincipal(op, id, principal); err != nil {
		return ir.Building{}, err
	}
	if expectedRevision < 0 {
		return ir.Building{}, store.NewValidationError(op, id, "%s must be a non-negative integer", ir.FieldRevisionID)
	}

	entry, err := s.logEntry(ctx, logID)
	if err != nil {
		return ir.Building{}, err
	}
	if entry.BuildingID != id {
		return ir.Building{}, store.NewNotFoundError(op, id, fmt.Sprintf("log entry %d", logID))
	}
	if !entry.Revertible() {
		return ir.Building{}, store.NewValidationError(op, id, "log entry %d has no reverse patch", logID)
	}

	b, err := s.repo.UpdateBuilding(ctx, id, expectedRevision, entry.Reverse.Clone(), principal)
	if err != nil {
		return ir.Building{}, err
	}
	if b.RevisionID != expectedRevision {
		revisionsCommitted.Inc()
	}
	return b, nil
}

// Building returns the current state of a building.
func (s *Service) Building(ctx context.Context, id int64) (ir.Building, error) {
	return s.repo.Building(ctx, id)
}

// BuildingAt returns the state of a building right after revision committed.
func (s *Service) BuildingAt(ctx context.Context, id, revision int64) (ir.Building, error) {
	return s.repo.BuildingAt(ctx, id, revision)
}

// History returns the revision log of a building, oldest first.
// Unlike the store, an unknown building is NOT_FOUND rather than an empty log.
func (s *Service) History(ctx context.Context, id int64) ([]ir.LogEntry, error) {
	if _, err := s.repo.Building(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(entries...)
	return entries, nil
}

// FindByReference looks buildings up by an external identifier given as
// text, as it arrives from a query string.
func (s *Service) FindByReference(ctx context.Context, kind ir.ReferenceKind, value string) ([]ir.Building, error) {
	const op = "find by reference"
	if value == "" {
		return nil, store.NewValidationError(op, 0, "reference value is required")
	}
	var v ir.Value = ir.String(value)
	if kind == ir.ReferenceOSM {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, store.NewValidationError(op, 0, "osm reference must be an integer: %q", value)
		}
		v = ir.Int(n)
	}
	return s.repo.BuildingsByReference(ctx, kind, v)
}

// FindNear returns buildings whose footprint contains p.
func (s *Service) FindNear(ctx context.Context, p ir.Point) ([]ir.Building, error) {
	if math.IsNaN(p.Lng) || math.IsNaN(p.Lat) ||
		p.Lng < -180 || p.Lng > 180 || p.Lat < -90 || p.Lat > 90 {
		return nil, store.NewValidationError("find near", 0, "point (%v, %v) is outside WGS84 bounds", p.Lng, p.Lat)
	}
	return s.repo.BuildingsNear(ctx, p)
}

// observe records the outcome of a mutation on the span, the metrics and
// the log.
func (s *Service) observe(
	ctx context.Context,
	span trace.Span,
	op string,
	id int64,
	principal ir.Principal,
	start time.Time,
	b ir.Building,
	err error,
) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := store.KindOf(err)
		operationsTotal.WithLabelValues(op, string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))

		level := slog.LevelInfo
		if kind == store.KindTransient || kind == store.KindInternal {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, op+" rejected",
			"building_id", id,
			"user_id", principal.String(),
			"kind", string(kind),
			"error", err,
		)
		return
	}

	operationsTotal.WithLabelValues(op, "OK").Inc()
	span.SetAttributes(attribute.Int64("revision_id", b.RevisionID))
	s.logger.Info(op+" committed",
		"building_id", id,
		"revision_id", b.RevisionID,
		"user_id", principal.String(),
	)
}

func checkPrincipal(op string, id int64, principal ir.Principal) error {
	if principal == (ir.Principal{}) {
		return store.NewValidationError(op, id, "a principal is required")
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
