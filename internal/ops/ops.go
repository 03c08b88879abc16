// Package ops is the pipeline orchestrator: the single entry point that
// composes the application, slot and offer state machines, takes the
// per-entity locks, writes the audit log and emits workflow events.
package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/balaji090804/placement-portal/internal/config"
	"github.com/balaji090804/placement-portal/internal/db"
	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/lock"
	"github.com/balaji090804/placement-portal/internal/metrics"
	"github.com/balaji090804/placement-portal/internal/notify"
	"github.com/balaji090804/placement-portal/internal/placement"
	"github.com/oklog/ulid/v2"
	"k8s.io/klog/v2"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// MaxNotesChars bounds the free-text notes on an application.
const MaxNotesChars = 4000

const defaultNotifyBackoff = 50 * time.Millisecond

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Orchestrator runs every workflow operation. It is safe for concurrent use.
type Orchestrator struct {
	db       *sql.DB
	cfg      *config.Config
	locker   lock.Locker
	notifier notify.Notifier
	events   *notify.Dispatcher
	metrics  *metrics.Metrics
	now      func() time.Time

	// afterBook runs between the booking and the transition of
	// ScheduleInterview. Tests use it to interleave a competing writer.
	afterBook func()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocker replaces the default in-process locker.
func WithLocker(l lock.Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithNotifier sets where committed events are delivered.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithMetrics records operation outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator over database. With no options it uses an
// in-process locker bounded by cfg's lock timeout and logs events.
func New(database *sql.DB, cfg *config.Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	o := &Orchestrator{
		db:       database,
		cfg:      cfg,
		notifier: notify.Log{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.locker == nil {
		o.locker = lock.NewLocal(cfg.LockTimeout())
	}
	o.events = notify.NewDispatcher(o.notifier, cfg.NotifyMaxAttempts, defaultNotifyBackoff)
	return o
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// Ping checks that the database is reachable.
func (o *Orchestrator) Ping(ctx context.Context) error {
	if err := o.db.PingContext(ctx); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (o *Orchestrator) unixNow() int64 {
	return o.now().Unix()
}

// lock takes keys in canonical order and records the wait.
func (o *Orchestrator) lock(ctx context.Context, op string, keys ...lock.Key) (func(), error) {
	start := time.Now()
	release, err := lock.AcquireAll(ctx, o.locker, keys...)
	o.metrics.LockWait(op, time.Since(start))
	if err != nil {
		klog.FromContext(ctx).V(2).Info("Lock not acquired", "op", op, "keys", keys, "err", err)
		return nil, err
	}
	return release, nil
}

// tx runs fn in a write transaction and maps untyped failures to TIMEOUT
// (caller gave up) or INTERNAL.
func (o *Orchestrator) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	err := db.WithTx(ctx, o.db, fn)
	if err == nil {
		return nil
	}
	if _, ok := err.(*errors.PlacementError); ok {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.NewTimeout("transaction", ctxErr)
	}
	return errors.NewInternal(err)
}

// emit delivers events for a change that has already committed. The caller's
// cancellation no longer applies at this point.
func (o *Orchestrator) emit(ctx context.Context, events ...placement.Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, e := range events {
		result := "delivered"
		if err := o.events.Dispatch(ctx, e); err != nil {
			result = "failed"
		}
		o.metrics.Event(string(e.Kind), result)
	}
}

// audit appends an entry stamped with a fresh id.
func (o *Orchestrator) audit(ctx context.Context, tx *sql.Tx, e placement.AuditEntry) error {
	id, err := generateULID()
	if err != nil {
		return errors.NewInternal(err)
	}
	e.ID = id
	return db.AppendAudit(ctx, tx, &e)
}

// result labels an outcome for metrics.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(errors.CodeOf(err))
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewInvalidRequest(name + " is required")
	}
	return nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

func pagination(limit, offset, count, total int) Pagination {
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+count < total,
		Total:   total,
	}
}

// generateULID creates a new ULID string.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
