// Package notify delivers committed workflow events to downstream consumers.
// Delivery is at-least-once: a failed Notify is retried, so consumers must
// drop repeats by event id.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/balaji090804/placement-portal/internal/placement"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// Notifier receives one event per call.
type Notifier interface {
	Notify(ctx context.Context, e placement.Event) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, e placement.Event) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, e placement.Event) error { return f(ctx, e) }

// Log writes each event to the structured log.
type Log struct{}

// Notify implements Notifier.
func (Log) Notify(ctx context.Context, e placement.Event) error {
	klog.FromContext(ctx).Info("Workflow event",
		"eventID", e.ID,
		"kind", e.Kind,
		"entity", e.EntityKind,
		"entityID", e.EntityID,
		"actor", e.ActorID,
	)
	return nil
}

// RedisPublisher publishes each event as JSON on a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Notify implements Notifier.
func (p *RedisPublisher) Notify(ctx context.Context, e placement.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}
	return nil
}

// Multi fans an event out to several notifiers. Every notifier is called even
// when an earlier one fails.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, e placement.Event) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Notify(ctx, e))
	}
	return err
}

// Recorder keeps delivered events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []placement.Event
	fail   int
}

// FailNext makes the next n Notify calls return an error without recording.
func (r *Recorder) FailNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = n
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, e placement.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return fmt.Errorf("recorder: injected failure for event %s", e.ID)
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events in delivery order.
func (r *Recorder) Events() []placement.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]placement.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in delivery order.
func (r *Recorder) Kinds() []placement.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]placement.EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Dispatcher retries delivery of each event up to a fixed number of attempts.
// Delivery failures never undo the committed change; they are returned to the
// caller for logging only.
type Dispatcher struct {
	next        Notifier
	maxAttempts int
	backoff     time.Duration
}

// NewDispatcher wraps next with retry. maxAttempts below 1 is treated as 1.
func NewDispatcher(next Notifier, maxAttempts int, backoff time.Duration) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{next: next, maxAttempts: maxAttempts, backoff: backoff}
}

// Dispatch delivers events in order. An event that still fails after the last
// attempt is logged and skipped; the combined error covers every such event.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...placement.Event) error {
	logger := klog.FromContext(ctx)
	var errs error
	for _, e := range events {
		if err := d.deliver(ctx, e); err != nil {
			logger.Error(err, "Dropping workflow event after retries", "eventID", e.ID, "kind", e.Kind, "attempts", d.maxAttempts)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (d *Dispatcher) deliver(ctx context.Context, e placement.Event) error {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = d.next.Notify(ctx, e); err == nil {
			return nil
		}
		klog.FromContext(ctx).V(2).Info("Event delivery failed", "eventID", e.ID, "attempt", attempt, "err", err)
		if attempt == d.maxAttempts || d.backoff <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return multierr.Append(err, ctx.Err())
		case <-time.After(d.backoff * time.Duration(attempt)):
		}
	}
	return err
}
