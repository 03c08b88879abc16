// Package lock provides per-entity mutual exclusion for the placement
// workflow. Locks are keyed by entity kind and id and are held for the whole
// read-check-write of one operation.
package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/balaji090804/placement-portal/internal/errors"
)

// Kind orders lock keys. Operations that touch several entities take their
// locks in ascending Kind order, which rules out lock-order deadlocks.
type Kind int

const (
	KindApplication Kind = iota + 1
	KindSlot
	KindOffer
)

func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindSlot:
		return "slot"
	case KindOffer:
		return "offer"
	}
	return "unknown"
}

// Key identifies one lockable entity.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}

// Application returns the lock key of an application.
func Application(id string) Key { return Key{Kind: KindApplication, ID: id} }

// Slot returns the lock key of an interview slot.
func Slot(id string) Key { return Key{Kind: KindSlot, ID: id} }

// Offer returns the lock key of an offer.
func Offer(id string) Key { return Key{Kind: KindOffer, ID: id} }

// Locker grants exclusive access to a key.
//
// Acquire blocks until the key is free, the locker's wait budget runs out
// (BUSY), or ctx ends (TIMEOUT). The returned release func is safe to call
// more than once.
type Locker interface {
	Acquire(ctx context.Context, key Key) (release func(), err error)
}

// AcquireAll locks every key in canonical order (application, slot, offer;
// then by id) and returns a single release for all of them. If any key
// cannot be taken, the ones already held are released before returning.
func AcquireAll(ctx context.Context, l Locker, keys ...Key) (func(), error) {
	ordered := slices.Clone(keys)
	slices.SortFunc(ordered, func(a, b Key) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	ordered = slices.Compact(ordered)

	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range ordered {
		release, err := l.Acquire(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// waitError maps a failed wait to BUSY or TIMEOUT. A done ctx always wins so
// callers that gave up see TIMEOUT.
func waitError(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTimeout(key.String(), err)
	}
	return errors.NewBusy(key.String())
}

// Local is an in-process Locker. Each key is a one-slot channel created on
// first use and dropped when no goroutine holds or waits for it.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[Key]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker whose Acquire gives up with BUSY
// after wait. A non-positive wait means wait until ctx ends.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		wait:  wait,
		slots: make(map[Key]*localSlot),
	}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, key Key) (func(), error) {
	if ctx.Err() != nil {
		return nil, waitError(ctx, key)
	}
	s := l.ref(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, waitError(ctx, key)
	case <-timeout:
		l.unref(key, s)
		return nil, waitError(ctx, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

// Held reports how many keys currently have a holder or a waiter.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Local) ref(key Key) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key Key, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
