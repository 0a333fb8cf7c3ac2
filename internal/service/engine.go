// Package service implements the seat booking engine: the lock manager
// that reserves and releases seats, the confirmation engine that turns
// held seats into a booking and the cancellation engine that reverses
// one.  The engine keeps no seat state in memory; every operation runs
// as a unit of work against repository.Store, reconciles the seat map
// first and is replayed once when storage reports a transient failure.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/txn"
)

const (
	DefaultLockTTL       = 2 * time.Minute
	DefaultNotifyTimeout = 5 * time.Second
)

// Engine is safe for concurrent use by any number of request handlers.
type Engine struct {
	store         repository.Store
	lockTTL       time.Duration
	now           func() time.Time
	notifier      Notifier
	notifyTimeout time.Duration
	log           *zap.Logger

	inflight sync.WaitGroup
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLockTTL sets how long a reservation stays HELD.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNotifier installs the collaborator informed of booking transitions.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithNotifyTimeout bounds a single notification attempt.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// WithLogger sets the logger used for retries and side-effect failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine builds an Engine over store.
func NewEngine(store repository.Store, opts ...Option) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	e := &Engine{
		store:         store,
		lockTTL:       DefaultLockTTL,
		now:           time.Now,
		notifier:      NopNotifier{},
		notifyTimeout: DefaultNotifyTimeout,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LockTTL returns the configured reservation lifetime.
func (e *Engine) LockTTL() time.Duration { return e.lockTTL }

// Wait blocks until every dispatched notification has finished.  It is
// called on shutdown.
func (e *Engine) Wait() { e.inflight.Wait() }

func (e *Engine) clock() time.Time { return e.now().UTC() }

// runTx executes fn in one transaction and replays it once on a
// transient failure.  fn must assign its results afresh on every call.
func (e *Engine) runTx(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	unit := func(ctx context.Context) error {
		return e.store.WithTx(ctx, fn)
	}
	return txn.RetryOnce(ctx, unit, func(err error) {
		e.log.Warn("transient storage failure, retrying once",
			zap.String("op", op),
			zap.Error(err),
		)
	})
}

// dispatch hands ev to the notifier on its own goroutine with a detached
// context, so neither the caller's cancellation nor a slow collaborator
// can affect the committed transition.
func (e *Engine) dispatch(typ model.EventType, b model.Booking) {
	b.Seats = append([]model.BookedSeat(nil), b.Seats...)
	ev := model.BookingEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Booking:    b,
		OccurredAt: e.clock(),
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("notifier panicked",
					zap.String("event", string(ev.Type)),
					zap.Uint64("booking_id", ev.Booking.ID),
					zap.Any("panic", r),
				)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.log.Warn("booking notification failed",
				zap.String("event", string(ev.Type)),
				zap.String("event_id", ev.ID),
				zap.Uint64("booking_id", ev.Booking.ID),
				zap.Error(err),
			)
		}
	}()
}
