package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/seat-booking/internal/model"
)

const screeningID = 1

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.BookingEvent
}

func (r *recordingNotifier) Notify(_ context.Context, ev model.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) Events() []model.BookingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.BookingEvent(nil), r.events...)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, ev model.BookingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type fixture struct {
	engine   *Engine
	store    *memStore
	clock    *fakeClock
	notifier *recordingNotifier
}

// newFixture returns an engine over a 2x3 screening.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := newMemStore()
	store.addScreening(model.Screening{ID: screeningID, ScreenID: 7, Title: "Metropolis", StartsAt: t0.Add(4 * time.Hour), SeatRows: 2, SeatCols: 3})
	clk := &fakeClock{now: t0}
	rec := &recordingNotifier{}
	base := []Option{WithClock(clk.Now), WithNotifier(rec)}
	e := NewEngine(store, append(base, opts...)...)
	t.Cleanup(e.Wait)
	return &fixture{engine: e, store: store, clock: clk, notifier: rec}
}

func seat(row, col int) model.SeatKey { return model.SeatKey{Row: row, Col: col} }

func (f *fixture) reserve(t *testing.T, holder uint64, seats ...model.SeatKey) *Reservation {
	t.Helper()
	r, err := f.engine.Reserve(context.Background(), ReserveRequest{ScreeningID: screeningID, HolderID: holder, Seats: seats})
	if err != nil {
		t.Fatalf("reserve %v for %d: %v", seats, holder, err)
	}
	return r
}

func (f *fixture) confirm(holder uint64, key string, seats ...model.SeatKey) (*model.Booking, bool, error) {
	return f.engine.Confirm(context.Background(), ConfirmRequest{
		ScreeningID:    screeningID,
		HolderID:       holder,
		Seats:          seats,
		Amount:         500,
		IdempotencyKey: key,
	})
}
