package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// memState is everything memStore persists.  WithTx works on a clone and
// swaps it in on success, which gives the same all-or-nothing outcome as
// a database transaction.
type memState struct {
	screenings map[uint64]model.Screening
	seats      map[uint64]map[model.SeatKey]model.SeatStatus
	locks      []model.SeatLock
	bookings   map[uint64]model.Booking
	nextLock   uint64
	nextBook   uint64
}

func (s *memState) clone() *memState {
	c := &memState{
		screenings: make(map[uint64]model.Screening, len(s.screenings)),
		seats:      make(map[uint64]map[model.SeatKey]model.SeatStatus, len(s.seats)),
		locks:      append([]model.SeatLock(nil), s.locks...),
		bookings:   make(map[uint64]model.Booking, len(s.bookings)),
		nextLock:   s.nextLock,
		nextBook:   s.nextBook,
	}
	for k, v := range s.screenings {
		c.screenings[k] = v
	}
	for id, m := range s.seats {
		cm := make(map[model.SeatKey]model.SeatStatus, len(m))
		for k, v := range m {
			cm[k] = v
		}
		c.seats[id] = cm
	}
	for k, v := range s.bookings {
		v.Seats = append([]model.BookedSeat(nil), v.Seats...)
		c.bookings[k] = v
	}
	return c
}

// memStore is an in-memory repository.Store.  Transactions are
// serialized.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// commitErrs are returned, one per transaction, after fn succeeded;
	// the transaction's writes are discarded.
	commitErrs []error
	// beforeCreateLocks runs inside CreateLocks before the uniqueness
	// check and may add rows to the state, simulating a racing holder.
	beforeCreateLocks func(st *memState)

	txCount int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		screenings: map[uint64]model.Screening{},
		seats:      map[uint64]map[model.SeatKey]model.SeatStatus{},
		bookings:   map[uint64]model.Booking{},
	}}
}

func (m *memStore) addScreening(sc model.Screening) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.screenings[sc.ID] = sc
}

func (m *memStore) failCommits(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErrs = append(m.commitErrs, errs...)
}

func (m *memStore) seatStatus(screeningID uint64, k model.SeatKey) model.SeatStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.seats[screeningID][k]
}

func (m *memStore) seatCount(screeningID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.seats[screeningID])
}

func (m *memStore) locksOf(screeningID uint64) []model.SeatLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SeatLock
	for _, l := range m.state.locks {
		if l.ScreeningID == screeningID {
			out = append(out, l)
		}
	}
	return out
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.bookings)
}

func (m *memStore) transactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCount
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	work := m.state.clone()
	if err := fn(ctx, &memTx{st: work, m: m}); err != nil {
		return err
	}
	if len(m.commitErrs) > 0 {
		err := m.commitErrs[0]
		m.commitErrs = m.commitErrs[1:]
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) Booking(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	return &b, nil
}

func (m *memStore) BookingByIdempotencyKey(_ context.Context, userID, screeningID uint64, key string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.state.bookings {
		if key != "" && b.UserID == userID && b.ScreeningID == screeningID && b.IdempotencyKey == key {
			return &b, nil
		}
	}
	return nil, model.ErrBookingNotFound
}

func (m *memStore) BookingsByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Booking{}
	for _, b := range m.state.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memTx struct {
	st *memState
	m  *memStore
}

func (t *memTx) Screening(_ context.Context, id uint64) (*model.Screening, error) {
	sc, ok := t.st.screenings[id]
	if !ok {
		return nil, model.ErrScreeningNotFound
	}
	return &sc, nil
}

func (t *memTx) SeatCount(_ context.Context, id uint64) (int, error) {
	return len(t.st.seats[id]), nil
}

func (t *memTx) CreateSeats(_ context.Context, id uint64, seats []model.Seat) error {
	m := t.st.seats[id]
	if m == nil {
		m = map[model.SeatKey]model.SeatStatus{}
		t.st.seats[id] = m
	}
	for _, s := range seats {
		if _, ok := m[s.Key()]; !ok {
			m[s.Key()] = s.Status
		}
	}
	return nil
}

func (t *memTx) Seats(_ context.Context, id uint64) ([]model.Seat, error) {
	out := make([]model.Seat, 0, len(t.st.seats[id]))
	for k, st := range t.st.seats[id] {
		out = append(out, model.Seat{Row: k.Row, Col: k.Col, Status: st})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out, nil
}

func (t *memTx) LockSeats(_ context.Context, id uint64, keys []model.SeatKey) ([]model.Seat, error) {
	out := []model.Seat{}
	for _, k := range keys {
		if st, ok := t.st.seats[id][k]; ok {
			out = append(out, model.Seat{Row: k.Row, Col: k.Col, Status: st})
		}
	}
	return out, nil
}

func (t *memTx) SetSeatStatus(_ context.Context, id uint64, keys []model.SeatKey, from []model.SeatStatus, to model.SeatStatus) (int64, error) {
	var n int64
	for _, k := range keys {
		cur, ok := t.st.seats[id][k]
		if !ok {
			continue
		}
		for _, f := range from {
			if cur == f {
				t.st.seats[id][k] = to
				n++
				break
			}
		}
	}
	return n, nil
}

func (t *memTx) PurgeExpiredLocks(_ context.Context, id uint64, now time.Time) (int64, error) {
	var n int64
	kept := t.st.locks[:0:0]
	for _, l := range t.st.locks {
		if l.ScreeningID == id && l.Expired(now) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	t.st.locks = kept
	return n, nil
}

func (t *memTx) ActiveLocks(_ context.Context, id uint64) ([]model.SeatLock, error) {
	var out []model.SeatLock
	for _, l := range t.st.locks {
		if l.ScreeningID == id && l.Status.Active() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memTx) CreateLocks(_ context.Context, locks []model.SeatLock) error {
	if t.m.beforeCreateLocks != nil {
		t.m.beforeCreateLocks(t.st)
	}
	keys := make([]model.SeatKey, 0, len(locks))
	for _, l := range locks {
		keys = append(keys, l.Seat)
	}
	for _, l := range locks {
		for _, ex := range t.st.locks {
			if ex.ScreeningID == l.ScreeningID && ex.Seat == l.Seat && ex.Status.Active() {
				return model.NewSeatError(model.ErrDuplicateLock, keys)
			}
		}
	}
	for _, l := range locks {
		t.st.nextLock++
		l.ID = t.st.nextLock
		t.st.locks = append(t.st.locks, l)
	}
	return nil
}

func inKeys(keys []model.SeatKey, k model.SeatKey) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}

func (t *memTx) DeleteHeldLocks(_ context.Context, id, holder uint64, keys []model.SeatKey) (int64, error) {
	var n int64
	kept := t.st.locks[:0:0]
	for _, l := range t.st.locks {
		if l.ScreeningID == id && l.HolderID == holder && l.Status == model.LockHeld && (len(keys) == 0 || inKeys(keys, l.Seat)) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	t.st.locks = kept
	return n, nil
}

func (t *memTx) MarkLocksUsed(_ context.Context, id, holder uint64, keys []model.SeatKey, now time.Time) (int64, error) {
	var n int64
	for i, l := range t.st.locks {
		if l.ScreeningID == id && l.HolderID == holder && l.Status == model.LockHeld && l.ExpiresAt.After(now) && inKeys(keys, l.Seat) {
			t.st.locks[i].Status = model.LockUsed
			n++
		}
	}
	return n, nil
}

func (t *memTx) ReleaseUsedLocks(_ context.Context, id uint64, keys []model.SeatKey) (int64, error) {
	var n int64
	for i, l := range t.st.locks {
		if l.ScreeningID == id && l.Status == model.LockUsed && inKeys(keys, l.Seat) {
			t.st.locks[i].Status = model.LockReleased
			n++
		}
	}
	return n, nil
}

func (t *memTx) CreateBooking(_ context.Context, b *model.Booking) error {
	if b.IdempotencyKey != "" {
		for _, ex := range t.st.bookings {
			if ex.UserID == b.UserID && ex.ScreeningID == b.ScreeningID && ex.IdempotencyKey == b.IdempotencyKey {
				return model.ErrDuplicateIdempotencyKey
			}
		}
	}
	t.st.nextBook++
	b.ID = t.st.nextBook
	stored := *b
	stored.Seats = append([]model.BookedSeat(nil), b.Seats...)
	t.st.bookings[b.ID] = stored
	return nil
}

func (t *memTx) BookingForUpdate(_ context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	b.Seats = append([]model.BookedSeat(nil), b.Seats...)
	return &b, nil
}

func (t *memTx) CancelBooking(_ context.Context, id uint64, at time.Time) error {
	b, ok := t.st.bookings[id]
	if !ok {
		return model.ErrBookingNotFound
	}
	if b.Status == model.BookingConfirmed {
		b.Status = model.BookingCancelled
		b.CancelledAt = &at
		t.st.bookings[id] = b
	}
	return nil
}

var _ repository.Store = (*memStore)(nil)
