package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// Tx is the set of operations available inside one unit of work.  Every
// call made through a Tx participates in the same database transaction;
// nothing is visible to other units until WithTx commits.
type Tx interface {
	// Screening loads a screening with its grid dimensions.  It returns
	// model.ErrScreeningNotFound when the id is unknown.
	Screening(ctx context.Context, screeningID uint64) (*model.Screening, error)

	SeatCount(ctx context.Context, screeningID uint64) (int, error)
	CreateSeats(ctx context.Context, screeningID uint64, seats []model.Seat) error
	Seats(ctx context.Context, screeningID uint64) ([]model.Seat, error)
	// LockSeats reads the given seats with row locks held until commit.
	// Unknown keys are simply absent from the result.
	LockSeats(ctx context.Context, screeningID uint64, keys []model.SeatKey) ([]model.Seat, error)
	// SetSeatStatus moves the given seats to status, touching only rows
	// whose current status is one of from.  It returns the rows changed.
	SetSeatStatus(ctx context.Context, screeningID uint64, keys []model.SeatKey, from []model.SeatStatus, to model.SeatStatus) (int64, error)

	PurgeExpiredLocks(ctx context.Context, screeningID uint64, now time.Time) (int64, error)
	ActiveLocks(ctx context.Context, screeningID uint64) ([]model.SeatLock, error)
	// CreateLocks inserts HELD locks.  A uniqueness violation on any
	// seat returns model.ErrDuplicateLock.
	CreateLocks(ctx context.Context, locks []model.SeatLock) error
	// DeleteHeldLocks removes the holder's HELD locks on keys, or on the
	// whole screening when keys is empty.
	DeleteHeldLocks(ctx context.Context, screeningID, holderID uint64, keys []model.SeatKey) (int64, error)
	// MarkLocksUsed flips the holder's unexpired HELD locks on keys to USED.
	MarkLocksUsed(ctx context.Context, screeningID, holderID uint64, keys []model.SeatKey, now time.Time) (int64, error)
	// ReleaseUsedLocks flips USED locks on keys to RELEASED.
	ReleaseUsedLocks(ctx context.Context, screeningID uint64, keys []model.SeatKey) (int64, error)

	// CreateBooking inserts b and fills in its ID and CreatedAt.  A clash
	// on the idempotency key returns model.ErrDuplicateIdempotencyKey.
	CreateBooking(ctx context.Context, b *model.Booking) error
	// BookingForUpdate loads a booking with a row lock.  It returns
	// model.ErrBookingNotFound when the id is unknown.
	BookingForUpdate(ctx context.Context, bookingID uint64) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID uint64, at time.Time) error
}

// Store is the durable source of truth for seat maps, seat locks and
// bookings.
type Store interface {
	// WithTx runs fn inside a transaction, committing when fn returns nil
	// and rolling back otherwise.  Coordination failures are returned
	// marked with txn.Transient.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Booking(ctx context.Context, bookingID uint64) (*model.Booking, error)
	BookingByIdempotencyKey(ctx context.Context, userID, screeningID uint64, key string) (*model.Booking, error)
	BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// MySQLStore implements Store on top of the table repositories.
type MySQLStore struct {
	db          *sql.DB
	screenings  *ScreeningRepo
	seats       *ScreeningSeatRepo
	locks       *SeatLockRepo
	bookings    *BookingRepo
	txIsolation sql.IsolationLevel
}

// Isolation is the level every unit of work runs at.  Each statement
// reads the latest committed rows, so reconciliation never acts on a
// snapshot older than the rows its writes touch.
const Isolation = sql.LevelReadCommitted

// NewMySQLStore wires the table repositories around db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	if db == nil {
		panic("nil database passed to NewMySQLStore")
	}
	return &MySQLStore{
		db:          db,
		screenings:  NewScreeningRepo(db),
		seats:       NewScreeningSeatRepo(db),
		locks:       NewSeatLockRepo(db),
		bookings:    NewBookingRepo(db),
		txIsolation: Isolation,
	}
}

// WithTx implements Store.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: s.txIsolation})
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &unitOfWork{tx: tx, s: s}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	committed = true
	return nil
}

// Booking implements Store.
func (s *MySQLStore) Booking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return s.bookings.GetByID(ctx, bookingID)
}

// BookingByIdempotencyKey implements Store.
func (s *MySQLStore) BookingByIdempotencyKey(ctx context.Context, userID, screeningID uint64, key string) (*model.Booking, error) {
	return s.bookings.GetByIdempotencyKey(ctx, userID, screeningID, key)
}

// BookingsByUser implements Store.
func (s *MySQLStore) BookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// unitOfWork binds the table repositories to one *sql.Tx.
type unitOfWork struct {
	tx *sql.Tx
	s  *MySQLStore
}

func (u *unitOfWork) Screening(ctx context.Context, screeningID uint64) (*model.Screening, error) {
	return u.s.screenings.GetTx(ctx, u.tx, screeningID)
}

func (u *unitOfWork) SeatCount(ctx context.Context, screeningID uint64) (int, error) {
	return u.s.seats.CountTx(ctx, u.tx, screeningID)
}

func (u *unitOfWork) CreateSeats(ctx context.Context, screeningID uint64, seats []model.Seat) error {
	return u.s.seats.CreateGridTx(ctx, u.tx, screeningID, seats)
}

func (u *unitOfWork) Seats(ctx context.Context, screeningID uint64) ([]model.Seat, error) {
	return u.s.seats.ListTx(ctx, u.tx, screeningID)
}

func (u *unitOfWork) LockSeats(ctx context.Context, screeningID uint64, keys []model.SeatKey) ([]model.Seat, error) {
	return u.s.seats.LockTx(ctx, u.tx, screeningID, keys)
}

func (u *unitOfWork) SetSeatStatus(ctx context.Context, screeningID uint64, keys []model.SeatKey, from []model.SeatStatus, to model.SeatStatus) (int64, error) {
	return u.s.seats.BulkUpdateStatusTx(ctx, u.tx, screeningID, keys, from, to)
}

func (u *unitOfWork) PurgeExpiredLocks(ctx context.Context, screeningID uint64, now time.Time) (int64, error) {
	return u.s.locks.DeleteExpiredTx(ctx, u.tx, screeningID, now)
}

func (u *unitOfWork) ActiveLocks(ctx context.Context, screeningID uint64) ([]model.SeatLock, error) {
	return u.s.locks.ActiveTx(ctx, u.tx, screeningID)
}

func (u *unitOfWork) CreateLocks(ctx context.Context, locks []model.SeatLock) error {
	return u.s.locks.CreateMultipleTx(ctx, u.tx, locks)
}

func (u *unitOfWork) DeleteHeldLocks(ctx context.Context, screeningID, holderID uint64, keys []model.SeatKey) (int64, error) {
	return u.s.locks.DeleteHeldTx(ctx, u.tx, screeningID, holderID, keys)
}

func (u *unitOfWork) MarkLocksUsed(ctx context.Context, screeningID, holderID uint64, keys []model.SeatKey, now time.Time) (int64, error) {
	return u.s.locks.MarkUsedTx(ctx, u.tx, screeningID, holderID, keys, now)
}

func (u *unitOfWork) ReleaseUsedLocks(ctx context.Context, screeningID uint64, keys []model.SeatKey) (int64, error) {
	return u.s.locks.ReleaseUsedTx(ctx, u.tx, screeningID, keys)
}

func (u *unitOfWork) CreateBooking(ctx context.Context, b *model.Booking) error {
	return u.s.bookings.CreateTx(ctx, u.tx, b)
}

func (u *unitOfWork) BookingForUpdate(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return u.s.bookings.GetForUpdateTx(ctx, u.tx, bookingID)
}

func (u *unitOfWork) CancelBooking(ctx context.Context, bookingID uint64, at time.Time) error {
	return u.s.bookings.CancelTx(ctx, u.tx, bookingID, at)
}
