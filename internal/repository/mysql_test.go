package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/database"
	"github.com/iliyamo/seat-booking/internal/model"
)

// openTestDB connects to the database named by TEST_MYSQL_DSN, applies
// the schema and seeds a 2x3 screening.  Tests using it are skipped when
// the variable is unset.
func openTestDB(t *testing.T) (*sql.DB, uint64) {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	db, err := database.Open(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	res, err := db.ExecContext(ctx, `INSERT INTO screens (name, seat_rows, seat_cols) VALUES ('test', 2, 3)`)
	require.NoError(t, err)
	screenID, err := res.LastInsertId()
	require.NoError(t, err)
	res, err = db.ExecContext(ctx, `INSERT INTO screenings (screen_id, title, starts_at) VALUES (?, 'test', ?)`,
		screenID, time.Now().UTC().Add(24*time.Hour))
	require.NoError(t, err)
	screeningID, err := res.LastInsertId()
	require.NoError(t, err)
	return db, uint64(screeningID)
}

func TestMySQLStoreLockLifecycle(t *testing.T) {
	db, id := openTestDB(t)
	store := NewMySQLStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	seats := []model.SeatKey{{Row: 1, Col: 1}, {Row: 1, Col: 2}}

	err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		sc, err := tx.Screening(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 6, sc.SeatCount())
		require.NoError(t, tx.CreateSeats(ctx, id, model.SeatGrid(sc.SeatRows, sc.SeatCols)))
		// materializing twice is harmless
		require.NoError(t, tx.CreateSeats(ctx, id, model.SeatGrid(sc.SeatRows, sc.SeatCols)))
		n, err := tx.SeatCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
		return tx.CreateLocks(ctx, GenerateLockRecords(id, 10, seats, now, now.Add(time.Minute)))
	})
	require.NoError(t, err)

	// a second holder collides on the active key
	err = store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateLocks(ctx, GenerateLockRecords(id, 11, seats[1:], now, now.Add(time.Minute)))
	})
	assert.ErrorIs(t, err, model.ErrDuplicateLock)

	err = store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		locks, err := tx.ActiveLocks(ctx, id)
		require.NoError(t, err)
		assert.Len(t, locks, 2)

		n, err := tx.MarkLocksUsed(ctx, id, 10, seats, now)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		n, err = tx.SetSeatStatus(ctx, id, seats, []model.SeatStatus{model.SeatAvailable, model.SeatLocked}, model.SeatBooked)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		// USED locks survive expiry purges
		n, err = tx.PurgeExpiredLocks(ctx, id, now.Add(time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		n, err = tx.ReleaseUsedLocks(ctx, id, seats)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		return nil
	})
	require.NoError(t, err)

	// released rows no longer occupy the seat
	err = store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateLocks(ctx, GenerateLockRecords(id, 11, seats, now, now.Add(time.Minute)))
	})
	assert.NoError(t, err)
}

func TestMySQLStoreBookings(t *testing.T) {
	db, id := openTestDB(t)
	store := NewMySQLStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	b := &model.Booking{
		UserID:         77,
		ScreeningID:    id,
		Seats:          []model.BookedSeat{{Row: 2, Col: 3, Label: "B3"}},
		Amount:         500,
		IdempotencyKey: "k-1",
		CreatedAt:      now,
	}
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateBooking(ctx, b)
	}))
	require.NotZero(t, b.ID)

	dup := *b
	err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateBooking(ctx, &dup)
	})
	assert.ErrorIs(t, err, model.ErrDuplicateIdempotencyKey)

	got, err := store.BookingByIdempotencyKey(ctx, 77, id, "k-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.Seats, got.Seats)
	assert.Equal(t, model.BookingConfirmed, got.Status)

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.BookingForUpdate(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, locked.Status)
		return tx.CancelBooking(ctx, b.ID, now.Add(time.Minute))
	}))

	got, err = store.Booking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	list, err := store.BookingsByUser(ctx, 77)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	_, err = store.Booking(ctx, b.ID+1000000)
	assert.ErrorIs(t, err, model.ErrBookingNotFound)
}
