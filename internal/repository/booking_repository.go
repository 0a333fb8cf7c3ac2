package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// BookingRepo provides access to the bookings table.  A booking row keeps
// its seats as a JSON array of {row, col, label} so that a receipt never
// needs the seat map.  The idempotency_key column is nullable and is
// covered by a unique key on (user_id, screening_id, idempotency_key);
// NULL keys never collide.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, screening_id, seats, amount, status, idempotency_key, created_at, cancelled_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// CreateTx inserts b within tx and fills in its ID.  b.CreatedAt is used
// as given (the engine's clock); a zero value is replaced with the
// current UTC time.  A clash on the idempotency key returns
// model.ErrDuplicateIdempotencyKey.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return fmt.Errorf("encode booking seats: %w", err)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = model.BookingConfirmed
	}
	var key sql.NullString
	if b.IdempotencyKey != "" {
		key = sql.NullString{String: b.IdempotencyKey, Valid: true}
	}
	const q = `INSERT INTO bookings (user_id, screening_id, seats, amount, status, idempotency_key, created_at)
			   VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.ScreeningID, seats, b.Amount, string(b.Status), key, b.CreatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return model.ErrDuplicateIdempotencyKey
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetForUpdateTx loads a booking and holds its row lock until tx ends.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	return scanBooking(tx.QueryRowContext(ctx, q, id))
}

// CancelTx marks a booking CANCELLED at the given time.  Bookings that
// are already cancelled keep their original timestamp.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'CANCELLED', cancelled_at = ? WHERE id = ? AND status = 'CONFIRMED'`,
		at.UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrBookingNotFound
		}
		return err
	}
	return nil
}

// GetByID loads a booking outside of any transaction.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(r.db.QueryRowContext(ctx, q, id))
}

// GetByIdempotencyKey finds the booking a user created for a screening
// with the given key.  It returns model.ErrBookingNotFound when none
// exists or when key is empty.
func (r *BookingRepo) GetByIdempotencyKey(ctx context.Context, userID, screeningID uint64, key string) (*model.Booking, error) {
	if key == "" {
		return nil, model.ErrBookingNotFound
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? AND screening_id = ? AND idempotency_key = ?`
	return scanBooking(r.db.QueryRowContext(ctx, q, userID, screeningID, key))
}

// ListByUser returns every booking owned by the user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b           model.Booking
		seats       []byte
		status      string
		key         sql.NullString
		cancelledAt sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.ScreeningID, &seats, &b.Amount, &status, &key, &b.CreatedAt, &cancelledAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBookingNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(seats, &b.Seats); err != nil {
		return nil, fmt.Errorf("decode seats of booking %d: %w", b.ID, err)
	}
	b.Status = model.BookingStatus(status)
	b.IdempotencyKey = key.String
	b.CreatedAt = b.CreatedAt.UTC()
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		b.CancelledAt = &t
	}
	return &b, nil
}
