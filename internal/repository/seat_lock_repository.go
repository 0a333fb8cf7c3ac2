package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-booking/internal/model"
)

// SeatLockRepo provides data access to the seat_locks table, the ledger
// of time-bounded claims on individual seats.  The table carries a
// stored generated column, active_seat_key, that is non-NULL only for
// HELD and USED rows; a unique key over (screening_id, active_seat_key)
// therefore admits at most one active lock per seat while letting any
// number of RELEASED rows accumulate.  All timestamps are UTC and are
// supplied by the caller so that the engine's clock is authoritative.
type SeatLockRepo struct {
	db *sql.DB
}

// NewSeatLockRepo returns a new SeatLockRepo bound to the provided database.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

// DeleteExpiredTx removes HELD locks of a screening whose expires_at is
// at or before now and returns how many were removed.  USED locks never
// expire.
func (r *SeatLockRepo) DeleteExpiredTx(ctx context.Context, tx *sql.Tx, screeningID uint64, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM seat_locks WHERE screening_id = ? AND status = 'HELD' AND expires_at <= ?`,
		screeningID, now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ActiveTx lists the HELD and USED locks of a screening, ordered by seat.
// Callers normally run DeleteExpiredTx first so that every returned
// HELD lock is still live.
func (r *SeatLockRepo) ActiveTx(ctx context.Context, tx *sql.Tx, screeningID uint64) ([]model.SeatLock, error) {
	const q = `SELECT id, screening_id, seat_row, seat_col, holder_id, token, status, expires_at, created_at
			   FROM seat_locks
			   WHERE screening_id = ? AND status IN ('HELD', 'USED')
			   ORDER BY seat_row, seat_col`
	rows, err := tx.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	locks := make([]model.SeatLock, 0)
	for rows.Next() {
		var l model.SeatLock
		var status string
		if err := rows.Scan(&l.ID, &l.ScreeningID, &l.Seat.Row, &l.Seat.Col, &l.HolderID, &l.Token, &status, &l.ExpiresAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Status = model.LockStatus(status)
		l.ExpiresAt = l.ExpiresAt.UTC()
		l.CreatedAt = l.CreatedAt.UTC()
		locks = append(locks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locks, nil
}

// CreateMultipleTx inserts HELD locks in a single statement.  If any seat
// already carries an active lock the unique key rejects the whole
// statement and model.ErrDuplicateLock is returned, listing the seats of
// the batch.  Passing an empty slice has no effect and returns nil.
func (r *SeatLockRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, locks []model.SeatLock) error {
	if len(locks) == 0 {
		return nil
	}
	query := `INSERT INTO seat_locks (screening_id, seat_row, seat_col, holder_id, token, status, expires_at, created_at) VALUES `
	args := make([]interface{}, 0, len(locks)*8)
	keys := make([]model.SeatKey, 0, len(locks))
	for i, l := range locks {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		status := l.Status
		if status == "" {
			status = model.LockHeld
		}
		args = append(args, l.ScreeningID, l.Seat.Row, l.Seat.Col, l.HolderID, l.Token, string(status), l.ExpiresAt.UTC(), l.CreatedAt.UTC())
		keys = append(keys, l.Seat)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err) {
			return model.NewSeatError(model.ErrDuplicateLock, keys)
		}
		return err
	}
	return nil
}

// DeleteHeldTx deletes the holder's HELD locks on the given seats, or on
// every seat of the screening when keys is empty.  Locks of other
// holders and USED locks are never touched.
func (r *SeatLockRepo) DeleteHeldTx(ctx context.Context, tx *sql.Tx, screeningID, holderID uint64, keys []model.SeatKey) (int64, error) {
	q := `DELETE FROM seat_locks WHERE screening_id = ? AND holder_id = ? AND status = 'HELD'`
	args := []interface{}{screeningID, holderID}
	if len(keys) > 0 {
		clause, seatArgs := seatTuples(keys)
		q += ` AND (seat_row, seat_col) IN (` + clause + `)`
		args = append(args, seatArgs...)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkUsedTx flips the holder's unexpired HELD locks on keys to USED and
// returns the number of locks flipped.  A result smaller than len(keys)
// means at least one lock was lost.
func (r *SeatLockRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, screeningID, holderID uint64, keys []model.SeatKey, now time.Time) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	clause, seatArgs := seatTuples(keys)
	q := `UPDATE seat_locks SET status = 'USED'
		  WHERE screening_id = ? AND holder_id = ? AND status = 'HELD' AND expires_at > ?
		  AND (seat_row, seat_col) IN (` + clause + `)`
	args := append([]interface{}{screeningID, holderID, now.UTC()}, seatArgs...)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseUsedTx flips USED locks on keys to RELEASED, which clears their
// active_seat_key and frees the seats for new locks.
func (r *SeatLockRepo) ReleaseUsedTx(ctx context.Context, tx *sql.Tx, screeningID uint64, keys []model.SeatKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	clause, seatArgs := seatTuples(keys)
	q := `UPDATE seat_locks SET status = 'RELEASED'
		  WHERE screening_id = ? AND status = 'USED'
		  AND (seat_row, seat_col) IN (` + clause + `)`
	res, err := tx.ExecContext(ctx, q, append([]interface{}{screeningID}, seatArgs...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GenerateLockRecords builds HELD lock records for the given holder,
// screening and seats.  Each lock gets a fresh UUID token.
func GenerateLockRecords(screeningID, holderID uint64, seats []model.SeatKey, now, expiresAt time.Time) []model.SeatLock {
	locks := make([]model.SeatLock, 0, len(seats))
	for _, s := range seats {
		locks = append(locks, model.SeatLock{
			ScreeningID: screeningID,
			Seat:        s,
			HolderID:    holderID,
			Token:       uuid.NewString(),
			Status:      model.LockHeld,
			ExpiresAt:   expiresAt,
			CreatedAt:   now,
		})
	}
	return locks
}
