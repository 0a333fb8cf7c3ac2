package repository // repository for the per-screening seat map

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/seat-booking/internal/model"
)

// seatInsertChunk bounds the rows of one bulk INSERT so that large
// grids stay well below the server's placeholder limit.
const seatInsertChunk = 500

// ScreeningSeatRepo encapsulates database operations for screening_seats,
// the materialized seat map of each screening.  Each (screening, row,
// col) combination is unique.
type ScreeningSeatRepo struct {
	db *sql.DB
}

// NewScreeningSeatRepo constructs a ScreeningSeatRepo given a DB handle.
func NewScreeningSeatRepo(db *sql.DB) *ScreeningSeatRepo {
	return &ScreeningSeatRepo{db: db}
}

// CountTx returns how many seats have been materialized for a screening.
func (r *ScreeningSeatRepo) CountTx(ctx context.Context, tx *sql.Tx, screeningID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM screening_seats WHERE screening_id = ?`, screeningID).Scan(&n)
	return n, err
}

// CreateGridTx inserts the seat grid of a screening.  Rows that already
// exist are skipped (INSERT IGNORE) so two transactions materializing
// the same screening concurrently cannot fail each other.
func (r *ScreeningSeatRepo) CreateGridTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seats []model.Seat) error {
	for start := 0; start < len(seats); start += seatInsertChunk {
		end := start + seatInsertChunk
		if end > len(seats) {
			end = len(seats)
		}
		chunk := seats[start:end]
		var b strings.Builder
		b.WriteString(`INSERT IGNORE INTO screening_seats (screening_id, seat_row, seat_col, status) VALUES `)
		args := make([]interface{}, 0, len(chunk)*4)
		for i, s := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("(?, ?, ?, ?)")
			args = append(args, screeningID, s.Row, s.Col, string(s.Status))
		}
		if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// ListTx returns the seat map of a screening ordered by row then column.
func (r *ScreeningSeatRepo) ListTx(ctx context.Context, tx *sql.Tx, screeningID uint64) ([]model.Seat, error) {
	const q = `SELECT seat_row, seat_col, status
			   FROM screening_seats
			   WHERE screening_id = ?
			   ORDER BY seat_row, seat_col`
	rows, err := tx.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// LockTx reads the requested seats with FOR UPDATE so that concurrent
// confirmations of overlapping seats serialize on these rows.  Seats
// that do not exist are not returned.
func (r *ScreeningSeatRepo) LockTx(ctx context.Context, tx *sql.Tx, screeningID uint64, keys []model.SeatKey) ([]model.Seat, error) {
	if len(keys) == 0 {
		return []model.Seat{}, nil
	}
	clause, args := seatTuples(keys)
	q := `SELECT seat_row, seat_col, status
		  FROM screening_seats
		  WHERE screening_id = ? AND (seat_row, seat_col) IN (` + clause + `)
		  ORDER BY seat_row, seat_col
		  FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, append([]interface{}{screeningID}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// BulkUpdateStatusTx moves seats to status `to`, but only those whose
// current status is listed in `from`.  The number of rows changed is
// returned so that callers can detect a lost race.
func (r *ScreeningSeatRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, screeningID uint64, keys []model.SeatKey, from []model.SeatStatus, to model.SeatStatus) (int64, error) {
	if len(keys) == 0 || len(from) == 0 {
		return 0, nil
	}
	clause, seatArgs := seatTuples(keys)
	statusPH := make([]string, 0, len(from))
	args := make([]interface{}, 0, 2+len(from)+len(seatArgs))
	args = append(args, string(to), screeningID)
	for _, st := range from {
		statusPH = append(statusPH, "?")
		args = append(args, string(st))
	}
	args = append(args, seatArgs...)
	q := `UPDATE screening_seats SET status = ?
		  WHERE screening_id = ? AND status IN (` + strings.Join(statusPH, ",") + `)
		  AND (seat_row, seat_col) IN (` + clause + `)`
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		var status string
		if err := rows.Scan(&s.Row, &s.Col, &status); err != nil {
			return nil, err
		}
		s.Status = model.SeatStatus(status)
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// seatTuples builds "(?, ?),(?, ?)" for a row-constructor IN list.
func seatTuples(keys []model.SeatKey) (string, []interface{}) {
	ph := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		ph = append(ph, "(?, ?)")
		args = append(args, k.Row, k.Col)
	}
	return strings.Join(ph, ","), args
}
