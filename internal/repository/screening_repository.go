package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/seat-booking/internal/model"
)

// ScreeningRepo reads screenings together with the grid dimensions of
// the screen they run on.  Screenings themselves are created by the
// catalog service; this repository never writes them.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo constructs a ScreeningRepo with the given DB handle.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo {
	return &ScreeningRepo{db: db}
}

const screeningSelect = `SELECT sc.id, sc.screen_id, sc.title, sc.starts_at, s.seat_rows, s.seat_cols
			   FROM screenings sc
			   JOIN screens s ON s.id = sc.screen_id
			   WHERE sc.id = ?`

// GetTx loads a screening inside tx.  It returns
// model.ErrScreeningNotFound if there is no matching row.
func (r *ScreeningRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Screening, error) {
	return scanScreening(tx.QueryRowContext(ctx, screeningSelect, id))
}

func scanScreening(row *sql.Row) (*model.Screening, error) {
	var s model.Screening
	if err := row.Scan(&s.ID, &s.ScreenID, &s.Title, &s.StartsAt, &s.SeatRows, &s.SeatCols); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrScreeningNotFound
		}
		return nil, err
	}
	s.StartsAt = s.StartsAt.UTC()
	return &s, nil
}
