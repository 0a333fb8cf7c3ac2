package model

import "time"

// Screening represents a scheduled showing of a movie on a screen.  It
// owns the seat map (see Seat) that the booking engine mutates.  The
// seat grid dimensions are copied from the screen when the screening is
// loaded so that callers never need a second lookup.
//
// Fields:
//
//	ID       – primary key identifier.
//	ScreenID – screen where the screening takes place.
//	Title    – movie title.
//	StartsAt – when the screening begins (UTC).
//	SeatRows – rows of the screen's seat grid.
//	SeatCols – seats per row of the screen's seat grid.
type Screening struct {
	ID       uint64    `json:"id"`        // screenings.id
	ScreenID uint64    `json:"screen_id"` // screenings.screen_id
	Title    string    `json:"title"`     // screenings.title
	StartsAt time.Time `json:"starts_at"` // screenings.starts_at
	SeatRows int       `json:"seat_rows"` // screens.seat_rows
	SeatCols int       `json:"seat_cols"` // screens.seat_cols
}

// SeatCount returns the size of the fully materialized seat grid.
func (s Screening) SeatCount() int {
	if s.SeatRows <= 0 || s.SeatCols <= 0 {
		return 0
	}
	return s.SeatRows * s.SeatCols
}
