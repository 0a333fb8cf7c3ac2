package model

import "strconv"

// SeatStatus is the availability of one seat in a screening's seat map.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatLocked    SeatStatus = "LOCKED"
	SeatBooked    SeatStatus = "BOOKED"
)

// SeatKey addresses a seat by its 1-based row and column.
type SeatKey struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String renders the key in its storage form, "row:col".
func (k SeatKey) String() string {
	return strconv.Itoa(k.Row) + ":" + strconv.Itoa(k.Col)
}

// Label renders the human seat label: row letters followed by the
// column number, so row 1 col 1 is "A1" and row 27 col 4 is "AA4".
func (k SeatKey) Label() string {
	return RowLabel(k.Row) + strconv.Itoa(k.Col)
}

// Valid reports whether both coordinates are positive.
func (k SeatKey) Valid() bool { return k.Row >= 1 && k.Col >= 1 }

// RowLabel converts a 1-based row number to spreadsheet style letters
// (1→A, 26→Z, 27→AA).  Non-positive rows yield "".
func RowLabel(row int) string {
	if row < 1 {
		return ""
	}
	i := row - 1
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// Seat is one entry of a screening's seat map.
//
// Fields:
//
//	Row    – 1-based row number.
//	Col    – 1-based column number.
//	Status – AVAILABLE, LOCKED or BOOKED.
type Seat struct {
	Row    int        `json:"row"`    // screening_seats.seat_row
	Col    int        `json:"col"`    // screening_seats.seat_col
	Status SeatStatus `json:"status"` // screening_seats.status
}

// Key returns the seat's address.
func (s Seat) Key() SeatKey { return SeatKey{Row: s.Row, Col: s.Col} }

// SeatGrid builds the full AVAILABLE grid for the given dimensions in
// row-major order.
func SeatGrid(rows, cols int) []Seat {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	seats := make([]Seat, 0, rows*cols)
	for r := 1; r <= rows; r++ {
		for c := 1; c <= cols; c++ {
			seats = append(seats, Seat{Row: r, Col: c, Status: SeatAvailable})
		}
	}
	return seats
}
