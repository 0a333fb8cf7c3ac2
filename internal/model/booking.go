package model

import "time"

// BookingStatus is the state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// BookedSeat is a seat recorded on a booking.  The label is captured at
// confirmation time so receipts never need the seat map.
type BookedSeat struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Label string `json:"label"`
}

// Key returns the seat's address.
func (s BookedSeat) Key() SeatKey { return SeatKey{Row: s.Row, Col: s.Col} }

// Booking is the durable result of a confirmed set of seat locks.  It is
// immutable once CONFIRMED except for the transition to CANCELLED.
//
// Fields:
//
//	ID             – primary key identifier.
//	UserID         – owner of the booking.
//	ScreeningID    – screening the seats belong to.
//	Seats          – seats covered by the booking.
//	Amount         – amount charged, in minor currency units.
//	Status         – CONFIRMED or CANCELLED.
//	IdempotencyKey – client supplied retry key (empty when absent).
//	CreatedAt      – confirmation timestamp.
//	CancelledAt    – cancellation timestamp (nil while confirmed).
type Booking struct {
	ID             uint64        `json:"id"`                        // bookings.id
	UserID         uint64        `json:"user_id"`                   // bookings.user_id
	ScreeningID    uint64        `json:"screening_id"`              // bookings.screening_id
	Seats          []BookedSeat  `json:"seats"`                     // bookings.seats (JSON)
	Amount         int64         `json:"amount"`                    // bookings.amount
	Status         BookingStatus `json:"status"`                    // bookings.status
	IdempotencyKey string        `json:"idempotency_key,omitempty"` // bookings.idempotency_key (nullable)
	CreatedAt      time.Time     `json:"created_at"`                // bookings.created_at
	CancelledAt    *time.Time    `json:"cancelled_at,omitempty"`    // bookings.cancelled_at (nullable)
}

// SeatKeys returns the addresses of the booked seats.
func (b Booking) SeatKeys() []SeatKey {
	keys := make([]SeatKey, 0, len(b.Seats))
	for _, s := range b.Seats {
		keys = append(keys, s.Key())
	}
	return keys
}
