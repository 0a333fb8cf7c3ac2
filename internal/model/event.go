package model

import "time"

// EventType names a booking state transition announced to collaborators.
type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
)

// BookingEvent is handed to the notification emitter after a booking
// transition has been committed.
type BookingEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Booking    Booking   `json:"booking"`
	OccurredAt time.Time `json:"occurred_at"`
}
