// Package queue carries booking events over RabbitMQ.  The Publisher is
// the engine's notification emitter; the Consumer runs in the
// booking-consumer process and appends each event to an audit log.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// DefaultQueue is the durable queue both sides use unless configured
// otherwise.
const DefaultQueue = "booking.events"

// BookingMessage is the JSON body of a booking event.  It contains enough
// information for downstream consumers to log, notify or trigger
// analytics without querying the primary database.
type BookingMessage struct {
	EventID     string   `json:"event_id"`
	Type        string   `json:"type"`
	BookingID   uint64   `json:"booking_id"`
	UserID      uint64   `json:"user_id"`
	ScreeningID uint64   `json:"screening_id"`
	SeatLabels  []string `json:"seats"`
	Amount      int64    `json:"amount"`
	Status      string   `json:"status"`
	OccurredAt  string   `json:"occurred_at"`
}

// NewBookingMessage flattens ev into its wire form.
func NewBookingMessage(ev model.BookingEvent) BookingMessage {
	labels := make([]string, 0, len(ev.Booking.Seats))
	for _, s := range ev.Booking.Seats {
		label := s.Label
		if label == "" {
			label = s.Key().Label()
		}
		labels = append(labels, label)
	}
	return BookingMessage{
		EventID:     ev.ID,
		Type:        string(ev.Type),
		BookingID:   ev.Booking.ID,
		UserID:      ev.Booking.UserID,
		ScreeningID: ev.Booking.ScreeningID,
		SeatLabels:  labels,
		Amount:      ev.Booking.Amount,
		Status:      string(ev.Booking.Status),
		OccurredAt:  ev.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// Line renders the message as one human friendly log line.
func (m BookingMessage) Line() string {
	seats := "[]"
	if len(m.SeatLabels) > 0 {
		seats = fmt.Sprintf("[%s]", strings.Join(m.SeatLabels, ","))
	}
	return fmt.Sprintf("[%s] %s | event_id=%s | booking_id=%d | user_id=%d | screening_id=%d | status=%s | amount=%d | seats=%s\n",
		m.OccurredAt, m.Type, m.EventID, m.BookingID, m.UserID, m.ScreeningID, m.Status, m.Amount, seats)
}
