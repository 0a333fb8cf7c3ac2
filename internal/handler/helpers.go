package handler

import (
	"reflect"
	"strings"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// seatInput is one seat coordinate in a request body.
type seatInput struct {
	Row int `json:"row" validate:"min=1"`
	Col int `json:"col" validate:"min=1"`
}

func seatKeys(in []seatInput) []model.SeatKey {
	keys := make([]model.SeatKey, 0, len(in))
	for _, s := range in {
		keys = append(keys, model.SeatKey{Row: s.Row, Col: s.Col})
	}
	return keys
}

// seatView is a seat as rendered in responses.
type seatView struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Label  string `json:"label"`
	Status string `json:"status,omitempty"`
}

func seatViews(keys []model.SeatKey) []seatView {
	out := make([]seatView, 0, len(keys))
	for _, k := range keys {
		out = append(out, seatView{Row: k.Row, Col: k.Col, Label: k.Label()})
	}
	return out
}

type bookingView struct {
	ID             uint64             `json:"id"`
	UserID         uint64             `json:"userId"`
	ScreeningID    uint64             `json:"screeningId"`
	Seats          []model.BookedSeat `json:"seats"`
	Amount         int64              `json:"amount"`
	Status         string             `json:"status"`
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
	CreatedAt      string             `json:"createdAt"`
	CancelledAt    *string            `json:"cancelledAt,omitempty"`
}

func newBookingView(b *model.Booking) bookingView {
	v := bookingView{
		ID:             b.ID,
		UserID:         b.UserID,
		ScreeningID:    b.ScreeningID,
		Seats:          b.Seats,
		Amount:         b.Amount,
		Status:         string(b.Status),
		IdempotencyKey: b.IdempotencyKey,
		CreatedAt:      b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if v.Seats == nil {
		v.Seats = []model.BookedSeat{}
	}
	if b.CancelledAt != nil {
		s := b.CancelledAt.UTC().Format(time.RFC3339)
		v.CancelledAt = &s
	}
	return v
}

// jsonFieldName names struct fields by their JSON tag in validation
// messages.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
