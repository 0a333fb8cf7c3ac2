package service

import (
	"context"

	"github.com/iliyamo/seat-booking/internal/model"
)

// Notifier receives booking transitions after they have been committed.
// Delivery is best effort: an error is logged by the engine and never
// reaches the caller of Confirm or Cancel.
type Notifier interface {
	Notify(ctx context.Context, ev model.BookingEvent) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, ev model.BookingEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev model.BookingEvent) error { return f(ctx, ev) }

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.BookingEvent) error { return nil }
