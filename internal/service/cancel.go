package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// CancelRequest identifies the booking to cancel and who is asking.
// Override is set for administrative cancellations and skips the
// ownership check.
type CancelRequest struct {
	BookingID uint64
	CallerID  uint64
	Override  bool
}

// Cancel reverses a confirmed booking: the booking becomes CANCELLED,
// its seats return to AVAILABLE, its USED locks are RELEASED and any
// HELD lock the owner still has on the screening is dropped.  Cancelling
// an already cancelled booking succeeds with changed set to false.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (booking *model.Booking, changed bool, err error) {
	if err := requireID("booking id", req.BookingID); err != nil {
		return nil, false, err
	}
	if !req.Override {
		if err := requireID("caller id", req.CallerID); err != nil {
			return nil, false, err
		}
	}

	err = e.runTx(ctx, "cancel", func(ctx context.Context, tx repository.Tx) error {
		booking, changed = nil, false
		b, err := tx.BookingForUpdate(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if b.UserID != req.CallerID && !req.Override {
			return model.ErrForbidden
		}
		if b.Status == model.BookingCancelled {
			booking = b
			return nil
		}

		now := e.clock()
		if err := tx.CancelBooking(ctx, b.ID, now); err != nil {
			return err
		}
		keys := b.SeatKeys()
		if _, err := tx.SetSeatStatus(ctx, b.ScreeningID, keys, []model.SeatStatus{model.SeatBooked}, model.SeatAvailable); err != nil {
			return err
		}
		if _, err := tx.ReleaseUsedLocks(ctx, b.ScreeningID, keys); err != nil {
			return err
		}
		if _, err := tx.DeleteHeldLocks(ctx, b.ScreeningID, b.UserID, nil); err != nil {
			return err
		}
		sc, err := tx.Screening(ctx, b.ScreeningID)
		if err != nil {
			return err
		}
		if _, err := reconcile(ctx, tx, sc, now); err != nil {
			return err
		}

		b.Status = model.BookingCancelled
		b.CancelledAt = &now
		booking, changed = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		e.log.Info("booking cancelled",
			zap.Uint64("booking_id", booking.ID),
			zap.Uint64("caller_id", req.CallerID),
			zap.Bool("override", req.Override),
		)
		e.dispatch(model.EventBookingCancelled, *booking)
	}
	return booking, changed, nil
}

// Booking returns one of the caller's bookings.  Bookings owned by
// someone else are reported as not found.
func (e *Engine) Booking(ctx context.Context, bookingID, callerID uint64) (*model.Booking, error) {
	if err := requireID("booking id", bookingID); err != nil {
		return nil, err
	}
	b, err := e.store.Booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != callerID {
		return nil, model.ErrBookingNotFound
	}
	return b, nil
}

// Bookings lists the caller's bookings, newest first.
func (e *Engine) Bookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	list, err := e.store.BookingsByUser(ctx, userID)
	if errors.Is(err, model.ErrBookingNotFound) {
		return []model.Booking{}, nil
	}
	return list, err
}
