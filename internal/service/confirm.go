package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// MaxIdempotencyKeyLen matches the width of bookings.idempotency_key.
const MaxIdempotencyKeyLen = 128

// ConfirmRequest converts the holder's HELD locks into a booking.
type ConfirmRequest struct {
	ScreeningID    uint64
	HolderID       uint64
	Seats          []model.SeatKey
	Amount         int64
	IdempotencyKey string
}

// Confirm books the requested seats for the holder in one transaction.
// The holder must own an unexpired HELD lock on every seat.  On success
// the seats are BOOKED, the locks USED and a CONFIRMED booking exists;
// on any failure nothing changes.
//
// When IdempotencyKey matches an earlier booking of the same holder and
// screening, that booking is returned with replayed set and no work is
// done.
func (e *Engine) Confirm(ctx context.Context, req ConfirmRequest) (booking *model.Booking, replayed bool, err error) {
	if err := requireID("screening id", req.ScreeningID); err != nil {
		return nil, false, err
	}
	if err := requireID("holder id", req.HolderID); err != nil {
		return nil, false, err
	}
	if req.Amount < 0 {
		return nil, false, fmt.Errorf("%w: amount must not be negative", model.ErrValidation)
	}
	if len(req.IdempotencyKey) > MaxIdempotencyKeyLen {
		return nil, false, fmt.Errorf("%w: idempotency key longer than %d bytes", model.ErrValidation, MaxIdempotencyKeyLen)
	}
	seats, err := normalizeSeats(req.Seats)
	if err != nil {
		return nil, false, err
	}

	if prior, err := e.priorBooking(ctx, req); err != nil || prior != nil {
		return prior, prior != nil, err
	}

	var created *model.Booking
	err = e.runTx(ctx, "confirm", func(ctx context.Context, tx repository.Tx) error {
		created = nil
		b, err := e.confirmTx(ctx, tx, req, seats)
		if err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		// A concurrent request carrying the same key may have won; answer
		// with its booking instead of the conflict it caused.
		if errors.Is(err, model.ErrDuplicateIdempotencyKey) || model.IsConflict(err) {
			if prior, perr := e.priorBooking(ctx, req); perr == nil && prior != nil {
				return prior, true, nil
			}
		}
		return nil, false, err
	}

	e.log.Info("booking confirmed",
		zap.Uint64("booking_id", created.ID),
		zap.Uint64("user_id", created.UserID),
		zap.Uint64("screening_id", created.ScreeningID),
		zap.Int("seats", len(created.Seats)),
	)
	e.dispatch(model.EventBookingConfirmed, *created)
	return created, false, nil
}

// priorBooking looks up the booking stored under the request's
// idempotency key.  It returns nil, nil when there is none.
func (e *Engine) priorBooking(ctx context.Context, req ConfirmRequest) (*model.Booking, error) {
	if req.IdempotencyKey == "" {
		return nil, nil
	}
	b, err := e.store.BookingByIdempotencyKey(ctx, req.HolderID, req.ScreeningID, req.IdempotencyKey)
	if errors.Is(err, model.ErrBookingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return b, nil
}

func (e *Engine) confirmTx(ctx context.Context, tx repository.Tx, req ConfirmRequest, seats []model.SeatKey) (*model.Booking, error) {
	now := e.clock()
	sc, err := tx.Screening(ctx, req.ScreeningID)
	if err != nil {
		return nil, err
	}
	st, err := reconcile(ctx, tx, sc, now)
	if err != nil {
		return nil, err
	}

	var unknown []model.SeatKey
	for _, k := range seats {
		if _, ok := st.status(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return nil, model.NewSeatError(model.ErrUnknownSeat, unknown)
	}

	// Current rows, locked until commit; a concurrent confirmer that got
	// here first is visible now.
	current, err := tx.LockSeats(ctx, sc.ID, seats)
	if err != nil {
		return nil, err
	}
	var booked []model.SeatKey
	for _, s := range current {
		if s.Status == model.SeatBooked {
			booked = append(booked, s.Key())
		}
	}
	if len(booked) > 0 {
		return nil, model.NewSeatError(model.ErrAlreadyBooked, booked)
	}

	var lost []model.SeatKey
	for _, k := range seats {
		l, ok := st.locks[k]
		if !ok || l.HolderID != req.HolderID || l.Status != model.LockHeld || l.Expired(now) {
			lost = append(lost, k)
		}
	}
	if len(lost) > 0 {
		return nil, model.NewSeatError(model.ErrLockLost, lost)
	}

	n, err := tx.SetSeatStatus(ctx, sc.ID, seats, []model.SeatStatus{model.SeatAvailable, model.SeatLocked}, model.SeatBooked)
	if err != nil {
		return nil, err
	}
	if n != int64(len(seats)) {
		return nil, model.NewSeatError(model.ErrAlreadyBooked, seats)
	}

	b := &model.Booking{
		UserID:         req.HolderID,
		ScreeningID:    sc.ID,
		Seats:          make([]model.BookedSeat, 0, len(seats)),
		Amount:         req.Amount,
		Status:         model.BookingConfirmed,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}
	for _, k := range seats {
		b.Seats = append(b.Seats, model.BookedSeat{Row: k.Row, Col: k.Col, Label: k.Label()})
	}
	if err := tx.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	used, err := tx.MarkLocksUsed(ctx, sc.ID, req.HolderID, seats, now)
	if err != nil {
		return nil, err
	}
	if used != int64(len(seats)) {
		return nil, model.NewSeatError(model.ErrLockLost, seats)
	}
	return b, nil
}
