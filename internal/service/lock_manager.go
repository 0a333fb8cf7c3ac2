package service

import (
	"context"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// ReserveRequest asks for HELD locks on seats of a screening.
type ReserveRequest struct {
	ScreeningID uint64
	HolderID    uint64
	Seats       []model.SeatKey
}

// Reservation describes locks granted by Reserve.
type Reservation struct {
	ScreeningID uint64          `json:"screeningId"`
	Seats       []model.SeatKey `json:"seats"`
	LockedUntil time.Time       `json:"lockedUntil"`
}

// ReleaseRequest names seats whose locks the holder gives up.
type ReleaseRequest struct {
	ScreeningID uint64
	HolderID    uint64
	Seats       []model.SeatKey
}

// Reserve locks every requested seat for the holder or none of them.  A
// seat that is not AVAILABLE after reconciliation, or does not exist,
// fails the call with SEATS_UNAVAILABLE; losing an insert race to
// another holder fails it with DUPLICATE_LOCK.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	if err := requireID("screening id", req.ScreeningID); err != nil {
		return nil, err
	}
	if err := requireID("holder id", req.HolderID); err != nil {
		return nil, err
	}
	seats, err := normalizeSeats(req.Seats)
	if err != nil {
		return nil, err
	}

	var res *Reservation
	err = e.runTx(ctx, "reserve", func(ctx context.Context, tx repository.Tx) error {
		now := e.clock()
		sc, err := tx.Screening(ctx, req.ScreeningID)
		if err != nil {
			return err
		}
		st, err := reconcile(ctx, tx, sc, now)
		if err != nil {
			return err
		}

		var unavailable []model.SeatKey
		for _, k := range seats {
			if status, ok := st.status(k); !ok || status != model.SeatAvailable {
				unavailable = append(unavailable, k)
			}
		}
		if len(unavailable) > 0 {
			return model.NewSeatError(model.ErrSeatsUnavailable, unavailable)
		}

		expiresAt := now.Add(e.lockTTL)
		locks := repository.GenerateLockRecords(sc.ID, req.HolderID, seats, now, expiresAt)
		if err := tx.CreateLocks(ctx, locks); err != nil {
			return err
		}
		n, err := tx.SetSeatStatus(ctx, sc.ID, seats, []model.SeatStatus{model.SeatAvailable}, model.SeatLocked)
		if err != nil {
			return err
		}
		if n != int64(len(seats)) {
			return model.NewSeatError(model.ErrSeatsUnavailable, seats)
		}
		res = &Reservation{ScreeningID: sc.ID, Seats: seats, LockedUntil: expiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Release deletes the holder's HELD locks on the given seats and
// reconciles the seat map.  Seats the holder does not hold are ignored,
// so releasing twice is harmless.  The normalized seat list is returned.
func (e *Engine) Release(ctx context.Context, req ReleaseRequest) ([]model.SeatKey, error) {
	if err := requireID("screening id", req.ScreeningID); err != nil {
		return nil, err
	}
	if err := requireID("holder id", req.HolderID); err != nil {
		return nil, err
	}
	seats, err := normalizeSeats(req.Seats)
	if err != nil {
		return nil, err
	}

	err = e.runTx(ctx, "release", func(ctx context.Context, tx repository.Tx) error {
		sc, err := tx.Screening(ctx, req.ScreeningID)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteHeldLocks(ctx, sc.ID, req.HolderID, seats); err != nil {
			return err
		}
		_, err = reconcile(ctx, tx, sc, e.clock())
		return err
	})
	if err != nil {
		return nil, err
	}
	return seats, nil
}

// SeatMap returns the reconciled seat map of a screening in row-major
// order.
func (e *Engine) SeatMap(ctx context.Context, screeningID uint64) ([]model.Seat, error) {
	if err := requireID("screening id", screeningID); err != nil {
		return nil, err
	}
	var seats []model.Seat
	err := e.runTx(ctx, "seat_map", func(ctx context.Context, tx repository.Tx) error {
		sc, err := tx.Screening(ctx, screeningID)
		if err != nil {
			return err
		}
		st, err := reconcile(ctx, tx, sc, e.clock())
		if err != nil {
			return err
		}
		seats = st.seats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seats, nil
}
