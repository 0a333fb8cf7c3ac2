package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// seatState is the seat map of one screening as seen after reconciliation.
type seatState struct {
	seats []model.Seat
	index map[model.SeatKey]int
	locks map[model.SeatKey]model.SeatLock
}

func (s *seatState) status(k model.SeatKey) (model.SeatStatus, bool) {
	i, ok := s.index[k]
	if !ok {
		return "", false
	}
	return s.seats[i].Status, true
}

// reconcile brings the seat map of sc in line with the reservation
// ledger at now: the grid is materialized if it is missing, expired HELD
// locks are purged, seats under an active lock become LOCKED and LOCKED
// seats without one revert to AVAILABLE.  BOOKED seats are left alone.
// Only seats whose status changes are written.
func reconcile(ctx context.Context, tx repository.Tx, sc *model.Screening, now time.Time) (*seatState, error) {
	n, err := tx.SeatCount(ctx, sc.ID)
	if err != nil {
		return nil, fmt.Errorf("count seats: %w", err)
	}
	if n == 0 {
		if grid := model.SeatGrid(sc.SeatRows, sc.SeatCols); len(grid) > 0 {
			if err := tx.CreateSeats(ctx, sc.ID, grid); err != nil {
				return nil, fmt.Errorf("materialize seat grid: %w", err)
			}
		}
	}

	if _, err := tx.PurgeExpiredLocks(ctx, sc.ID, now); err != nil {
		return nil, fmt.Errorf("purge expired locks: %w", err)
	}
	active, err := tx.ActiveLocks(ctx, sc.ID)
	if err != nil {
		return nil, fmt.Errorf("list active locks: %w", err)
	}
	seats, err := tx.Seats(ctx, sc.ID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}

	st := &seatState{
		seats: seats,
		index: make(map[model.SeatKey]int, len(seats)),
		locks: make(map[model.SeatKey]model.SeatLock, len(active)),
	}
	for _, l := range active {
		if l.Expired(now) {
			continue
		}
		st.locks[l.Seat] = l
	}

	var toLock, toFree []model.SeatKey
	for i, s := range seats {
		k := s.Key()
		st.index[k] = i
		_, held := st.locks[k]
		switch {
		case s.Status == model.SeatBooked:
		case held && s.Status == model.SeatAvailable:
			toLock = append(toLock, k)
			st.seats[i].Status = model.SeatLocked
		case !held && s.Status == model.SeatLocked:
			toFree = append(toFree, k)
			st.seats[i].Status = model.SeatAvailable
		}
	}
	if len(toLock) > 0 {
		if _, err := tx.SetSeatStatus(ctx, sc.ID, toLock, []model.SeatStatus{model.SeatAvailable}, model.SeatLocked); err != nil {
			return nil, fmt.Errorf("lock reserved seats: %w", err)
		}
	}
	if len(toFree) > 0 {
		if _, err := tx.SetSeatStatus(ctx, sc.ID, toFree, []model.SeatStatus{model.SeatLocked}, model.SeatAvailable); err != nil {
			return nil, fmt.Errorf("free lapsed seats: %w", err)
		}
	}
	return st, nil
}
