package service

import (
	"fmt"
	"sort"

	"github.com/iliyamo/seat-booking/internal/model"
)

// normalizeSeats validates coordinates, drops duplicates and sorts the
// seats in row-major order.  Sorting gives every transaction the same
// row lock order.
func normalizeSeats(seats []model.SeatKey) ([]model.SeatKey, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: at least one seat is required", model.ErrValidation)
	}
	seen := make(map[model.SeatKey]struct{}, len(seats))
	out := make([]model.SeatKey, 0, len(seats))
	for _, s := range seats {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: invalid seat row=%d col=%d", model.ErrValidation, s.Row, s.Col)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sortSeats(out)
	return out, nil
}

func sortSeats(keys []model.SeatKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Row != keys[j].Row {
			return keys[i].Row < keys[j].Row
		}
		return keys[i].Col < keys[j].Col
	})
}

func requireID(name string, id uint64) error {
	if id == 0 {
		return fmt.Errorf("%w: %s is required", model.ErrValidation, name)
	}
	return nil
}
