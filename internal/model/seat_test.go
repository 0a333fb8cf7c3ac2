package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeatKeyForms(t *testing.T) {
	tests := []struct {
		key   SeatKey
		str   string
		label string
	}{
		{SeatKey{Row: 1, Col: 1}, "1:1", "A1"},
		{SeatKey{Row: 3, Col: 7}, "3:7", "C7"},
		{SeatKey{Row: 26, Col: 12}, "26:12", "Z12"},
		{SeatKey{Row: 27, Col: 4}, "27:4", "AA4"},
		{SeatKey{Row: 703, Col: 1}, "703:1", "AAA1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.str, tt.key.String())
		assert.Equal(t, tt.label, tt.key.Label())
		assert.True(t, tt.key.Valid())
	}
	assert.False(t, SeatKey{Row: 0, Col: 1}.Valid())
	assert.Equal(t, "", RowLabel(0))
}

func TestSeatGrid(t *testing.T) {
	grid := SeatGrid(2, 3)
	if assert.Len(t, grid, 6) {
		assert.Equal(t, Seat{Row: 1, Col: 1, Status: SeatAvailable}, grid[0])
		assert.Equal(t, Seat{Row: 2, Col: 3, Status: SeatAvailable}, grid[5])
	}
	assert.Nil(t, SeatGrid(0, 3))
}
