package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/txn"
)

func TestClassify(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-1:1' for key 'uq_seat_locks_active'"}
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	waitTimeout := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	syntax := &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}

	assert.True(t, isDuplicateKey(dup))
	assert.True(t, isDuplicateKey(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isDuplicateKey(deadlock))
	assert.False(t, isDuplicateKey(errors.New("1062")))

	assert.Nil(t, classify(nil))
	assert.True(t, txn.IsTransient(classify(deadlock)))
	assert.True(t, txn.IsTransient(classify(fmt.Errorf("commit transaction: %w", waitTimeout))))
	assert.ErrorIs(t, classify(deadlock), deadlock)
	assert.False(t, txn.IsTransient(classify(dup)))
	assert.False(t, txn.IsTransient(classify(syntax)))

	// business errors pass through untouched
	lost := model.NewSeatError(model.ErrLockLost, []model.SeatKey{{Row: 1, Col: 1}})
	assert.Same(t, lost, classify(lost))
}

func TestSeatTuples(t *testing.T) {
	clause, args := seatTuples([]model.SeatKey{{Row: 1, Col: 2}, {Row: 3, Col: 4}})
	assert.Equal(t, "(?, ?),(?, ?)", clause)
	assert.Equal(t, []interface{}{1, 2, 3, 4}, args)
}

func TestGenerateLockRecords(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	exp := now.Add(2 * time.Minute)
	seats := []model.SeatKey{{Row: 1, Col: 1}, {Row: 1, Col: 2}}

	locks := GenerateLockRecords(9, 42, seats, now, exp)
	if assert.Len(t, locks, 2) {
		for i, l := range locks {
			assert.Equal(t, uint64(9), l.ScreeningID)
			assert.Equal(t, uint64(42), l.HolderID)
			assert.Equal(t, seats[i], l.Seat)
			assert.Equal(t, model.LockHeld, l.Status)
			assert.Equal(t, exp, l.ExpiresAt)
			assert.Equal(t, now, l.CreatedAt)
			assert.Len(t, l.Token, 36)
		}
		assert.NotEqual(t, locks[0].Token, locks[1].Token)
	}
}
