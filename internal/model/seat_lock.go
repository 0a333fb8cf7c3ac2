package model

import "time"

// LockStatus is the lifecycle state of a seat lock.
type LockStatus string

const (
	LockHeld     LockStatus = "HELD"
	LockUsed     LockStatus = "USED"
	LockReleased LockStatus = "RELEASED"
)

// Active reports whether the status occupies the seat's unique slot.
func (s LockStatus) Active() bool { return s == LockHeld || s == LockUsed }

// SeatLock is a time-bounded claim on one seat of a screening.  At most
// one HELD or USED lock may exist for a (screening, seat) pair; the
// database enforces this with a unique key over a generated column that
// is NULL for RELEASED rows.  HELD locks past ExpiresAt are treated as
// absent and purged by reconciliation.
//
// Fields:
//
//	ID          – primary key identifier.
//	ScreeningID – screening the seat belongs to.
//	Seat        – seat being claimed.
//	HolderID    – user holding the lock.
//	Token       – opaque UUID handed back for correlation.
//	Status      – HELD, USED or RELEASED.
//	ExpiresAt   – when a HELD lock lapses.
//	CreatedAt   – when the lock was taken.
type SeatLock struct {
	ID          uint64     // seat_locks.id
	ScreeningID uint64     // seat_locks.screening_id
	Seat        SeatKey    // seat_locks.seat_row, seat_col
	HolderID    uint64     // seat_locks.holder_id
	Token       string     // seat_locks.token
	Status      LockStatus // seat_locks.status
	ExpiresAt   time.Time  // seat_locks.expires_at
	CreatedAt   time.Time  // seat_locks.created_at
}

// Expired reports whether a HELD lock has lapsed at now.  USED and
// RELEASED locks never expire.
func (l SeatLock) Expired(now time.Time) bool {
	return l.Status == LockHeld && !l.ExpiresAt.After(now)
}
