package model

import (
	"errors"
	"strings"
)

// Error kinds surfaced by the booking engine.  The message of each
// sentinel doubles as the machine readable kind returned to clients.
var (
	ErrValidation = errors.New("VALIDATION_FAILED")

	ErrSeatsUnavailable = errors.New("SEATS_UNAVAILABLE")
	ErrDuplicateLock    = errors.New("DUPLICATE_LOCK")
	ErrLockLost         = errors.New("LOCK_LOST")
	ErrAlreadyBooked    = errors.New("ALREADY_BOOKED")
	ErrUnknownSeat      = errors.New("UNKNOWN_SEAT")

	ErrScreeningNotFound = errors.New("SCREENING_NOT_FOUND")
	ErrBookingNotFound   = errors.New("BOOKING_NOT_FOUND")
	ErrForbidden         = errors.New("FORBIDDEN")

	// ErrDuplicateIdempotencyKey is raised by storage when a booking with
	// the same (user, screening, key) already exists.
	ErrDuplicateIdempotencyKey = errors.New("DUPLICATE_IDEMPOTENCY_KEY")
)

// SeatError attaches the offending seats to one of the seat-level kinds.
type SeatError struct {
	Err   error
	Seats []SeatKey
}

// NewSeatError wraps kind with the given seats.
func NewSeatError(kind error, seats []SeatKey) *SeatError {
	return &SeatError{Err: kind, Seats: seats}
}

func (e *SeatError) Error() string {
	if len(e.Seats) == 0 {
		return e.Err.Error()
	}
	labels := make([]string, 0, len(e.Seats))
	for _, s := range e.Seats {
		labels = append(labels, s.String())
	}
	return e.Err.Error() + ": " + strings.Join(labels, ",")
}

func (e *SeatError) Unwrap() error { return e.Err }

// SeatsOf returns the seats carried by a SeatError anywhere in err's chain.
func SeatsOf(err error) []SeatKey {
	var se *SeatError
	if errors.As(err, &se) {
		return se.Seats
	}
	return nil
}

// IsConflict reports whether err is a business conflict the caller must
// resolve with fresh reservations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSeatsUnavailable) ||
		errors.Is(err, ErrDuplicateLock) ||
		errors.Is(err, ErrLockLost) ||
		errors.Is(err, ErrAlreadyBooked)
}

// IsNotFound reports whether err names a missing screening or booking.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScreeningNotFound) ||
		errors.Is(err, ErrBookingNotFound)
}

// IsValidation reports whether err is a malformed-input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnknownSeat)
}
