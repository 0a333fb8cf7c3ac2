package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/txn"
)

// kinds lists the sentinels whose message is reported as the error kind.
var kinds = []error{
	model.ErrUnknownSeat,
	model.ErrValidation,
	model.ErrSeatsUnavailable,
	model.ErrDuplicateLock,
	model.ErrLockLost,
	model.ErrAlreadyBooked,
	model.ErrScreeningNotFound,
	model.ErrBookingNotFound,
	model.ErrForbidden,
}

func errorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	if txn.IsTransient(err) {
		return "TRANSIENT_FAILURE"
	}
	return "INTERNAL"
}

func statusFor(err error) int {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case model.IsNotFound(err):
		return http.StatusNotFound
	case model.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": KIND, "message": ..., "seats": [...]}.
// Internal failures are logged and their detail withheld from clients.
func (h *BookingHandler) writeError(c echo.Context, err error) error {
	status := statusFor(err)
	body := echo.Map{"error": errorKind(err)}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		body["message"] = "internal error"
	} else {
		body["message"] = err.Error()
	}
	if seats := model.SeatsOf(err); len(seats) > 0 {
		body["seats"] = seatViews(seats)
	}
	return c.JSON(status, body)
}
