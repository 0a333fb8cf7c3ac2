package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/middleware"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/service"
)

// IdempotencyHeader carries the client's retry key on POST /confirm.
const IdempotencyHeader = "Idempotency-Key"

// BookingService is the engine surface the HTTP layer drives.
type BookingService interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*service.Reservation, error)
	Release(ctx context.Context, req service.ReleaseRequest) ([]model.SeatKey, error)
	Confirm(ctx context.Context, req service.ConfirmRequest) (*model.Booking, bool, error)
	Cancel(ctx context.Context, req service.CancelRequest) (*model.Booking, bool, error)
	Booking(ctx context.Context, bookingID, callerID uint64) (*model.Booking, error)
	Bookings(ctx context.Context, userID uint64) ([]model.Booking, error)
	SeatMap(ctx context.Context, screeningID uint64) ([]model.Seat, error)
}

// BookingHandler serves the seat locking, booking and cancellation
// routes.  It assumes JWTAuth already ran; a request without a caller id
// gets 401.
type BookingHandler struct {
	svc BookingService
	log *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.  svc must be non-nil.
func NewBookingHandler(svc BookingService, log *zap.Logger) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{svc: svc, log: log}
}

type seatsRequest struct {
	ScreeningID uint64      `json:"screeningId" validate:"required"`
	Seats       []seatInput `json:"seats" validate:"required,min=1,max=50,dive"`
}

type confirmRequest struct {
	ScreeningID uint64      `json:"screeningId" validate:"required"`
	Seats       []seatInput `json:"seats" validate:"required,min=1,max=50,dive"`
	Amount      int64       `json:"amount" validate:"min=0"`
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "UNAUTHORIZED", "message": "caller is not authenticated"})
}

// bindValid binds the JSON body into dst and runs the registered validator.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", model.ErrValidation)
	}
	return c.Validate(dst)
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrValidation, name)
	}
	return id, nil
}

// Lock handles POST /v1/lock.
func (h *BookingHandler) Lock(c echo.Context) error {
	userID, ok := middleware.CallerID(c)
	if !ok {
		return unauthorized(c)
	}
	var body seatsRequest
	if err := bindValid(c, &body); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.svc.Reserve(c.Request().Context(), service.ReserveRequest{
		ScreeningID: body.ScreeningID,
		HolderID:    userID,
		Seats:       seatKeys(body.Seats),
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"screeningId": res.ScreeningID,
		"seats":       seatViews(res.Seats),
		"lockedUntil": res.LockedUntil.UTC(),
	})
}

// Release handles POST /v1/release.  Releasing seats the caller does not
// hold succeeds.
func (h *BookingHandler) Release(c echo.Context) error {
	userID, ok := middleware.CallerID(c)
	if !ok {
		return unauthorized(c)
	}
	var body seatsRequest
	if err := bindValid(c, &body); err != nil {
		return h.writeError(c, err)
	}
	seats, err := h.svc.Release(c.Request().Context(), service.ReleaseRequest{
		ScreeningID: body.ScreeningID,
		HolderID:    userID,
		Seats:       seatKeys(body.Seats),
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seatViews(seats)})
}

// Confirm handles POST /v1/confirm.  A new booking answers 201; a replay
// of an earlier Idempotency-Key answers 200 with the original booking.
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID, ok := middleware.CallerID(c)
	if !ok {
		return unauthorized(c)
	}
	var body confirmRequest
	if err := bindValid(c, &body); err != nil {
		return h.writeError(c, err)
	}
	b, replayed, err := h.svc.Confirm(c.Request().Context(), service.ConfirmRequest{
		ScreeningID:    body.ScreeningID,
		HolderID:       userID,
		Seats:          seatKeys(body.Seats),
		Amount:         body.Amount,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader)),
	})
	if err != nil {
		return h.writeError(c, err)
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{"booking": newBookingView(b)})
}

// Cancel handles DELETE /v1/bookings/:id and PATCH /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.cancel(c, false)
}

// AdminCancel handles PATCH /v1/admin/bookings/:id/cancel.  The route is
// guarded by RequireRole("ADMIN").
func (h *BookingHandler) AdminCancel(c echo.Context) error {
	return h.cancel(c, true)
}

func (h *BookingHandler) cancel(c echo.Context, override bool) error {
	userID, ok := middleware.CallerID(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return h.writeError(c, err)
	}
	b, _, err := h.svc.Cancel(c.Request().Context(), service.CancelRequest{
		BookingID: id,
		CallerID:  userID,
		Override:  override,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookingId": b.ID, "status": b.Status})
}

// GetBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, ok := middleware.CallerID(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return h.writeError(c, err)
	}
	b, err := h.svc.Booking(c.Request().Context(), id, userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": newBookingView(b)})
}

// ListBookings handles GET /v1/bookings.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	userID, ok := middleware.CallerID(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.svc.Bookings(c.Request().Context(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	items := make([]bookingView, 0, len(list))
	for i := range list {
		items = append(items, newBookingView(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// SeatMap handles GET /v1/screenings/:id/seats.  The map is reconciled on
// every call and never cached.
func (h *BookingHandler) SeatMap(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.writeError(c, err)
	}
	seats, err := h.svc.SeatMap(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	out := make([]seatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatView{Row: s.Row, Col: s.Col, Label: s.Key().Label(), Status: string(s.Status)})
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, echo.Map{"screeningId": id, "seats": out})
}
