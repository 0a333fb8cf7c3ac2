package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/service"
	"github.com/iliyamo/seat-booking/internal/utils"
)

const secret = "router-secret"

// cancelOnly answers every call with not-found except Cancel, which
// records the request.
type cancelOnly struct {
	got []service.CancelRequest
}

func (s *cancelOnly) Reserve(context.Context, service.ReserveRequest) (*service.Reservation, error) {
	return nil, model.ErrScreeningNotFound
}
func (s *cancelOnly) Release(context.Context, service.ReleaseRequest) ([]model.SeatKey, error) {
	return nil, model.ErrScreeningNotFound
}
func (s *cancelOnly) Confirm(context.Context, service.ConfirmRequest) (*model.Booking, bool, error) {
	return nil, false, model.ErrScreeningNotFound
}
func (s *cancelOnly) Cancel(_ context.Context, req service.CancelRequest) (*model.Booking, bool, error) {
	s.got = append(s.got, req)
	return &model.Booking{ID: req.BookingID, Status: model.BookingCancelled}, true, nil
}
func (s *cancelOnly) Booking(context.Context, uint64, uint64) (*model.Booking, error) {
	return nil, model.ErrBookingNotFound
}
func (s *cancelOnly) Bookings(context.Context, uint64) ([]model.Booking, error) {
	return nil, nil
}
func (s *cancelOnly) SeatMap(context.Context, uint64) ([]model.Seat, error) {
	return nil, model.ErrScreeningNotFound
}

func token(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, time.Minute)
	require.NoError(t, err)
	return tok.Token
}

func TestRouteTable(t *testing.T) {
	svc := &cancelOnly{}
	e := echo.New()
	e.Validator = handler.NewValidator()
	limited := 0
	Register(e, Deps{
		Bookings:  handler.NewBookingHandler(svc, zap.NewNop()),
		JWTSecret: secret,
		Limiter: func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				limited++
				return next(c)
			}
		},
	})

	do := func(method, path, tok string) int {
		req := httptest.NewRequest(method, path, nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	user := token(t, 5, "USER")
	admin := token(t, 1, "ADMIN")

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/v1/bookings", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/v1/bookings", user))
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/v1/screenings/3/seats", user))
	assert.Equal(t, 0, limited)

	assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/v1/bookings/8", user))
	assert.Equal(t, http.StatusOK, do(http.MethodPatch, "/v1/bookings/8/cancel", user))
	assert.Equal(t, http.StatusForbidden, do(http.MethodPatch, "/v1/admin/bookings/8/cancel", user))
	assert.Equal(t, http.StatusOK, do(http.MethodPatch, "/v1/admin/bookings/8/cancel", admin))
	assert.Equal(t, 3, limited)

	require.Len(t, svc.got, 3)
	assert.Equal(t, service.CancelRequest{BookingID: 8, CallerID: 5}, svc.got[0])
	assert.Equal(t, service.CancelRequest{BookingID: 8, CallerID: 1, Override: true}, svc.got[2])
}
