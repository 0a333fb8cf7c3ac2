package middleware

// identity.go holds the helpers that read the caller established by
// JWTAuth back out of the Echo context.

import (
	"encoding/json"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// CallerID returns the authenticated user id.  JSON numbers decode as
// float64 and some issuers send the subject as a string, so every form is
// accepted.  ok is false when no positive id is present.
func CallerID(c echo.Context) (uint64, bool) {
	switch v := c.Get(CtxUserID).(type) {
	case uint64:
		return v, v > 0
	case float64:
		if v <= 0 || v != float64(uint64(v)) {
			return 0, false
		}
		return uint64(v), true
	case int64:
		return uint64(v), v > 0
	case int:
		return uint64(v), v > 0
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		return n, err == nil && n > 0
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}

// Role returns the caller's role claim, or "" when absent.
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

// userKey renders the caller for rate limit keys; anonymous callers
// share the "anon" bucket segment.
func userKey(c echo.Context) string {
	if id, ok := CallerID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
