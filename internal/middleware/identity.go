package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id, or false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
	s, ok := c.Get(CtxUserID).(string)
	if !ok || s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Role returns the role claim stored by JWTAuth, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

// rateSubject identifies the caller for rate-limit keys.
func rateSubject(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
