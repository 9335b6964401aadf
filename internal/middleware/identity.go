package middleware

// identity.go holds the helpers shared across middleware files and
// handlers for reading the authenticated principal from the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labor-marketplace/internal/auth"
)

const (
	// ClaimsKey is the context key JWTAuth stores *auth.SessionClaims under.
	ClaimsKey = "claims"
	// UserIDKey holds the principal's account id as a decimal string.
	UserIDKey = "user_id"
)

// Principal returns the claims set by JWTAuth, or nil for anonymous
// requests.
func Principal(c echo.Context) *auth.SessionClaims {
	cl, _ := c.Get(ClaimsKey).(*auth.SessionClaims)
	return cl
}

// currentUserID returns the principal's id for keying, or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(UserIDKey).(string); ok && s != "" {
		return s
	}
	if cl := Principal(c); cl != nil {
		return strconv.FormatUint(cl.AccountID, 10)
	}
	return "anon"
}
