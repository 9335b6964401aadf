package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labor-marketplace/internal/auth"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores its claims in the request context under ClaimsKey (and the
// account id under UserIDKey).  Expired and invalid tokens are both 401
// but carry different messages so clients know to log in again.
func JWTAuth(tokens *auth.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			claims, err := tokens.Parse(raw)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(ClaimsKey, claims)
			c.Set(UserIDKey, strconv.FormatUint(claims.AccountID, 10))
			return next(c)
		}
	}
}
