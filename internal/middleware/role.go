package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labor-marketplace/internal/auth"
)

// Authorize enforces policy for the wrapped route.  It must run after
// JWTAuth.  When the policy is owner scoped the owning account id is read
// from the path parameter policy.OwnerParam; an unparsable id is treated
// as an unresolved owner and denied.  Every denial is the same 403 so the
// response does not reveal which gate failed.
func Authorize(policy auth.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var owner *uint64
			if policy.OwnerScoped() {
				if id, err := strconv.ParseUint(c.Param(policy.OwnerParam), 10, 64); err == nil {
					owner = &id
				}
			}
			if policy.Evaluate(Principal(c), owner) != auth.Allow {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
