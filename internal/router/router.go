package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labor-marketplace/internal/auth"
	"github.com/iliyamo/labor-marketplace/internal/handler"
	"github.com/iliyamo/labor-marketplace/internal/middleware"
	"github.com/iliyamo/labor-marketplace/internal/model"
)

var (
	members = model.NewRoleSet(model.RoleLabor, model.RoleEmployer)
	admins  = model.NewRoleSet(model.RoleAdmin)
)

// Per-route authorization.  Identity-scoped routes name the path
// parameter holding the owner; admin routes are ownership-free.
var (
	PolicyMe              = auth.Policy{Name: "me"}
	PolicyUpdateNumber    = auth.Policy{Name: "update-number", Roles: members, OwnerParam: "id"}
	PolicyVerifyNumber    = auth.Policy{Name: "verify-otp-number", Roles: members, OwnerParam: "id"}
	PolicyDeleteAccount   = auth.Policy{Name: "delete-account", Roles: members, OwnerParam: "id"}
	PolicyVerifyDelete    = auth.Policy{Name: "verify-delete-otp", Roles: members, OwnerParam: "id"}
	PolicyTwoFactor       = auth.Policy{Name: "two-factor", Roles: members, OwnerParam: "id"}
	PolicyStoreToken      = auth.Policy{Name: "store-token", Roles: members, OwnerParam: "id"}
	PolicyAccountStatus   = auth.Policy{Name: "account-status", Roles: members, OwnerParam: "id"}
	PolicyBecomeLabor     = auth.Policy{Name: "become-a-labor", Roles: model.NewRoleSet(model.RoleEmployer), OwnerParam: "id"}
	PolicyAdminCountUsers = auth.Policy{Name: "admin-users-count", Roles: admins}
	PolicyAdminGetUser    = auth.Policy{Name: "admin-user-detail", Roles: admins}
	PolicyAdminUpdateUser = auth.Policy{Name: "admin-update-user", Roles: admins}
	PolicyAdminEmployers  = auth.Policy{Name: "admin-employers", Roles: admins}
	PolicyAdminLabors     = auth.Policy{Name: "admin-labors", Roles: admins}
	PolicyAdminHybrids    = auth.Policy{Name: "admin-hybrids", Roles: admins}
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	if h != nil {
		e.GET("/readyz", h.Ready)
	}
}

// RegisterAuth registers the login and signup flow under /v1/auth.  The
// whole group sits behind the rate limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/verify-otp", a.VerifyOTP)
}

// RegisterAccount registers the authenticated account routes.  Each
// route carries its own policy.
func RegisterAccount(e *echo.Echo, h *handler.AccountHandler, tokens *auth.TokenIssuer) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(tokens))

	g.GET("/me", h.Me, middleware.Authorize(PolicyMe))

	u := g.Group("/users/:id")
	u.POST("/update-number", h.UpdateNumber, middleware.Authorize(PolicyUpdateNumber))
	u.POST("/verify-otp-number", h.VerifyNumber, middleware.Authorize(PolicyVerifyNumber))
	u.POST("/delete-account", h.DeleteAccount, middleware.Authorize(PolicyDeleteAccount))
	u.POST("/verify-delete-otp", h.VerifyDelete, middleware.Authorize(PolicyVerifyDelete))
	u.POST("/two-factor", h.ToggleTwoFactor, middleware.Authorize(PolicyTwoFactor))
	u.POST("/store-token", h.StoreToken, middleware.Authorize(PolicyStoreToken))
	u.GET("/account-status", h.AccountStatus, middleware.Authorize(PolicyAccountStatus))
	u.POST("/become-a-labor", h.BecomeLabor, middleware.Authorize(PolicyBecomeLabor))
}

// RegisterAdmin registers the admin endpoints.  Only the user count is
// cached; per-account reads and listings change with every account write.
// cache runs after Authorize so cached responses are only served to admins.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, tokens *auth.TokenIssuer, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(tokens))

	count := []echo.MiddlewareFunc{middleware.Authorize(PolicyAdminCountUsers)}
	if cache != nil {
		count = append(count, cache)
	}
	g.GET("/users/count", h.CountUsers, count...)
	g.GET("/users/:id", h.GetUser, middleware.Authorize(PolicyAdminGetUser))
	g.PATCH("/users/:id", h.UpdateUser, middleware.Authorize(PolicyAdminUpdateUser))
	g.GET("/employers", h.ListEmployers, middleware.Authorize(PolicyAdminEmployers))
	g.GET("/labors", h.ListLabors, middleware.Authorize(PolicyAdminLabors))
	g.GET("/hybrids", h.ListHybrids, middleware.Authorize(PolicyAdminHybrids))
}
