package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/repository"
)

// AdminHandler serves the ownership-free admin endpoints.
type AdminHandler struct {
	Accounts *repository.AccountRepo
	Profiles *repository.ProfileRepo
}

func NewAdminHandler(accounts *repository.AccountRepo, profiles *repository.ProfileRepo) *AdminHandler {
	return &AdminHandler{Accounts: accounts, Profiles: profiles}
}

type activeReq struct {
	Active *bool `json:"active"`
}

// CountUsers returns the total number of accounts, deleted included.
func (h *AdminHandler) CountUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Accounts.Count(ctx)
	if err != nil {
		return writeError(c, err, "count users failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

// GetUser returns any account by id.  Deleted accounts carry the time of
// their last disconnection.
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := loadView(ctx, h.Accounts, h.Profiles, id)
	if err != nil {
		return writeError(c, err, "load account failed")
	}
	if v.IsDeleted {
		d, err := h.Accounts.LastDisconnection(ctx, id)
		if err != nil {
			return writeError(c, err, "load account failed")
		}
		if d != nil {
			v.DeletedAt = &d.DeletedAt
		}
	}
	return c.JSON(http.StatusOK, v)
}

// UpdateUser activates or deactivates an account.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req activeReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.SetActive(ctx, id, *req.Active); err != nil {
		return writeError(c, err, "update user failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "active": *req.Active})
}

// ListEmployers returns live accounts that are employers only.
func (h *AdminHandler) ListEmployers(c echo.Context) error {
	return h.list(c, func(ctx context.Context) ([]model.Account, error) {
		return h.Accounts.ListPure(ctx, model.RoleEmployer)
	})
}

// ListLabors returns live accounts that are labors only.
func (h *AdminHandler) ListLabors(c echo.Context) error {
	return h.list(c, func(ctx context.Context) ([]model.Account, error) {
		return h.Accounts.ListPure(ctx, model.RoleLabor)
	})
}

// ListHybrids returns live accounts holding several roles.
func (h *AdminHandler) ListHybrids(c echo.Context) error {
	return h.list(c, h.Accounts.ListHybrid)
}

func (h *AdminHandler) list(c echo.Context, fetch func(context.Context) ([]model.Account, error)) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	accs, err := fetch(ctx)
	if err != nil {
		return writeError(c, err, "list users failed")
	}
	out := make([]accountView, 0, len(accs))
	for _, acc := range accs {
		v, err := viewOf(ctx, h.Profiles, acc)
		if err != nil {
			return writeError(c, err, "list users failed")
		}
		out = append(out, v)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out, "count": len(out)})
}
