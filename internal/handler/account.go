package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labor-marketplace/internal/auth"
	"github.com/iliyamo/labor-marketplace/internal/middleware"
	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/repository"
)

// AccountHandler serves the identity-scoped /v1/users/:id endpoints and
// /v1/me.  Ownership is enforced by the route policy; handlers trust
// the :id parameter once they run.
type AccountHandler struct {
	Svc      *auth.Service
	Accounts *repository.AccountRepo
	Profiles *repository.ProfileRepo
}

func NewAccountHandler(svc *auth.Service, accounts *repository.AccountRepo, profiles *repository.ProfileRepo) *AccountHandler {
	return &AccountHandler{Svc: svc, Accounts: accounts, Profiles: profiles}
}

type numberReq struct {
	Number string `json:"number"`
}
type otpReq struct {
	OTP string `json:"otp"`
}
type pushTokenReq struct {
	Token string `json:"token"`
}
type skillsReq struct {
	Skills []string `json:"skills"`
}

type accountView struct {
	ID        uint64                 `json:"id"`
	Name      string                 `json:"name"`
	Username  string                 `json:"username"`
	Email     string                 `json:"email"`
	Roles     model.RoleSet          `json:"roles"`
	Hybrid    bool                   `json:"hybrid"`
	TwoFactor bool                   `json:"two_factor"`
	Active    bool                   `json:"active"`
	IsDeleted bool                   `json:"is_deleted"`
	Labor     *model.LaborProfile    `json:"labor,omitempty"`
	Employer  *model.EmployerProfile `json:"employer,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	DeletedAt *time.Time             `json:"deleted_at,omitempty"`
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// loadView reads the account and the profiles its roles imply.
func loadView(ctx context.Context, accounts *repository.AccountRepo, profiles *repository.ProfileRepo, id uint64) (accountView, error) {
	acc, err := accounts.GetByID(ctx, id)
	if err != nil {
		return accountView{}, err
	}
	return viewOf(ctx, profiles, acc)
}

func viewOf(ctx context.Context, profiles *repository.ProfileRepo, acc model.Account) (accountView, error) {
	id := acc.ID
	v := accountView{
		ID: acc.ID, Name: acc.Name, Username: acc.Username, Email: acc.Email,
		Roles: acc.Roles, Hybrid: acc.Roles.IsHybrid(),
		TwoFactor: acc.TwoFactor, Active: acc.Active, IsDeleted: acc.IsDeleted,
		CreatedAt: acc.CreatedAt,
	}
	if profiles == nil {
		return v, nil
	}
	if acc.Roles.Has(model.RoleLabor) {
		p, err := profiles.GetLabor(ctx, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return accountView{}, err
		}
		if err == nil {
			v.Labor = &p
		}
	}
	if acc.Roles.Has(model.RoleEmployer) {
		p, err := profiles.GetEmployer(ctx, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return accountView{}, err
		}
		if err == nil {
			v.Employer = &p
		}
	}
	return v, nil
}

// Me returns the authenticated principal's account.
func (h *AccountHandler) Me(c echo.Context) error {
	p := middleware.Principal(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := loadView(ctx, h.Accounts, h.Profiles, p.AccountID)
	if err != nil {
		return writeError(c, err, "load account failed")
	}
	return c.JSON(http.StatusOK, v)
}

// UpdateNumber starts the CHANGE_NUMBER workflow.
func (h *AccountHandler) UpdateNumber(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req numberReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Number = strings.TrimSpace(req.Number)
	if req.Number == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "number required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	iss, err := h.Svc.RequestPurposeChange(ctx, model.PurposeChangeNumber, id, model.PasscodePayload{Number: req.Number})
	if err != nil {
		return writeError(c, err, "request otp failed")
	}
	return c.JSON(http.StatusOK, otpSent(iss, false))
}

// VerifyNumber consumes the CHANGE_NUMBER passcode and writes the number.
func (h *AccountHandler) VerifyNumber(c echo.Context) error {
	id, otp, err := h.bindOTP(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Svc.VerifyOtp(ctx, model.PurposeChangeNumber, id, otp)
	if err != nil {
		return writeError(c, err, "verify otp failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "number_updated", "number": out.Applied.Number})
}

// DeleteAccount starts the DELETE_ACCOUNT workflow.
func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	iss, err := h.Svc.RequestPurposeChange(ctx, model.PurposeDeleteAccount, id, model.PasscodePayload{})
	if err != nil {
		return writeError(c, err, "request otp failed")
	}
	return c.JSON(http.StatusOK, otpSent(iss, false))
}

// VerifyDelete consumes the DELETE_ACCOUNT passcode and soft-deletes.
func (h *AccountHandler) VerifyDelete(c echo.Context) error {
	id, otp, err := h.bindOTP(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Svc.VerifyOtp(ctx, model.PurposeDeleteAccount, id, otp); err != nil {
		return writeError(c, err, "verify otp failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "account_deleted"})
}

func (h *AccountHandler) bindOTP(c echo.Context) (uint64, string, error) {
	id, err := pathID(c)
	if err != nil {
		return 0, "", errors.New("invalid id")
	}
	var req otpReq
	if err := c.Bind(&req); err != nil {
		return 0, "", errors.New("invalid body")
	}
	req.OTP = strings.TrimSpace(req.OTP)
	if req.OTP == "" {
		return 0, "", errors.New("otp required")
	}
	return id, req.OTP, nil
}

// ToggleTwoFactor flips the two-factor flag and returns the new value.
func (h *AccountHandler) ToggleTwoFactor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	on, err := h.Accounts.ToggleTwoFactor(ctx, id)
	if err != nil {
		return writeError(c, err, "toggle two-factor failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"two_factor": on})
}

// StoreToken saves the push-notification token.
func (h *AccountHandler) StoreToken(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req pushTokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.SetMessageToken(ctx, id, strings.TrimSpace(req.Token)); err != nil {
		return writeError(c, err, "store token failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// AccountStatus reports whether an admin has activated the account.
func (h *AccountHandler) AccountStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	acc, err := h.Accounts.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err, "load account failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"active": acc.Active})
}

// BecomeLabor turns an employer into a hybrid employer+labor account.
// The caller must log in again for the new role to appear in its token.
func (h *AccountHandler) BecomeLabor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req skillsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	acc, err := h.Accounts.BecomeLabor(ctx, id, req.Skills)
	if err != nil {
		return writeError(c, err, "become labor failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": acc.ID, "roles": acc.Roles, "hybrid": acc.Roles.IsHybrid()})
}
