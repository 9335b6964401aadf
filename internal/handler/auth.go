package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/labor-marketplace/internal/auth"
	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/repository"
	"github.com/iliyamo/labor-marketplace/internal/utils"
)

// AuthHandler bundles dependencies for the unauthenticated endpoints.
type AuthHandler struct {
	Svc      *auth.Service
	Accounts *repository.AccountRepo
	Hasher   utils.Hasher
	Log      *zap.Logger
}

func NewAuthHandler(svc *auth.Service, accounts *repository.AccountRepo, hasher utils.Hasher, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Svc: svc, Accounts: accounts, Hasher: hasher, Log: log}
}

// ----- DTOs -----

type signupReq struct {
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Skills   []string `json:"skills"` // non-empty -> labor, else employer
	Location string   `json:"location"`
	Phone    string   `json:"phone"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type verifyLoginReq struct {
	AccountID uint64 `json:"account_id"`
	OTP       string `json:"otp"`
}

type otpSentResp struct {
	Status    string    `json:"status"`
	AccountID uint64    `json:"account_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Warning   string    `json:"warning,omitempty"`
}

func otpSent(iss *auth.Issued, withAccount bool) otpSentResp {
	out := otpSentResp{Status: "otp_sent", ExpiresAt: iss.ExpiresAt}
	if withAccount {
		out.AccountID = iss.AccountID
	}
	if iss.Warning != nil {
		out.Warning = "otp delivery failed, request a new code if it does not arrive"
	}
	return out
}

// Signup creates an account together with its role profile.  Accounts
// with skills start as labor, all others as employer.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email/password required"})
	}
	if req.Username == "" {
		req.Username = req.Name
	}

	digest, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}
	s := repository.Signup{Account: model.Account{
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: digest,
	}}
	if len(req.Skills) > 0 {
		s.Account.Roles = model.NewRoleSet(model.RoleLabor)
		s.Labor = &model.LaborProfile{Skills: req.Skills, Location: req.Location, Phone: req.Phone, Lat: req.Lat, Lng: req.Lng}
	} else {
		s.Account.Roles = model.NewRoleSet(model.RoleEmployer)
		s.Employer = &model.EmployerProfile{Location: req.Location, Phone: req.Phone, Lat: req.Lat, Lng: req.Lng}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Accounts.Create(ctx, s)
	if err != nil {
		return writeError(c, err, "create account failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":    id,
		"email": req.Email,
		"roles": s.Account.Roles,
	})
}

// Login checks the credentials and emails a LOGIN passcode.  No token is
// returned until the passcode is verified.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	iss, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		status, _ := statusFor(err, "")
		if status == http.StatusInternalServerError {
			h.Log.Error("login failed", zap.Error(err))
		}
		return writeError(c, err, "login failed")
	}
	return c.JSON(http.StatusOK, otpSent(iss, true))
}

// VerifyOTP consumes a LOGIN passcode and returns the session token.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.OTP = strings.TrimSpace(req.OTP)
	if req.AccountID == 0 || req.OTP == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "account_id/otp required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Svc.VerifyOtp(ctx, model.PurposeLogin, req.AccountID, req.OTP)
	if err != nil {
		return writeError(c, err, "verify otp failed")
	}
	return c.JSON(http.StatusOK, out.Token)
}
