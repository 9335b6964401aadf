package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labor-marketplace/internal/auth"
	"github.com/iliyamo/labor-marketplace/internal/repository"
)

// statusFor maps core and storage errors to an HTTP status and a client
// message.  Unknown errors are 500 with the fallback message.
func statusFor(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, repository.ErrAccountNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrAccountDisabled):
		return http.StatusForbidden, "account disabled"
	case errors.Is(err, auth.ErrCodeMismatch):
		return http.StatusUnauthorized, "invalid otp"
	case errors.Is(err, auth.ErrCodeExpired):
		return http.StatusGone, "otp expired"
	case errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, auth.ErrInvalidPayload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict, "email already exists"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusBadRequest, "already a labor"
	}
	return http.StatusInternalServerError, fallback
}

func writeError(c echo.Context, err error, fallback string) error {
	status, msg := statusFor(err, fallback)
	return c.JSON(status, echo.Map{"error": msg})
}
