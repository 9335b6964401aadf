// Package auth holds the identity and access control core: credential
// verification, the passcode workflows, session tokens and the
// authorization decision function.  Every failure is reported as one of
// the sentinel errors below so callers can branch with errors.Is.
package auth

import (
	"errors"
	"fmt"

	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/utils"
)

var (
	// ErrNotFound is returned when an account or passcode does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when a password does not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountDisabled is returned when a soft-deleted account
	// authenticates successfully.
	ErrAccountDisabled = errors.New("account disabled")
	ErrCodeMismatch    = errors.New("passcode mismatch")
	ErrCodeExpired     = errors.New("passcode expired")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	// ErrInvalidCredentialFormat is returned when a stored password
	// digest cannot be parsed.
	ErrInvalidCredentialFormat = utils.ErrInvalidCredentialFormat
	// ErrDeliveryWarning marks a passcode that was stored but could not
	// be handed to the delivery collaborator.  It is never returned as
	// an operation error; see DeliveryWarning.
	ErrDeliveryWarning = errors.New("passcode delivery failed")
)

// DeliveryWarning describes a failed out-of-band send.  The passcode it
// refers to is still live.
type DeliveryWarning struct {
	AccountID uint64
	Purpose   model.Purpose
	Err       error
}

func (w *DeliveryWarning) Error() string {
	return fmt.Sprintf("%s for account %d (%s): %v", ErrDeliveryWarning, w.AccountID, w.Purpose, w.Err)
}

// Unwrap exposes both ErrDeliveryWarning and the transport error.
func (w *DeliveryWarning) Unwrap() []error { return []error{ErrDeliveryWarning, w.Err} }
