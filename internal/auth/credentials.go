package auth

import (
	"context"
	"errors"

	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/repository"
)

// AccountLookup is the account storage the verifier reads from.
type AccountLookup interface {
	GetByEmail(ctx context.Context, email string) (model.Account, error)
}

// PasswordChecker compares a plaintext password against a stored digest.
type PasswordChecker interface {
	Verify(plain, digest string) (bool, error)
}

// CredentialVerifier checks an email and password pair against storage.
type CredentialVerifier struct {
	accounts AccountLookup
	hasher   PasswordChecker
}

// NewCredentialVerifier returns a verifier backed by accounts and hasher.
func NewCredentialVerifier(accounts AccountLookup, hasher PasswordChecker) *CredentialVerifier {
	return &CredentialVerifier{accounts: accounts, hasher: hasher}
}

// Verify returns the account owning email when password matches its
// digest.  The soft-delete flag is only consulted after the password
// matched, so a deleted account looks like a wrong password to anyone
// who does not know it.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (model.Account, error) {
	acc, err := v.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}
	ok, err := v.hasher.Verify(password, acc.PasswordHash)
	if err != nil {
		return model.Account{}, err
	}
	if !ok {
		return model.Account{}, ErrUnauthorized
	}
	if acc.IsDeleted {
		return model.Account{}, ErrAccountDisabled
	}
	return acc, nil
}
