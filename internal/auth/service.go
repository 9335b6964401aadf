package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/repository"
)

// ErrInvalidPayload is returned when a purpose change request is missing
// the data it must carry.
var ErrInvalidPayload = errors.New("invalid passcode payload")

// AccountStore is the account storage used by Service.
type AccountStore interface {
	AccountLookup
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	SoftDelete(ctx context.Context, id uint64, at time.Time) error
}

// PhoneWriter writes a phone number to the role-specific profiles.
type PhoneWriter interface {
	UpdatePhone(ctx context.Context, accountID uint64, roles model.RoleSet, phone string) error
}

// Outcome is the result of a consumed passcode.  Token is set for LOGIN;
// Applied carries the payload that was applied for the other purposes.
type Outcome struct {
	Purpose model.Purpose
	Token   *AccessToken
	Applied model.PasscodePayload
}

// Service exposes the operations the route layer calls.
type Service struct {
	accounts  AccountStore
	profiles  PhoneWriter
	verifier  *CredentialVerifier
	passcodes *PasscodeManager
	tokens    *TokenIssuer
	now       func() time.Time
}

// NewService wires the core together.
func NewService(accounts AccountStore, profiles PhoneWriter, hasher PasswordChecker, passcodes *PasscodeManager, tokens *TokenIssuer) *Service {
	return &Service{
		accounts:  accounts,
		profiles:  profiles,
		verifier:  NewCredentialVerifier(accounts, hasher),
		passcodes: passcodes,
		tokens:    tokens,
		now:       time.Now,
	}
}

// Tokens returns the issuer used to sign session tokens.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Login verifies the credentials and issues a LOGIN passcode to the
// account's email address.
func (s *Service) Login(ctx context.Context, email, password string) (*Issued, error) {
	acc, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.passcodes.Issue(ctx, IssueRequest{
		AccountID:   acc.ID,
		Purpose:     model.PurposeLogin,
		Destination: acc.Email,
	})
}

// RequestPurposeChange issues a CHANGE_NUMBER or DELETE_ACCOUNT passcode
// for accountID.  CHANGE_NUMBER needs payload.Number; DELETE_ACCOUNT
// always carries the deletion marker.
func (s *Service) RequestPurposeChange(ctx context.Context, purpose model.Purpose, accountID uint64, payload model.PasscodePayload) (*Issued, error) {
	switch purpose {
	case model.PurposeChangeNumber:
		if payload.Number == "" {
			return nil, fmt.Errorf("%w: number is required", ErrInvalidPayload)
		}
		payload.Delete = false
	case model.PurposeDeleteAccount:
		payload = model.PasscodePayload{Delete: true}
	default:
		return nil, fmt.Errorf("%w: purpose %q cannot be requested", ErrInvalidPayload, purpose)
	}

	acc, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.IsDeleted {
		return nil, ErrAccountDisabled
	}
	return s.passcodes.Issue(ctx, IssueRequest{
		AccountID:   acc.ID,
		Purpose:     purpose,
		Payload:     payload,
		Destination: acc.Email,
	})
}

// VerifyOtp consumes the passcode for (purpose, accountID) and applies
// its purpose-specific effect.
func (s *Service) VerifyOtp(ctx context.Context, purpose model.Purpose, accountID uint64, code string) (*Outcome, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidPayload, purpose)
	}
	payload, err := s.passcodes.Consume(ctx, accountID, purpose, code)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Purpose: purpose, Applied: payload}

	switch purpose {
	case model.PurposeLogin:
		acc, err := s.account(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if acc.IsDeleted {
			return nil, ErrAccountDisabled
		}
		tok, err := s.tokens.Issue(acc)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		out.Token = &tok
	case model.PurposeChangeNumber:
		acc, err := s.account(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := s.profiles.UpdatePhone(ctx, acc.ID, acc.Roles, payload.Number); err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("update phone: %w", err)
		}
	case model.PurposeDeleteAccount:
		if !payload.Delete {
			return nil, fmt.Errorf("%w: deletion marker missing", ErrInvalidPayload)
		}
		if err := s.accounts.SoftDelete(ctx, accountID, s.now().UTC()); err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("soft delete: %w", err)
		}
	}
	return out, nil
}

// Authorize parses token and evaluates policy against it.  Any token
// failure is a plain Deny.
func (s *Service) Authorize(token string, policy Policy, owner *uint64) Decision {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Deny
	}
	return policy.Evaluate(claims, owner)
}

func (s *Service) account(ctx context.Context, id uint64) (model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}
	return acc, nil
}
