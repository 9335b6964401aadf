package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/repository"
	"github.com/iliyamo/labor-marketplace/internal/utils"
)

// DefaultPasscodeValidity matches the generator window.
const DefaultPasscodeValidity = utils.OTPStep

// PasscodeStore persists at most one passcode per (account, purpose).
// Replace must drop the previous record and insert the new one
// atomically.  Delete must only remove the record if it still carries the
// nonce of p and report whether it did.
type PasscodeStore interface {
	Replace(ctx context.Context, p *model.PendingPasscode) error
	Find(ctx context.Context, accountID uint64, purpose model.Purpose) (*model.PendingPasscode, error)
	Delete(ctx context.Context, p *model.PendingPasscode) (bool, error)
}

// expiredPurger is implemented by stores that need an explicit sweep.
type expiredPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CodeGenerator derives the passcode for an account at a given time.
type CodeGenerator interface {
	Generate(accountID uint64, at time.Time) (string, error)
}

// Deliverer hands a passcode to an out-of-band channel (email, queue).
type Deliverer interface {
	SendOutOfBand(ctx context.Context, msg model.OutOfBandMessage) error
}

// IssueRequest describes one passcode issuance.
type IssueRequest struct {
	AccountID   uint64
	Purpose     model.Purpose
	Payload     model.PasscodePayload
	Destination string
}

// Issued is the result of a successful issuance.  Code is meant for the
// delivery channel only and must never be echoed back to the client.
// Warning is set when the passcode was stored but delivery failed.
type Issued struct {
	AccountID uint64
	Purpose   model.Purpose
	Code      string
	ExpiresAt time.Time
	Warning   *DeliveryWarning
}

// PasscodeManager owns the passcode lifecycle for every purpose: issue,
// consume and expiry.  It keeps no in-process state; all coordination
// happens in the store.
type PasscodeManager struct {
	store    PasscodeStore
	gen      CodeGenerator
	delivery Deliverer
	log      *zap.Logger
	validity time.Duration
	now      func() time.Time
}

// PasscodeOption customises a PasscodeManager.
type PasscodeOption func(*PasscodeManager)

// WithValidity overrides how long an issued passcode may be consumed.
func WithValidity(d time.Duration) PasscodeOption {
	return func(m *PasscodeManager) {
		if d > 0 {
			m.validity = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) PasscodeOption {
	return func(m *PasscodeManager) { m.now = now }
}

// WithLogger sets the logger used for delivery warnings and sweeps.
func WithLogger(l *zap.Logger) PasscodeOption {
	return func(m *PasscodeManager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewPasscodeManager wires a manager.  delivery may be nil, in which case
// passcodes are stored but never sent.
func NewPasscodeManager(store PasscodeStore, gen CodeGenerator, delivery Deliverer, opts ...PasscodeOption) *PasscodeManager {
	m := &PasscodeManager{
		store:    store,
		gen:      gen,
		delivery: delivery,
		log:      zap.NewNop(),
		validity: DefaultPasscodeValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validity returns the configured passcode lifetime.
func (m *PasscodeManager) Validity() time.Duration { return m.validity }

// Issue replaces any live passcode for (req.AccountID, req.Purpose) with a
// fresh one and sends it out of band.  A delivery failure does not undo
// the issuance; it is reported through Issued.Warning.
func (m *PasscodeManager) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if !req.Purpose.Valid() {
		return nil, fmt.Errorf("issue passcode: unknown purpose %q", req.Purpose)
	}
	now := m.now().UTC()
	code, err := m.gen.Generate(req.AccountID, now)
	if err != nil {
		return nil, fmt.Errorf("generate passcode: %w", err)
	}
	p := &model.PendingPasscode{
		AccountID: req.AccountID,
		Purpose:   req.Purpose,
		Code:      code,
		Payload:   req.Payload,
		Nonce:     ksuid.New().String(),
		CreatedAt: now,
	}
	if err := m.store.Replace(ctx, p); err != nil {
		return nil, fmt.Errorf("store passcode: %w", err)
	}

	out := &Issued{
		AccountID: req.AccountID,
		Purpose:   req.Purpose,
		Code:      code,
		ExpiresAt: now.Add(m.validity),
	}
	if m.delivery == nil {
		return out, nil
	}
	err = m.delivery.SendOutOfBand(ctx, model.OutOfBandMessage{
		ID:          ksuid.New().String(),
		AccountID:   req.AccountID,
		Destination: req.Destination,
		Purpose:     req.Purpose,
		Code:        code,
		ExpiresAt:   out.ExpiresAt,
	})
	if err != nil {
		out.Warning = &DeliveryWarning{AccountID: req.AccountID, Purpose: req.Purpose, Err: err}
		m.log.Warn("passcode delivery failed",
			zap.Uint64("account_id", req.AccountID),
			zap.String("purpose", string(req.Purpose)),
			zap.Error(err))
	}
	return out, nil
}

// Consume checks code against the live passcode for (accountID, purpose)
// and, on a match, deletes it and returns its payload.  A passcode can be
// consumed at most once; a second attempt gets ErrNotFound.
func (m *PasscodeManager) Consume(ctx context.Context, accountID uint64, purpose model.Purpose, code string) (model.PasscodePayload, error) {
	p, err := m.store.Find(ctx, accountID, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrPasscodeNotFound) {
			return model.PasscodePayload{}, ErrNotFound
		}
		return model.PasscodePayload{}, fmt.Errorf("load passcode: %w", err)
	}

	if m.now().Sub(p.CreatedAt) > m.validity {
		if _, err := m.store.Delete(ctx, p); err != nil {
			m.log.Warn("purge expired passcode failed",
				zap.Uint64("account_id", accountID),
				zap.String("purpose", string(purpose)),
				zap.Error(err))
		}
		return model.PasscodePayload{}, ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(p.Code)) != 1 {
		return model.PasscodePayload{}, ErrCodeMismatch
	}

	deleted, err := m.store.Delete(ctx, p)
	if err != nil {
		return model.PasscodePayload{}, fmt.Errorf("consume passcode: %w", err)
	}
	if !deleted {
		// consumed or replaced by a concurrent request
		return model.PasscodePayload{}, ErrNotFound
	}
	return p.Payload, nil
}

// Sweep purges expired passcodes when the store supports it and returns
// the number removed.
func (m *PasscodeManager) Sweep(ctx context.Context) (int64, error) {
	purger, ok := m.store.(expiredPurger)
	if !ok {
		return 0, nil
	}
	return purger.DeleteExpired(ctx, m.now().Add(-m.validity))
}

// RunSweeper calls Sweep every interval until ctx is cancelled.  Stores
// without an explicit purge (Redis keys carry a TTL) return immediately.
func (m *PasscodeManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if _, ok := m.store.(expiredPurger); !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				m.log.Error("passcode sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.log.Info("expired passcodes purged", zap.Int64("count", n))
			}
		}
	}
}
