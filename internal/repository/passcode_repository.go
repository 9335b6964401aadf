package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

// PasscodeRepo stores pending passcodes in the pending_passcodes table.
// The table carries a UNIQUE(account_id, purpose) key so that a second
// live row for the same pair can never be committed.  All timestamps are
// stored in UTC.
type PasscodeRepo struct {
	db *sql.DB
}

// NewPasscodeRepo returns a new PasscodeRepo bound to the given database.
func NewPasscodeRepo(db *sql.DB) *PasscodeRepo { return &PasscodeRepo{db: db} }

// Replace deletes any existing passcode for (p.AccountID, p.Purpose) and
// inserts p, inside one transaction.  On success p.ID is populated.
func (r *PasscodeRepo) Replace(ctx context.Context, p *model.PendingPasscode) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("encode passcode payload: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin passcode replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_passcodes WHERE account_id = ? AND purpose = ?`,
		p.AccountID, string(p.Purpose)); err != nil {
		return fmt.Errorf("delete previous passcode: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO pending_passcodes (account_id, purpose, code, payload, nonce, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.AccountID, string(p.Purpose), p.Code, string(payload), p.Nonce, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert passcode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit passcode replace: %w", err)
	}
	p.ID = uint64(id)
	return nil
}

// Find returns the live passcode for (accountID, purpose) or
// ErrPasscodeNotFound.  Expiry is not checked here.
func (r *PasscodeRepo) Find(ctx context.Context, accountID uint64, purpose model.Purpose) (*model.PendingPasscode, error) {
	var (
		p       model.PendingPasscode
		kind    string
		payload sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, purpose, code, payload, nonce, created_at FROM pending_passcodes WHERE account_id = ? AND purpose = ? LIMIT 1`,
		accountID, string(purpose),
	).Scan(&p.ID, &p.AccountID, &kind, &p.Code, &payload, &p.Nonce, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPasscodeNotFound
		}
		return nil, fmt.Errorf("find passcode: %w", err)
	}
	p.Purpose = model.Purpose(kind)
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &p.Payload); err != nil {
			return nil, fmt.Errorf("decode passcode payload: %w", err)
		}
	}
	return &p, nil
}

// Delete removes p only if the stored row still carries p's nonce.  It
// reports whether a row was removed; false means another request already
// consumed or replaced it.
func (r *PasscodeRepo) Delete(ctx context.Context, p *model.PendingPasscode) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_passcodes WHERE account_id = ? AND purpose = ? AND nonce = ?`,
		p.AccountID, string(p.Purpose), p.Nonce)
	if err != nil {
		return false, fmt.Errorf("delete passcode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired removes every passcode created before cutoff and returns
// the number of rows purged.
func (r *PasscodeRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_passcodes WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired passcodes: %w", err)
	}
	return res.RowsAffected()
}
