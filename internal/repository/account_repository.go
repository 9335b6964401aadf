package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

const accountColumns = "id,name,username,email,password_hash,roles,is_deleted,two_factor,active,message_token,created_at,updated_at"

// AccountRepo persists accounts and their soft-delete log.  Emails are
// matched exactly; callers normalize them before reaching this layer.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (model.Account, error) {
	var (
		a     model.Account
		roles string
		token sql.NullString
	)
	err := s.Scan(&a.ID, &a.Name, &a.Username, &a.Email, &a.PasswordHash, &roles,
		&a.IsDeleted, &a.TwoFactor, &a.Active, &token, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrAccountNotFound
		}
		return model.Account{}, err
	}
	if a.Roles, err = decodeRoles(roles); err != nil {
		return model.Account{}, err
	}
	a.MessageToken = token.String
	return a, nil
}

func encodeRoles(roles model.RoleSet) (string, error) {
	b, err := json.Marshal(model.NewRoleSet(roles...).Strings())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRoles(raw string) (model.RoleSet, error) {
	if strings.TrimSpace(raw) == "" {
		return model.RoleSet{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	roles := make([]model.Role, 0, len(names))
	for _, n := range names {
		r := model.Role(n)
		if !r.Valid() {
			return nil, fmt.Errorf("decode roles: unknown role %q", n)
		}
		roles = append(roles, r)
	}
	return model.NewRoleSet(roles...), nil
}

// isDuplicate reports whether err is a unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}

// Signup describes a new account together with the role profile created
// alongside it.  Exactly one of Labor or Employer should be set.
type Signup struct {
	Account  model.Account
	Labor    *model.LaborProfile
	Employer *model.EmployerProfile
}

// Create inserts the account and its role profile in one transaction and
// returns the new account ID.
func (r *AccountRepo) Create(ctx context.Context, s Signup) (uint64, error) {
	roles, err := encodeRoles(s.Account.Roles)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (name, username, email, password_hash, roles, is_deleted, two_factor, active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.Account.Name, s.Account.Username, s.Account.Email, s.Account.PasswordHash, roles,
		false, s.Account.TwoFactor, s.Account.Active, now, now)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	accountID := uint64(id)

	if s.Labor != nil {
		s.Labor.AccountID = accountID
		if err := insertLaborTx(ctx, tx, s.Labor, now); err != nil {
			return 0, err
		}
	}
	if s.Employer != nil {
		s.Employer.AccountID = accountID
		if err := insertEmployerTx(ctx, tx, s.Employer, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return accountID, nil
}

// GetByEmail fetches an account by exact email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
}

// Count returns the number of accounts, including soft-deleted ones.
func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n)
	return n, err
}

// SoftDelete flags the account as deleted and records the disconnection
// in the same transaction.
func (r *AccountRepo) SoftDelete(ctx context.Context, id uint64, at time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET is_deleted=?, updated_at=? WHERE id=?", true, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO disconnections (account_id, deleted_at) VALUES (?,?)", id, at.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// LastDisconnection returns the most recent soft-delete record for the
// account, or nil when it was never deleted.
func (r *AccountRepo) LastDisconnection(ctx context.Context, id uint64) (*model.Disconnection, error) {
	var d model.Disconnection
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, account_id, deleted_at FROM disconnections WHERE account_id=? ORDER BY deleted_at DESC, id DESC LIMIT 1", id).
		Scan(&d.ID, &d.AccountID, &d.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// SetActive records whether an admin has activated the account.
func (r *AccountRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET active=?, updated_at=? WHERE id=?", active, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// listLive returns the accounts that are not soft-deleted and whose role
// set satisfies keep, ordered by id.
func (r *AccountRepo) listLive(ctx context.Context, keep func(model.RoleSet) bool) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE is_deleted=? ORDER BY id", false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		if keep(a.Roles) {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

// ListPure returns live accounts holding role and nothing else.
func (r *AccountRepo) ListPure(ctx context.Context, role model.Role) ([]model.Account, error) {
	return r.listLive(ctx, func(s model.RoleSet) bool { return s.IsPure(role) })
}

// ListHybrid returns live accounts holding more than one role.
func (r *AccountRepo) ListHybrid(ctx context.Context) ([]model.Account, error) {
	return r.listLive(ctx, model.RoleSet.IsHybrid)
}

// ToggleTwoFactor flips the two-factor flag and returns the new value.
func (r *AccountRepo) ToggleTwoFactor(ctx context.Context, id uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET two_factor = NOT two_factor, updated_at=? WHERE id=?", time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return false, ErrAccountNotFound
	}
	var enabled bool
	if err := r.DB.QueryRowContext(ctx, "SELECT two_factor FROM accounts WHERE id=?", id).Scan(&enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetMessageToken stores the push-notification token for the account.
func (r *AccountRepo) SetMessageToken(ctx context.Context, id uint64, token string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET message_token=?, updated_at=? WHERE id=?", token, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// BecomeLabor adds the labor role to an employer account and creates its
// labor profile, copying location and phone from the employer profile.
// It returns ErrConflict when the account already holds the labor role.
func (r *AccountRepo) BecomeLabor(ctx context.Context, id uint64, skills []string) (model.Account, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Account{}, err
	}
	defer func() { _ = tx.Rollback() }()

	acc, err := scanAccount(tx.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
	if err != nil {
		return model.Account{}, err
	}
	if acc.Roles.Has(model.RoleLabor) {
		return model.Account{}, ErrConflict
	}
	acc.Roles = acc.Roles.Add(model.RoleLabor)
	roles, err := encodeRoles(acc.Roles)
	if err != nil {
		return model.Account{}, err
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE accounts SET roles=?, updated_at=? WHERE id=?", roles, now, id); err != nil {
		return model.Account{}, err
	}

	labor := &model.LaborProfile{AccountID: id, Skills: skills}
	emp, err := scanEmployer(tx.QueryRowContext(ctx,
		"SELECT "+employerColumns+" FROM employer_profiles WHERE account_id=? LIMIT 1", id))
	switch {
	case err == nil:
		labor.Location, labor.Phone, labor.Lat, labor.Lng = emp.Location, emp.Phone, emp.Lat, emp.Lng
	case errors.Is(err, sql.ErrNoRows):
	default:
		return model.Account{}, err
	}
	if err := insertLaborTx(ctx, tx, labor, now); err != nil {
		return model.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Account{}, err
	}
	acc.UpdatedAt = now
	return acc, nil
}
