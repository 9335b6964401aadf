package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

const (
	laborColumns    = "id,account_id,skills,location,phone,lat,lng,created_at"
	employerColumns = "id,account_id,location,phone,lat,lng,created_at"
)

// ProfileRepo provides access to the role-specific profile tables
// (labor_profiles and employer_profiles).  A hybrid account owns a row in
// both tables.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo returns a new ProfileRepo bound to the given database.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

func insertLaborTx(ctx context.Context, tx *sql.Tx, p *model.LaborProfile, now time.Time) error {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO labor_profiles (account_id, skills, location, phone, lat, lng, created_at) VALUES (?,?,?,?,?,?,?)`,
		p.AccountID, string(skills), p.Location, p.Phone, p.Lat, p.Lng, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt = now
	return nil
}

func insertEmployerTx(ctx context.Context, tx *sql.Tx, p *model.EmployerProfile, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO employer_profiles (account_id, location, phone, lat, lng, created_at) VALUES (?,?,?,?,?,?)`,
		p.AccountID, p.Location, p.Phone, p.Lat, p.Lng, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt = now
	return nil
}

func scanLabor(s rowScanner) (model.LaborProfile, error) {
	var (
		p      model.LaborProfile
		skills sql.NullString
	)
	if err := s.Scan(&p.ID, &p.AccountID, &skills, &p.Location, &p.Phone, &p.Lat, &p.Lng, &p.CreatedAt); err != nil {
		return model.LaborProfile{}, err
	}
	if skills.Valid && skills.String != "" {
		if err := json.Unmarshal([]byte(skills.String), &p.Skills); err != nil {
			return model.LaborProfile{}, err
		}
	}
	return p, nil
}

func scanEmployer(s rowScanner) (model.EmployerProfile, error) {
	var p model.EmployerProfile
	err := s.Scan(&p.ID, &p.AccountID, &p.Location, &p.Phone, &p.Lat, &p.Lng, &p.CreatedAt)
	return p, err
}

// GetLabor returns the labor profile of an account or sql.ErrNoRows.
func (r *ProfileRepo) GetLabor(ctx context.Context, accountID uint64) (model.LaborProfile, error) {
	return scanLabor(r.db.QueryRowContext(ctx,
		"SELECT "+laborColumns+" FROM labor_profiles WHERE account_id=? LIMIT 1", accountID))
}

// GetEmployer returns the employer profile of an account or sql.ErrNoRows.
func (r *ProfileRepo) GetEmployer(ctx context.Context, accountID uint64) (model.EmployerProfile, error) {
	return scanEmployer(r.db.QueryRowContext(ctx,
		"SELECT "+employerColumns+" FROM employer_profiles WHERE account_id=? LIMIT 1", accountID))
}

// UpdatePhone writes phone to the profile of every role in roles that has
// one (labor and/or employer).  Both writes happen in one transaction.
// It returns ErrAccountNotFound when no profile row was updated.
func (r *ProfileRepo) UpdatePhone(ctx context.Context, accountID uint64, roles model.RoleSet, phone string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var updated int64
	for _, t := range []struct {
		role  model.Role
		query string
	}{
		{model.RoleLabor, "UPDATE labor_profiles SET phone=? WHERE account_id=?"},
		{model.RoleEmployer, "UPDATE employer_profiles SET phone=? WHERE account_id=?"},
	} {
		if !roles.Has(t.role) {
			continue
		}
		res, err := tx.ExecContext(ctx, t.query, phone, accountID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated += n
	}
	if updated == 0 {
		return ErrAccountNotFound
	}
	return tx.Commit()
}
