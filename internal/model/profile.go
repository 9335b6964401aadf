package model

import "time"

// LaborProfile mirrors the `labor_profiles` table.  It exists for every
// account holding the labor role.
type LaborProfile struct {
	ID        uint64    // labor_profiles.id
	AccountID uint64    // labor_profiles.account_id
	Skills    []string  // labor_profiles.skills (JSON array)
	Location  string    // labor_profiles.location
	Phone     string    // labor_profiles.phone
	Lat       float64   // labor_profiles.lat
	Lng       float64   // labor_profiles.lng
	CreatedAt time.Time // labor_profiles.created_at
}

// EmployerProfile mirrors the `employer_profiles` table.
type EmployerProfile struct {
	ID        uint64    // employer_profiles.id
	AccountID uint64    // employer_profiles.account_id
	Location  string    // employer_profiles.location
	Phone     string    // employer_profiles.phone
	Lat       float64   // employer_profiles.lat
	Lng       float64   // employer_profiles.lng
	CreatedAt time.Time // employer_profiles.created_at
}
