package model

import (
	"sort"
	"time"
)

// Role is a capability tag carried by an account.  An account may hold
// several roles at once (a "hybrid" account, e.g. an employer that also
// offers labor).
type Role string

const (
	RoleLabor    Role = "labor"
	RoleEmployer Role = "employer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleLabor, RoleEmployer, RoleAdmin:
		return true
	}
	return false
}

// RoleSet is an ordered, duplicate-free set of roles.  It is stored as a
// JSON array in the accounts.roles column and carried verbatim in session
// claims.  Use NewRoleSet to build one so ordering and uniqueness hold.
type RoleSet []Role

// NewRoleSet returns the sorted, de-duplicated set of the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	seen := make(map[Role]bool, len(roles))
	out := make(RoleSet, 0, len(roles))
	for _, r := range roles {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether r is a member of the set.
func (s RoleSet) Has(r Role) bool {
	for _, v := range s {
		if v == r {
			return true
		}
	}
	return false
}

// Intersects reports whether s and other share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	for _, r := range other {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Add returns a new set containing s plus r.
func (s RoleSet) Add(r Role) RoleSet {
	return NewRoleSet(append(append(RoleSet{}, s...), r)...)
}

// IsEmpty reports whether the set has no roles.
func (s RoleSet) IsEmpty() bool { return len(s) == 0 }

// IsHybrid reports whether the account holds more than one role.
func (s RoleSet) IsHybrid() bool { return len(s) > 1 }

// IsPure reports whether r is the only role in the set.
func (s RoleSet) IsPure(r Role) bool { return len(s) == 1 && s[0] == r }

// Strings returns the roles as plain strings.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// Account represents an identity record as stored in the `accounts`
// table.  Accounts are never hard-deleted; IsDeleted marks a soft
// delete and a matching row is written to `disconnections`.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name carried in session claims.
//  Username     – public handle chosen at signup.
//  Email        – unique email address used to log in.
//  PasswordHash – bcrypt digest of the password.
//  Roles        – set of roles held by the account.
//  IsDeleted    – soft-delete flag.
//  TwoFactor    – whether the owner enabled two-factor login.
//  Active       – whether an admin has activated the account.
//  MessageToken – opaque push-notification token (may be empty).
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Account struct {
	ID           uint64
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Roles        RoleSet
	IsDeleted    bool
	TwoFactor    bool
	Active       bool
	MessageToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Disconnection records when an account was soft-deleted.
type Disconnection struct {
	ID        uint64
	AccountID uint64
	DeletedAt time.Time
}
