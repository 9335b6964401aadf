package auth

import "github.com/iliyamo/labor-marketplace/internal/model"

// Decision is the outcome of an authorization check.  Denials are never
// broken down by cause.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "ALLOW"
	}
	return "DENY"
}

// Decide combines the role gate and the ownership gate.  Both must pass:
//
//  1. no principal                      -> DENY
//  2. no required roles                 -> ALLOW
//  3. no shared role                    -> DENY
//  4. owner given and not the principal -> DENY
//  5. otherwise                         -> ALLOW
//
// Admins get no special treatment here; routes open to admins regardless
// of ownership simply pass a nil owner.
func Decide(principal *SessionClaims, required model.RoleSet, owner *uint64) Decision {
	if principal == nil {
		return Deny
	}
	if required.IsEmpty() {
		return Allow
	}
	if !principal.Roles.Intersects(required) {
		return Deny
	}
	if owner != nil && *owner != principal.AccountID {
		return Deny
	}
	return Allow
}

// Policy is the authorization requirement declared next to a route.
// OwnerParam names the path parameter holding the owning account id;
// empty means the route is not identity scoped.
type Policy struct {
	Name       string
	Roles      model.RoleSet
	OwnerParam string
}

// OwnerScoped reports whether the policy carries an ownership gate.
func (p Policy) OwnerScoped() bool { return p.OwnerParam != "" }

// Evaluate runs Decide for the policy.  owner is ignored for policies
// that are not owner scoped; an owner scoped policy without a resolved
// owner is denied.
func (p Policy) Evaluate(principal *SessionClaims, owner *uint64) Decision {
	if !p.OwnerScoped() {
		return Decide(principal, p.Roles, nil)
	}
	if owner == nil {
		return Deny
	}
	return Decide(principal, p.Roles, owner)
}
