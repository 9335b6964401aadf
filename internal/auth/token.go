package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

// DefaultTokenTTL is used when no lifetime is configured.
const DefaultTokenTTL = 8 * time.Hour

// SessionClaims is the principal carried by an access token.  It is
// derived from the account at issuance time and never persisted.
type SessionClaims struct {
	AccountID uint64        `json:"uid"`
	Name      string        `json:"name"`
	Roles     model.RoleSet `json:"roles"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// TokenIssuer signs and parses HS256 session tokens.  There is no
// refresh token; once a token expires the user logs in again.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenIssuer returns an issuer signing with secret.  A non-positive
// ttl falls back to DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// SetClock overrides the time source used for iat/exp and validation.
func (t *TokenIssuer) SetClock(now func() time.Time) { t.now = now }

// Issue builds session claims from acc and signs them.
func (t *TokenIssuer) Issue(acc model.Account) (AccessToken, error) {
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := SessionClaims{
		AccountID: acc.ID,
		Name:      acc.Name,
		Roles:     model.NewRoleSet(acc.Roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(acc.ID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: claims.ExpiresAt.Time}, nil
}

// Parse validates raw and returns its claims.  Expired tokens yield
// ErrExpiredToken; anything else that fails (signature, algorithm,
// malformed input) yields ErrInvalidToken.
func (t *TokenIssuer) Parse(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid || claims.AccountID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
