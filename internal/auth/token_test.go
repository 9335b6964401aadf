package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

func TestTokenIssueAndParse(t *testing.T) {
	clock := &fixedClock{t: t0}
	iss := testIssuer(t, clock)

	tok, err := iss.Issue(model.Account{ID: 5, Name: "Five", Roles: model.NewRoleSet(model.RoleLabor)})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !tok.Exp.Equal(t0.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", t0.Add(time.Hour), tok.Exp)
	}

	claims, err := iss.Parse(tok.Token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.AccountID != 5 || claims.Name != "Five" || !claims.Roles.IsPure(model.RoleLabor) {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Subject != "5" || claims.ID == "" {
		t.Fatalf("expected subject and jti, got sub=%q jti=%q", claims.Subject, claims.ID)
	}
}

func TestTokenCarriesHybridRoles(t *testing.T) {
	iss := testIssuer(t, &fixedClock{t: t0})
	tok, err := iss.Issue(model.Account{ID: 8, Roles: model.RoleSet{model.RoleLabor, model.RoleEmployer}})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := iss.Parse(tok.Token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !claims.Roles.IsHybrid() || !claims.Roles.Has(model.RoleEmployer) {
		t.Fatalf("expected hybrid roles, got %v", claims.Roles)
	}
}

func TestTokenExpired(t *testing.T) {
	clock := &fixedClock{t: t0}
	iss := testIssuer(t, clock)
	tok, err := iss.Issue(model.Account{ID: 5, Roles: model.NewRoleSet(model.RoleLabor)})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	if _, err := iss.Parse(tok.Token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenInvalid(t *testing.T) {
	clock := &fixedClock{t: t0}
	iss := testIssuer(t, clock)
	tok, err := iss.Issue(model.Account{ID: 5, Roles: model.NewRoleSet(model.RoleLabor)})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other, err := NewTokenIssuer("other-secret", time.Hour, "")
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	other.SetClock(clock.Now)

	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"uid": 5,
		"exp": t0.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token failed: %v", err)
	}

	parts := strings.Split(tok.Token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	cases := map[string]struct {
		parser *TokenIssuer
		raw    string
	}{
		"wrong secret": {other, tok.Token},
		"alg none":     {iss, noneTok},
		"garbage":      {iss, "not-a-token"},
		"empty":        {iss, ""},
		"tampered":     {iss, tampered},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := tc.parser.Parse(tc.raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewTokenIssuerDefaults(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour, ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	iss, err := NewTokenIssuer("s", 0, "")
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	if iss.ttl != DefaultTokenTTL {
		t.Fatalf("expected default ttl, got %v", iss.ttl)
	}
}
