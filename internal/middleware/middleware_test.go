package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/labor-marketplace/internal/auth"
	"github.com/iliyamo/labor-marketplace/internal/config"
	"github.com/iliyamo/labor-marketplace/internal/model"
)

func newIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	iss, err := auth.NewTokenIssuer("mw-secret", time.Hour, "test")
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	return iss
}

func tokenFor(t *testing.T, iss *auth.TokenIssuer, id uint64, roles ...model.Role) string {
	t.Helper()
	tok, err := iss.Issue(model.Account{ID: id, Name: "u", Roles: model.NewRoleSet(roles...)})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return tok.Token
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func do(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	iss := newIssuer(t)
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		p := Principal(c)
		return c.JSON(http.StatusOK, echo.Map{"id": p.AccountID, "uid": c.Get(UserIDKey)})
	}, JWTAuth(iss))

	if rec := do(e, http.MethodGet, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/me", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}

	rec := do(e, http.MethodGet, "/me", tokenFor(t, iss, 5, model.RoleLabor))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); body != "{\"id\":5,\"uid\":\"5\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestJWTAuthExpired(t *testing.T) {
	iss := newIssuer(t)
	iss.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	stale := tokenFor(t, iss, 5, model.RoleLabor)
	iss.SetClock(time.Now)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth(iss))
	rec := do(e, http.MethodGet, "/me", stale)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "{\"error\":\"token expired\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestAuthorizePolicies(t *testing.T) {
	iss := newIssuer(t)
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	self := auth.Policy{Name: "self", Roles: model.NewRoleSet(model.RoleLabor, model.RoleEmployer), OwnerParam: "id"}
	admin := auth.Policy{Name: "admin", Roles: model.NewRoleSet(model.RoleAdmin)}
	open := auth.Policy{Name: "me"}

	e.POST("/users/:id/two-factor", ok, JWTAuth(iss), Authorize(self))
	e.GET("/admin/count", ok, JWTAuth(iss), Authorize(admin))
	e.GET("/me", ok, JWTAuth(iss), Authorize(open))
	e.GET("/anon", ok, Authorize(open))

	labor := tokenFor(t, iss, 5, model.RoleLabor)
	adm := tokenFor(t, iss, 1, model.RoleAdmin)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"owner", http.MethodPost, "/users/5/two-factor", labor, http.StatusOK},
		{"other owner", http.MethodPost, "/users/6/two-factor", labor, http.StatusForbidden},
		{"bad owner id", http.MethodPost, "/users/abc/two-factor", labor, http.StatusForbidden},
		{"admin no ownership bypass", http.MethodPost, "/users/5/two-factor", adm, http.StatusForbidden},
		{"labor on admin route", http.MethodGet, "/admin/count", labor, http.StatusForbidden},
		{"admin on admin route", http.MethodGet, "/admin/count", adm, http.StatusOK},
		{"no role restriction", http.MethodGet, "/me", labor, http.StatusOK},
		{"no principal", http.MethodGet, "/anon", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(e, tc.method, tc.path, tc.token); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/v1/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))

	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodPost, "/v1/auth/login", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(1-i) {
			t.Fatalf("request %d: expected remaining %d, got %s", i, 1-i, got)
		}
	}
	rec := do(e, http.MethodPost, "/v1/auth/login", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestTokenBucketDisabledOrNoRedis(t *testing.T) {
	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, nil, nil))
	for i := 0; i < 3; i++ {
		if rec := do(e, http.MethodGet, "/x", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", rec.Code)
		}
	}
}

func TestRedisCacheHitAndPerPathKeys(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/users/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	}, NewRedisCache(cfg, rdb))

	first := do(e, http.MethodGet, "/users/1", "")
	if first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("expected MISS, got %q", first.Header().Get("X-Cache"))
	}
	second := do(e, http.MethodGet, "/users/1", "")
	if second.Header().Get("X-Cache") != "HIT" || second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical HIT, got %q %q", second.Header().Get("X-Cache"), second.Body.String())
	}
	other := do(e, http.MethodGet, "/users/2", "")
	if other.Header().Get("X-Cache") != "MISS" || other.Body.String() == first.Body.String() {
		t.Fatalf("expected distinct entry for another id, got %q", other.Body.String())
	}
	if calls != 2 {
		t.Fatalf("expected handler called twice, got %d", calls)
	}
}

func TestRedisCacheSkipsErrorsAndOversize(t *testing.T) {
	rdb, mr := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		Prefix:       "cache",
		MaxBodyBytes: 8,
	}
	e := echo.New()
	e.GET("/missing", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}, NewRedisCache(cfg, rdb))
	e.GET("/big", func(c echo.Context) error {
		return c.String(http.StatusOK, "this body is longer than eight bytes")
	}, NewRedisCache(cfg, rdb))

	do(e, http.MethodGet, "/missing", "")
	do(e, http.MethodGet, "/big", "")
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected nothing cached, got %v", keys)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("encodePayload failed: %v", err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"a":1}` {
		t.Fatalf("unexpected decode: ok=%v status=%d hdr=%v body=%s", ok, status, got, body)
	}
	if _, _, _, ok := decodePayload([]byte{0, 0}); ok {
		t.Fatal("expected short payload to fail")
	}
}
