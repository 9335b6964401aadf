package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/repository"
	"github.com/iliyamo/labor-marketplace/internal/utils"
)

// memStore is an in-memory PasscodeStore guarded by a mutex.
type memStore struct {
	mu   sync.Mutex
	rows map[string]model.PendingPasscode
	err  error
}

func newMemStore() *memStore { return &memStore{rows: map[string]model.PendingPasscode{}} }

func memKey(id uint64, purpose model.Purpose) string { return fmt.Sprintf("%d:%s", id, purpose) }

func (s *memStore) Replace(_ context.Context, p *model.PendingPasscode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows[memKey(p.AccountID, p.Purpose)] = *p
	return nil
}

func (s *memStore) Find(_ context.Context, id uint64, purpose model.Purpose) (*model.PendingPasscode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.rows[memKey(id, purpose)]
	if !ok {
		return nil, repository.ErrPasscodeNotFound
	}
	return &p, nil
}

func (s *memStore) Delete(_ context.Context, p *model.PendingPasscode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memKey(p.AccountID, p.Purpose)
	cur, ok := s.rows[k]
	if !ok || cur.Nonce != p.Nonce {
		return false, nil
	}
	delete(s.rows, k)
	return true, nil
}

func (s *memStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, p := range s.rows {
		if p.CreatedAt.Before(cutoff) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// seqGen hands out the queued codes in order, then repeats the last one.
type seqGen struct {
	mu    sync.Mutex
	codes []string
}

func (g *seqGen) Generate(uint64, time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", errors.New("no codes queued")
	}
	c := g.codes[0]
	if len(g.codes) > 1 {
		g.codes = g.codes[1:]
	}
	return c, nil
}

// recordingDeliverer captures every message and optionally fails.
type recordingDeliverer struct {
	mu   sync.Mutex
	sent []model.OutOfBandMessage
	err  error
}

func (d *recordingDeliverer) SendOutOfBand(_ context.Context, msg model.OutOfBandMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return d.err
}

// memAccounts is an in-memory AccountStore and PhoneWriter.
type memAccounts struct {
	mu       sync.Mutex
	byID     map[uint64]model.Account
	phones   map[string]string
	deleted  map[uint64]time.Time
	phoneErr error
}

func newMemAccounts(accs ...model.Account) *memAccounts {
	m := &memAccounts{
		byID:    map[uint64]model.Account{},
		phones:  map[string]string{},
		deleted: map[uint64]time.Time{},
	}
	for _, a := range accs {
		m.byID[a.ID] = a
	}
	return m
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return model.Account{}, repository.ErrAccountNotFound
}

func (m *memAccounts) GetByID(_ context.Context, id uint64) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return model.Account{}, repository.ErrAccountNotFound
	}
	return a, nil
}

func (m *memAccounts) SoftDelete(_ context.Context, id uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.IsDeleted = true
	m.byID[id] = a
	m.deleted[id] = at
	return nil
}

func (m *memAccounts) UpdatePhone(_ context.Context, id uint64, roles model.RoleSet, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phoneErr != nil {
		return m.phoneErr
	}
	for _, r := range roles {
		if r == model.RoleLabor || r == model.RoleEmployer {
			m.phones[fmt.Sprintf("%d:%s", id, r)] = phone
		}
	}
	return nil
}

// fixedClock is a settable time source.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testHasher() utils.Hasher { return utils.NewHasher(bcrypt.MinCost) }

func hashOf(t *testing.T, plain string) string {
	t.Helper()
	d, err := testHasher().Hash(plain)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return d
}

func testIssuer(t *testing.T, clock *fixedClock) *TokenIssuer {
	t.Helper()
	iss, err := NewTokenIssuer("test-secret", time.Hour, "labor-marketplace")
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	if clock != nil {
		iss.SetClock(clock.Now)
	}
	return iss
}
