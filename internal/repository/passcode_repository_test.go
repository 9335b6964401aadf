package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

// passcodeStore is the behaviour shared by the SQL and Redis stores.
type passcodeStore interface {
	Replace(ctx context.Context, p *model.PendingPasscode) error
	Find(ctx context.Context, accountID uint64, purpose model.Purpose) (*model.PendingPasscode, error)
	Delete(ctx context.Context, p *model.PendingPasscode) (bool, error)
}

func storesUnderTest(t *testing.T) map[string]passcodeStore {
	rdb, _ := newTestRedis(t)
	return map[string]passcodeStore{
		"sql":   NewPasscodeRepo(newTestDB(t)),
		"redis": NewRedisPasscodeStore(rdb, "otp", time.Hour),
	}
}

func pending(accountID uint64, purpose model.Purpose, code, nonce string) *model.PendingPasscode {
	return &model.PendingPasscode{
		AccountID: accountID,
		Purpose:   purpose,
		Code:      code,
		Nonce:     nonce,
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPasscodeStoreReplaceKeepsSingleLiveRecord(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := pending(7, model.PurposeChangeNumber, "111111", "n1")
			first.Payload.Number = "999"
			if err := store.Replace(ctx, first); err != nil {
				t.Fatalf("Replace failed: %v", err)
			}
			second := pending(7, model.PurposeChangeNumber, "222222", "n2")
			second.Payload.Number = "111"
			if err := store.Replace(ctx, second); err != nil {
				t.Fatalf("Replace failed: %v", err)
			}

			got, err := store.Find(ctx, 7, model.PurposeChangeNumber)
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if got.Code != "222222" || got.Nonce != "n2" || got.Payload.Number != "111" {
				t.Fatalf("expected latest issuance, got %+v", got)
			}
			if !got.CreatedAt.Equal(second.CreatedAt) {
				t.Fatalf("expected created_at %v, got %v", second.CreatedAt, got.CreatedAt)
			}

			// the superseded issuance can no longer be deleted
			ok, err := store.Delete(ctx, first)
			if err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if ok {
				t.Fatal("expected superseded passcode delete to be a no-op")
			}
		})
	}
}

func TestPasscodeStorePurposesAreIndependent(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Replace(ctx, pending(5, model.PurposeLogin, "123456", "a")); err != nil {
				t.Fatalf("Replace failed: %v", err)
			}
			del := pending(5, model.PurposeDeleteAccount, "123456", "b")
			del.Payload.Delete = true
			if err := store.Replace(ctx, del); err != nil {
				t.Fatalf("Replace failed: %v", err)
			}

			login, err := store.Find(ctx, 5, model.PurposeLogin)
			if err != nil || login.Nonce != "a" {
				t.Fatalf("expected LOGIN record intact, got %+v err=%v", login, err)
			}
			got, err := store.Find(ctx, 5, model.PurposeDeleteAccount)
			if err != nil || !got.Payload.Delete {
				t.Fatalf("expected DELETE_ACCOUNT record with marker, got %+v err=%v", got, err)
			}
			if _, err := store.Find(ctx, 5, model.PurposeChangeNumber); !errors.Is(err, ErrPasscodeNotFound) {
				t.Fatalf("expected ErrPasscodeNotFound, got %v", err)
			}
		})
	}
}

func TestPasscodeStoreDeleteIsAtMostOnce(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := pending(9, model.PurposeLogin, "000001", "only")
			if err := store.Replace(ctx, p); err != nil {
				t.Fatalf("Replace failed: %v", err)
			}
			ok, err := store.Delete(ctx, p)
			if err != nil || !ok {
				t.Fatalf("expected first delete to succeed, got ok=%v err=%v", ok, err)
			}
			ok, err = store.Delete(ctx, p)
			if err != nil {
				t.Fatalf("second Delete returned error: %v", err)
			}
			if ok {
				t.Fatal("expected second delete to report nothing removed")
			}
			if _, err := store.Find(ctx, 9, model.PurposeLogin); !errors.Is(err, ErrPasscodeNotFound) {
				t.Fatalf("expected ErrPasscodeNotFound after delete, got %v", err)
			}
		})
	}
}

func TestPasscodeRepoDeleteExpired(t *testing.T) {
	repo := NewPasscodeRepo(newTestDB(t))
	ctx := context.Background()

	old := pending(1, model.PurposeLogin, "111111", "old")
	old.CreatedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fresh := pending(2, model.PurposeLogin, "222222", "fresh")
	fresh.CreatedAt = time.Date(2025, 3, 1, 9, 55, 0, 0, time.UTC)
	for _, p := range []*model.PendingPasscode{old, fresh} {
		if err := repo.Replace(ctx, p); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
	}

	n, err := repo.DeleteExpired(ctx, time.Date(2025, 3, 1, 9, 50, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one purged row, got %d", n)
	}
	if _, err := repo.Find(ctx, 1, model.PurposeLogin); !errors.Is(err, ErrPasscodeNotFound) {
		t.Fatalf("expected expired passcode purged, got %v", err)
	}
	if _, err := repo.Find(ctx, 2, model.PurposeLogin); err != nil {
		t.Fatalf("expected fresh passcode kept, got %v", err)
	}
}

func TestRedisPasscodeStoreSetsTTL(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewRedisPasscodeStore(rdb, "otp", 15*time.Minute)
	if err := store.Replace(context.Background(), pending(3, model.PurposeLogin, "333333", "x")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if ttl := mr.TTL("otp:3:LOGIN"); ttl != 30*time.Minute || store.KeyTTL() != ttl {
		t.Fatalf("expected 30m TTL, got %v", ttl)
	}

	// still readable just past the validity window
	mr.FastForward(16 * time.Minute)
	if _, err := store.Find(context.Background(), 3, model.PurposeLogin); err != nil {
		t.Fatalf("expected expired record still stored, got %v", err)
	}

	mr.FastForward(15 * time.Minute)
	if _, err := store.Find(context.Background(), 3, model.PurposeLogin); !errors.Is(err, ErrPasscodeNotFound) {
		t.Fatalf("expected key to expire, got %v", err)
	}
}
