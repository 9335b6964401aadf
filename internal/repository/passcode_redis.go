package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/labor-marketplace/internal/model"
)

// RedisPasscodeStore keeps one key per (account, purpose).  A single SET
// replaces the previous record atomically and consume uses WATCH/MULTI so
// that only one caller can delete a given issuance.  Keys live for twice
// the passcode validity: an expired record is still found, so the caller
// can report it as expired from CreatedAt, and stale keys disappear
// without a sweeper.
type RedisPasscodeStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPasscodeStore returns a store writing keys under prefix for
// passcodes valid for validity.
func NewRedisPasscodeStore(rdb *redis.Client, prefix string, validity time.Duration) *RedisPasscodeStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisPasscodeStore{rdb: rdb, prefix: prefix, ttl: 2 * validity}
}

// KeyTTL is how long a stored passcode key lives in Redis.
func (s *RedisPasscodeStore) KeyTTL() time.Duration { return s.ttl }

type redisPasscode struct {
	AccountID uint64                `json:"account_id"`
	Purpose   model.Purpose         `json:"purpose"`
	Code      string                `json:"code"`
	Payload   model.PasscodePayload `json:"payload"`
	Nonce     string                `json:"nonce"`
	CreatedAt int64                 `json:"created_at"`
}

func (s *RedisPasscodeStore) key(accountID uint64, purpose model.Purpose) string {
	return s.prefix + ":" + strconv.FormatUint(accountID, 10) + ":" + string(purpose)
}

// Replace overwrites the record for (p.AccountID, p.Purpose).
func (s *RedisPasscodeStore) Replace(ctx context.Context, p *model.PendingPasscode) error {
	body, err := json.Marshal(redisPasscode{
		AccountID: p.AccountID,
		Purpose:   p.Purpose,
		Code:      p.Code,
		Payload:   p.Payload,
		Nonce:     p.Nonce,
		CreatedAt: p.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode passcode: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(p.AccountID, p.Purpose), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("store passcode: %w", err)
	}
	return nil
}

// Find returns the record for (accountID, purpose) or ErrPasscodeNotFound.
func (s *RedisPasscodeStore) Find(ctx context.Context, accountID uint64, purpose model.Purpose) (*model.PendingPasscode, error) {
	data, err := s.rdb.Get(ctx, s.key(accountID, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPasscodeNotFound
		}
		return nil, fmt.Errorf("load passcode: %w", err)
	}
	return decodeRedisPasscode(data)
}

func decodeRedisPasscode(data []byte) (*model.PendingPasscode, error) {
	var rec redisPasscode
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode passcode: %w", err)
	}
	return &model.PendingPasscode{
		AccountID: rec.AccountID,
		Purpose:   rec.Purpose,
		Code:      rec.Code,
		Payload:   rec.Payload,
		Nonce:     rec.Nonce,
		CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
	}, nil
}

// Delete removes the record only if it still carries p's nonce.
func (s *RedisPasscodeStore) Delete(ctx context.Context, p *model.PendingPasscode) (bool, error) {
	key := s.key(p.AccountID, p.Purpose)
	deleted := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		current, err := decodeRedisPasscode(data)
		if err != nil {
			return err
		}
		if current.Nonce != p.Nonce {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, key)
	switch {
	case err == nil:
		return deleted, nil
	case errors.Is(err, redis.Nil), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("delete passcode: %w", err)
	}
}
