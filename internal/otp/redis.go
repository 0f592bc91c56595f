package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable wraps Redis connectivity failures.
var ErrBackendUnavailable = errors.New("code backend unavailable")

const consumeMaxRetries = 4

// RedisStore persists one-time codes in Redis, one record per
// (account, purpose) pair. Writing under the pair key makes supersession
// a plain overwrite; consumption runs inside a WATCH transaction so a
// code is spent at most once.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a code store with the given key prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "as"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(accountID string, purpose Purpose) string {
	return s.prefix + ":otp:" + accountID + ":" + string(purpose)
}

// Put writes the code record, replacing any prior code for the pair.
// The record TTL tracks the code expiry.
func (s *RedisStore) Put(ctx context.Context, code *Code) error {
	data, err := json.Marshal(code)
	if err != nil {
		return err
	}

	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return errors.New("code already expired")
	}

	if err := s.redis.Set(ctx, s.key(code.AccountID, code.Purpose), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// GetActive fetches the unconsumed code for the pair, if any.
func (s *RedisStore) GetActive(ctx context.Context, accountID string, purpose Purpose) (*Code, error) {
	data, err := s.redis.Get(ctx, s.key(accountID, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var code Code
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, ErrNotFound
	}
	if code.Consumed {
		return nil, ErrNotFound
	}
	return &code, nil
}

// Consume marks the identified code consumed. It reports false without
// error when the stored code is missing, already consumed, or carries a
// different ID, which includes the case where a newer code superseded
// the one being verified.
func (s *RedisStore) Consume(ctx context.Context, accountID string, purpose Purpose, codeID string) (bool, error) {
	key := s.key(accountID, purpose)

	for i := 0; i < consumeMaxRetries; i++ {
		var consumed bool

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}

			var code Code
			if err := json.Unmarshal(data, &code); err != nil {
				return nil
			}
			if code.Consumed || code.ID != codeID {
				return nil
			}

			code.Consumed = true
			updated, err := json.Marshal(&code)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}
			consumed = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race to a concurrent writer; re-read and retry.
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return consumed, nil
	}

	// Retries exhausted means someone else kept winning the key; the
	// code is no longer ours to spend.
	return false, nil
}

var _ Store = (*RedisStore)(nil)
