package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no session record exists for the ID.
var ErrNotFound = errors.New("session record not found")

// ErrBackendUnavailable wraps Redis connectivity failures.
var ErrBackendUnavailable = errors.New("session backend unavailable")

const rotateMaxRetries = 4

// Store persists sessions in Redis: one record per session plus a per-account
// index set used by revoke-all and listing.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session store with the given key prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

// Save writes the session record and indexes it under its account.
// The record TTL tracks the session expiry.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.ID), data, ttl)
	pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.ID)
	// Index outlives the longest session by a margin so listing can prune.
	pipe.Expire(ctx, s.accountKey(sess.AccountID), ttl+24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Get fetches one session record.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: corrupt session record", ErrNotFound)
	}
	return &sess, nil
}

// Rotate performs the conditional refresh rotation inside a WATCH
// transaction: exactly one concurrent caller observes RotateOK; the rest
// observe the already-rotated state. On success the rotated-out hash is
// retained one generation for reuse detection and the expiry is extended
// to newExpiry.
func (s *Store) Rotate(
	ctx context.Context,
	sessionID string,
	presentedHash [32]byte,
	newHash [32]byte,
	newExpiry time.Time,
) (RotateOutcome, *Session, error) {
	key := s.sessionKey(sessionID)

	for i := 0; i < rotateMaxRetries; i++ {
		var (
			outcome RotateOutcome
			rotated *Session
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					outcome = RotateNotFound
					return nil
				}
				return err
			}

			var sess Session
			if err := json.Unmarshal(data, &sess); err != nil {
				outcome = RotateNotFound
				return nil
			}

			now := time.Now()
			switch {
			case sess.Revoked:
				outcome = RotateRevoked
				return nil
			case !now.Before(sess.ExpiresAt):
				outcome = RotateExpired
				return nil
			}

			if subtle.ConstantTimeCompare(presentedHash[:], sess.RefreshHash[:]) != 1 {
				for _, prev := range sess.RotatedHashes {
					if subtle.ConstantTimeCompare(presentedHash[:], prev[:]) == 1 {
						outcome = RotateReuse
						rotated = &sess
						return nil
					}
				}
				outcome = RotateMismatch
				return nil
			}

			sess.RotatedHashes = append(sess.RotatedHashes, sess.RefreshHash)
			sess.RefreshHash = newHash
			sess.LastSeenAt = now
			sess.ExpiresAt = newExpiry

			updated, err := json.Marshal(&sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, time.Until(newExpiry))
				return nil
			})
			if err != nil {
				return err
			}

			outcome = RotateOK
			rotated = &sess
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			// Lost the WATCH race; the winner rotated first. Re-read so the
			// caller sees reuse rather than a transient failure.
			continue
		}
		if err != nil {
			return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return outcome, rotated, nil
	}

	// Retries exhausted under heavy contention: the token was rotated out
	// from under us, which is exactly the reuse signal.
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RotateNotFound, nil, nil
		}
		return RotateNotFound, nil, err
	}
	return RotateReuse, sess, nil
}

// Revoke marks the session revoked. Revoking an absent or already-revoked
// session is a no-op success.
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	key := s.sessionKey(sessionID)

	for i := 0; i < rotateMaxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}

			var sess Session
			if err := json.Unmarshal(data, &sess); err != nil {
				return nil
			}
			if sess.Revoked {
				return nil
			}

			sess.Revoked = true
			updated, err := json.Marshal(&sess)
			if err != nil {
				return err
			}

			ttl := time.Until(sess.ExpiresAt)
			if ttl <= 0 {
				ttl = time.Minute
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil
	}
	return nil
}

// RevokeAllForAccount revokes every session of the account except
// exceptSessionID (pass "" to revoke all). Idempotent.
func (s *Store) RevokeAllForAccount(ctx context.Context, accountID, exceptSessionID string) error {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	for _, id := range ids {
		if id == exceptSessionID {
			continue
		}
		if err := s.Revoke(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListActive returns the account's non-revoked, non-expired sessions.
// Ordering is the caller's concern. Stale index entries are pruned.
func (s *Store) ListActive(ctx context.Context, accountID string, now time.Time) ([]*Session, error) {
	acctKey := s.accountKey(accountID)
	ids, err := s.redis.SMembers(ctx, acctKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var out []*Session
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				_ = s.redis.SRem(ctx, acctKey, id).Err()
				continue
			}
			return nil, err
		}
		if sess.Active(now) {
			out = append(out, sess)
		}
	}
	return out, nil
}
