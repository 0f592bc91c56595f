package otp

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "t")
}

func testCode(id string, ttl time.Duration) *Code {
	now := time.Now()
	return &Code{
		ID:        id,
		AccountID: "a1",
		Purpose:   PurposeLogin,
		Hash:      sha256.Sum256([]byte(id)),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testCode("c1", time.Minute)))

	code, err := s.GetActive(ctx, "a1", PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "c1", code.ID)
	assert.Equal(t, sha256.Sum256([]byte("c1")), code.Hash)

	_, err = s.GetActive(ctx, "a1", PurposeSignup)
	assert.ErrorIs(t, err, ErrNotFound, "purposes are isolated")
}

func TestRedisStorePutSupersedes(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testCode("c1", time.Minute)))
	require.NoError(t, s.Put(ctx, testCode("c2", time.Minute)))

	code, err := s.GetActive(ctx, "a1", PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "c2", code.ID)

	ok, err := s.Consume(ctx, "a1", PurposeLogin, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreConsumeOnce(t *testing.T) {
	s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testCode("c1", time.Minute)))

	ok, err := s.Consume(ctx, "a1", PurposeLogin, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Consume(ctx, "a1", PurposeLogin, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.GetActive(ctx, "a1", PurposeLogin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRejectsExpiredPut(t *testing.T) {
	s := newRedisStore(t)

	err := s.Put(context.Background(), testCode("c1", -time.Second))
	assert.Error(t, err)
}

func TestRedisStoreBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "t")
	mr.Close()

	_, err := s.GetActive(context.Background(), "a1", PurposeLogin)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
