package session

import (
	"context"
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "as")
}

func hashOf(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func seedSession(t *testing.T, store *Store, id, accountID string, refreshHash [32]byte) *Session {
	t.Helper()
	now := time.Now()
	sess := &Session{
		ID:          id,
		AccountID:   accountID,
		RefreshHash: refreshHash,
		IP:          "203.0.113.7",
		UserAgent:   "dashboard/1.0",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		LastSeenAt:  now,
	}
	require.NoError(t, store.Save(context.Background(), sess))
	return sess
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", "acct-1", hashOf("gen1"))

	got, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", got.AccountID)
	assert.Equal(t, hashOf("gen1"), got.RefreshHash)
	assert.False(t, got.Revoked)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRotateHappyPath(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", "acct-1", hashOf("gen1"))
	ctx := context.Background()

	outcome, sess, err := store.Rotate(ctx, "sess-1", hashOf("gen1"), hashOf("gen2"), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, RotateOK, outcome)
	require.NotNil(t, sess)
	assert.Equal(t, hashOf("gen2"), sess.RefreshHash)
	assert.Contains(t, sess.RotatedHashes, hashOf("gen1"))
}

func TestRotateReuseDetection(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", "acct-1", hashOf("gen1"))
	ctx := context.Background()

	outcome, _, err := store.Rotate(ctx, "sess-1", hashOf("gen1"), hashOf("gen2"), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, RotateOK, outcome)

	// Replay of the rotated-out generation is reuse, not a plain mismatch.
	outcome, sess, err := store.Rotate(ctx, "sess-1", hashOf("gen1"), hashOf("gen3"), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, RotateReuse, outcome)
	require.NotNil(t, sess)
	assert.Equal(t, "acct-1", sess.AccountID)

	// A token from no known generation is a mismatch.
	outcome, _, err = store.Rotate(ctx, "sess-1", hashOf("forged"), hashOf("gen3"), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, RotateMismatch, outcome)

	// After another rotation gen1 is two generations stale and must
	// still trip reuse, not degrade into a mismatch.
	outcome, _, err = store.Rotate(ctx, "sess-1", hashOf("gen2"), hashOf("gen3"), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, RotateOK, outcome)

	outcome, sess, err = store.Rotate(ctx, "sess-1", hashOf("gen1"), hashOf("gen4"), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, RotateReuse, outcome)
	require.NotNil(t, sess)
}

func TestRotateRevokedAndMissing(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", "acct-1", hashOf("gen1"))
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "sess-1"))

	outcome, _, err := store.Rotate(ctx, "sess-1", hashOf("gen1"), hashOf("gen2"), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, RotateRevoked, outcome)

	outcome, _, err = store.Rotate(ctx, "missing", hashOf("gen1"), hashOf("gen2"), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, RotateNotFound, outcome)
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", "acct-1", hashOf("gen1"))
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	outcomes := make([]RotateOutcome, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			outcome, _, err := store.Rotate(ctx, "sess-1", hashOf("gen1"), hashOf("gen2"), time.Now().Add(time.Hour))
			require.NoError(t, err)
			outcomes[n] = outcome
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, o := range outcomes {
		switch o {
		case RotateOK:
			winners++
		case RotateReuse, RotateMismatch:
			// Losers observe the already-rotated state.
		default:
			t.Fatalf("unexpected outcome %v", o)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestRevokeIdempotent(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", "acct-1", hashOf("gen1"))
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "sess-1"))
	require.NoError(t, store.Revoke(ctx, "sess-1"))
	require.NoError(t, store.Revoke(ctx, "never-existed"))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestRevokeAllForAccount(t *testing.T) {
	store := newTestStore(t)
	seedSession(t, store, "sess-1", "acct-1", hashOf("a"))
	seedSession(t, store, "sess-2", "acct-1", hashOf("b"))
	seedSession(t, store, "sess-3", "acct-1", hashOf("c"))
	seedSession(t, store, "other", "acct-2", hashOf("d"))
	ctx := context.Background()

	require.NoError(t, store.RevokeAllForAccount(ctx, "acct-1", "sess-2"))

	active, err := store.ListActive(ctx, "acct-1", time.Now())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "sess-2", active[0].ID)

	require.NoError(t, store.RevokeAllForAccount(ctx, "acct-1", ""))
	active, err = store.ListActive(ctx, "acct-1", time.Now())
	require.NoError(t, err)
	assert.Empty(t, active)

	// Other accounts untouched.
	active, err = store.ListActive(ctx, "acct-2", time.Now())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestListActiveSkipsExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	live := &Session{
		ID:          "live",
		AccountID:   "acct-1",
		RefreshHash: hashOf("a"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		LastSeenAt:  now,
	}
	require.NoError(t, store.Save(ctx, live))

	short := &Session{
		ID:          "short",
		AccountID:   "acct-1",
		RefreshHash: hashOf("b"),
		CreatedAt:   now,
		ExpiresAt:   now.Add(50 * time.Millisecond),
		LastSeenAt:  now,
	}
	require.NoError(t, store.Save(ctx, short))

	active, err := store.ListActive(ctx, "acct-1", now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].ID)
}
