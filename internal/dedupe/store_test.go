package dedupe

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, ttl), mr
}

func TestClaimOnlyOnce(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	first, err := store.Claim(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Claim(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, second)

	assert.True(t, mr.Exists("formshare:submission:s1"))
	assert.Equal(t, time.Hour, mr.TTL("formshare:submission:s1"))
}

func TestClaimExpires(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = store.Claim(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, "s1"))

	ok, err = store.Claim(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimRequiresID(t *testing.T) {
	store, _ := newTestStore(t, 0)
	_, err := store.Claim(context.Background(), "  ")
	assert.Error(t, err)
}

func TestClaimSurfacesRedisErrors(t *testing.T) {
	store, mr := newTestStore(t, 0)
	mr.Close()

	_, err := store.Claim(context.Background(), "s1")
	assert.Error(t, err)
}

func TestDefaultTTL(t *testing.T) {
	store, _ := newTestStore(t, 0)
	assert.Equal(t, DefaultTTL, store.ttl)
}
