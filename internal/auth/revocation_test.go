package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the two commands revocations use.
type fakeRedis struct {
	redis.UniversalClient
	ttls map[string]time.Duration
}

func (f *fakeRedis) Set(_ context.Context, key string, _ interface{}, expiration time.Duration) *redis.StatusCmd {
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if _, ok := f.ttls[key]; ok {
		return redis.NewStringResult("1", nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func TestRedisRevocations(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{ttls: map[string]time.Duration{}}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	revocations := &redisRevocations{client: client, now: func() time.Time { return now }}

	require.NoError(t, revocations.Revoke(ctx, "jti-1", now.Add(10*time.Minute)))
	assert.Equal(t, 10*time.Minute, client.ttls["auth:revoked:jti-1"])

	revoked, err := revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = revocations.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, revocations.Revoke(ctx, "jti-3", now.Add(-time.Minute)))
	assert.NotContains(t, client.ttls, "auth:revoked:jti-3", "expired tokens need no entry")
}

func TestMemoryRevocationsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	revocations := NewMemoryRevocations()
	revocations.now = func() time.Time { return now }

	require.NoError(t, revocations.Revoke(ctx, "jti", now.Add(time.Minute)))
	revoked, err := revocations.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = revocations.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}
