package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis spins up an in-memory Redis and returns a store pointed at it.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	s := miniredis.RunT(t)
	store := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: s.Addr()}),
		Ctx:    context.Background(),
	}
	t.Cleanup(store.Close)
	return s, store
}

func TestFeatureFlags(t *testing.T) {
	s, store := setupTestRedis(t)
	ctx := context.Background()

	on, err := store.Enabled(ctx, "billboard_location_targeting")
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, store.SetFeatureFlag(ctx, "billboard_location_targeting", true))
	on, err = store.Enabled(ctx, "billboard_location_targeting")
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, s.Set("feature_flag:broken", "maybe"))
	_, err = store.Enabled(ctx, "broken")
	assert.Error(t, err)
}

func TestFeatureFlagRedisDown(t *testing.T) {
	s, store := setupTestRedis(t)
	s.Close()
	_, err := store.Enabled(context.Background(), "billboard_location_targeting")
	assert.Error(t, err)
}

func TestSegmentMembership(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceSegmentMembers(ctx, map[int][]int{7: {1, 2}, 8: {3}}))

	member, err := store.MemberOf(ctx, 7, 2)
	require.NoError(t, err)
	assert.True(t, member)

	member, err = store.MemberOf(ctx, 7, 3)
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, store.ReplaceSegmentMembers(ctx, map[int][]int{7: {3}, 8: nil}))
	member, err = store.MemberOf(ctx, 7, 2)
	require.NoError(t, err)
	assert.False(t, member)
	member, err = store.MemberOf(ctx, 8, 3)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestNilRedisStore(t *testing.T) {
	var store *RedisStore
	_, err := store.Enabled(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNilRedisStore)
	_, err = store.MemberOf(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrNilRedisStore)
	assert.ErrorIs(t, (&RedisStore{}).PublishUpdate(context.Background(), "reload"), ErrNilRedisStore)
}

func TestPublishAndSubscribeUpdates(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- store.SubscribeUpdates(ctx, func(reason string) { got <- reason })
	}()

	// wait for the subscription to register before publishing
	require.Eventually(t, func() bool {
		n, err := store.Client.PubSubNumSub(ctx, UpdatesChannel).Result()
		return err == nil && n[UpdatesChannel] == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, store.PublishUpdate(ctx, "reload"))
	select {
	case reason := <-got:
		assert.Equal(t, "reload", reason)
	case <-time.After(time.Second):
		t.Fatal("update not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop")
	}
}
