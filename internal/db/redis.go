package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNilRedisStore is returned when a RedisStore pointer is nil or uninitialized.
var ErrNilRedisStore = errors.New("redis store is nil")

// UpdatesChannel carries reload notices between server instances.
const UpdatesChannel = "billboards:updates"

// RedisStore wraps a redis client and context for operations. It serves as the
// feature flag provider and audience segment oracle of the eligibility filter.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

func flagKey(flag string) string {
	return "feature_flag:" + flag
}

func segmentKey(segmentID int) string {
	return fmt.Sprintf("audience_segment:%d:users", segmentID)
}

func (r *RedisStore) ready() error {
	if r == nil || r.Client == nil {
		return ErrNilRedisStore
	}
	return nil
}

// Enabled reports whether flag is switched on. A missing key means disabled.
func (r *RedisStore) Enabled(ctx context.Context, flag string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	val, err := r.Client.Get(ctx, flagKey(flag)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get flag %s: %w", flag, err)
	}
	on, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parse flag %s: %w", flag, err)
	}
	return on, nil
}

// SetFeatureFlag switches flag on or off.
func (r *RedisStore) SetFeatureFlag(ctx context.Context, flag string, on bool) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.Client.Set(ctx, flagKey(flag), strconv.FormatBool(on), 0).Err()
}

// MemberOf reports whether userID belongs to the audience segment.
func (r *RedisStore) MemberOf(ctx context.Context, segmentID, userID int) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	ok, err := r.Client.SIsMember(ctx, segmentKey(segmentID), strconv.Itoa(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("segment %d membership: %w", segmentID, err)
	}
	return ok, nil
}

// ReplaceSegmentMembers atomically swaps the member set of every given segment.
func (r *RedisStore) ReplaceSegmentMembers(ctx context.Context, memberships map[int][]int) error {
	if err := r.ready(); err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	for segmentID, users := range memberships {
		key := segmentKey(segmentID)
		pipe.Del(ctx, key)
		if len(users) == 0 {
			continue
		}
		members := make([]interface{}, 0, len(users))
		for _, u := range users {
			members = append(members, strconv.Itoa(u))
		}
		pipe.SAdd(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace segment members: %w", err)
	}
	return nil
}

// PublishUpdate notifies other instances that the billboard snapshot changed.
func (r *RedisStore) PublishUpdate(ctx context.Context, reason string) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.Client.Publish(ctx, UpdatesChannel, reason).Err()
}

// SubscribeUpdates calls onUpdate for every reload notice until ctx is done.
func (r *RedisStore) SubscribeUpdates(ctx context.Context, onUpdate func(reason string)) error {
	if err := r.ready(); err != nil {
		return err
	}
	sub := r.Client.Subscribe(ctx, UpdatesChannel)
	defer func() {
		if err := sub.Close(); err != nil {
			zap.L().Warn("redis unsubscribe", zap.Error(err))
		}
	}()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			onUpdate(msg.Payload)
		}
	}
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
