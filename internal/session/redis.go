package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session keys in Redis.
const keyPrefix = "inboxintake:session:"

// RedisStore keeps sessions as JSON values with a sliding TTL.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisStore creates a session store backed by Redis.
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func redisKey(state string) string {
	return keyPrefix + state
}

// Get loads the session for state and extends its TTL.
func (r *RedisStore) Get(ctx context.Context, state string) (*Session, error) {
	raw, err := r.rdb.GetEx(ctx, redisKey(state), r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET session: %w", err)
	}
	return decodeSession(raw)
}

// Put stores s under state.
func (r *RedisStore) Put(ctx context.Context, state string, s *Session) error {
	raw, err := encodeSession(s)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, redisKey(state), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET session: %w", err)
	}
	return nil
}

// Delete removes the session for state.
func (r *RedisStore) Delete(ctx context.Context, state string) error {
	if err := r.rdb.Del(ctx, redisKey(state)).Err(); err != nil {
		return fmt.Errorf("redis DEL session: %w", err)
	}
	return nil
}

func encodeSession(s *Session) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return raw, nil
}

func decodeSession(raw []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
