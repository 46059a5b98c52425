package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/redis/go-redis/v9"
)

// incrementScript starts a new window when the hash is missing or older than
// the window, otherwise bumps the count. The key expires shortly after the
// window so abandoned keys do not accumulate.
var incrementScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local start = redis.call('HGET', KEYS[1], 'window_start')
if (not start) or (now - tonumber(start) > window) then
	redis.call('DEL', KEYS[1])
	redis.call('HSET', KEYS[1], 'count', 1, 'window_start', ARGV[1])
	redis.call('PEXPIRE', KEYS[1], window + 1000)
	return {1, now}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, tonumber(start)}
`)

// RedisLoginAttemptStore shares failed login counters between instances
type RedisLoginAttemptStore struct {
	client *redis.Client
	prefix string
}

// NewRedisLoginAttemptStore connects to Redis and verifies the connection
func NewRedisLoginAttemptStore(ctx context.Context, cfg config.RedisConfig) (*RedisLoginAttemptStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "summit:login:"
	}

	return &RedisLoginAttemptStore{client: client, prefix: prefix}, nil
}

func (s *RedisLoginAttemptStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisLoginAttemptStore) Get(ctx context.Context, key string) (*models.LoginAttemptRecord, error) {
	vals, err := s.client.HMGet(ctx, s.key(key), "count", "window_start").Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, nil
	}

	count, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid attempt count for %s: %w", key, err)
	}
	startMs, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid window start for %s: %w", key, err)
	}

	return &models.LoginAttemptRecord{Count: count, WindowStart: time.UnixMilli(startMs)}, nil
}

func (s *RedisLoginAttemptStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (*models.LoginAttemptRecord, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(key)}, now.UnixMilli(), window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, errors.New("unexpected increment script result")
	}
	return &models.LoginAttemptRecord{Count: int(res[0]), WindowStart: time.UnixMilli(res[1])}, nil
}

func (s *RedisLoginAttemptStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *RedisLoginAttemptStore) Close() error {
	return s.client.Close()
}
