package rescache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteStore fronts a byte-serializable resource (a shared dictionary, not
// an in-process handle like a loaded model) behind a store multiple
// StreamKit processes can share, so only one of them pays to fetch or
// compute it. Modeled narrowly on the teacher's RedisCache, but scoped to
// Get/Set since a resource cache has no use for TTL expiry of a shared
// dictionary — staleness is the caller's concern, not the store's.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RemoteLoader produces the serializable bytes for a resource on a remote
// miss; Decode turns those bytes (whether just fetched or read back from
// the remote store) into the in-process value cached locally.
type RemoteLoader struct {
	Fetch  func(params json.RawMessage) ([]byte, error)
	Decode func(data []byte) (value interface{}, sizeBytes int64, err error)
}

// RegisterRemoteLoader binds kind to a loader that first checks remote for
// an already-fetched copy before calling Fetch itself, and writes through
// to remote on a miss so the next process to acquire kind skips the fetch
// entirely. The decoded value is still cached locally and refcounted like
// any other entry.
func (c *Cache) RegisterRemoteLoader(kind string, remote RemoteStore, rl RemoteLoader) {
	c.RegisterLoader(kind, func(params json.RawMessage) (interface{}, int64, error) {
		ctx := context.Background()
		k, err := key(kind, params)
		if err != nil {
			return nil, 0, err
		}
		if data, ok, err := remote.Get(ctx, k); err == nil && ok {
			return rl.Decode(data)
		} else if err != nil {
			c.logger.Warn().Err(err).Str("kind", kind).Msg("rescache: remote store lookup failed, falling back to fetch")
		}

		data, err := rl.Fetch(params)
		if err != nil {
			return nil, 0, fmt.Errorf("rescache: fetch %q: %w", kind, err)
		}
		if err := remote.Set(ctx, k, data); err != nil {
			c.logger.Warn().Err(err).Str("kind", kind).Msg("rescache: writing fetched resource to remote store failed")
		}
		return rl.Decode(data)
	})
}

// RedisStore is a RemoteStore backed by Redis, for deployments running more
// than one StreamKit engine process against the same broker.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig configures a RedisStore. TTL bounds how long a written value
// outlives its writer's acquisition of it; zero means no expiry.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore dials Redis and verifies connectivity with a PING.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("rescache: connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rescache: redis get %q: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("rescache: redis set %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
