package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "matchmate:credentials:"

// compareAndClear deletes KEYS[1] when its refresh_token field equals
// ARGV[1]. A missing field compares as the empty string.
var compareAndClear = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "refresh_token")
if not current then
	current = ""
end
if current == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Session  string
	TTL      time.Duration
}

// RedisStore keeps credentials in a Redis hash so several processes can share one session.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and returns a store for the configured session.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, cfg.Session, cfg.TTL), nil
}

func newRedisStore(client *redis.Client, session string, ttl time.Duration) *RedisStore {
	if session == "" {
		session = "default"
	}
	return &RedisStore{client: client, key: keyPrefix + session, ttl: ttl}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context) (Credentials, error) {
	vals, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("loading credentials: %w", err)
	}
	return Credentials{
		AccessToken:  vals["access_token"],
		RefreshToken: vals["refresh_token"],
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, "access_token", creds.AccessToken, "refresh_token", creds.RefreshToken)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// CompareAndClear deletes the session only if refreshToken is still the
// stored one. The check and the delete run as one script on the server, so
// a pair saved by another process in between is kept.
func (s *RedisStore) CompareAndClear(ctx context.Context, refreshToken string) (bool, error) {
	n, err := compareAndClear.Run(ctx, s.client, []string{s.key}, refreshToken).Int()
	if err != nil {
		return false, fmt.Errorf("clearing credentials: %w", err)
	}
	return n == 1, nil
}

var (
	_ Store             = (*RedisStore)(nil)
	_ CompareAndClearer = (*RedisStore)(nil)
)
