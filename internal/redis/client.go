package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/config"
)

// defaultVariant is the hash field used for kinds without variants.
const defaultVariant = "_"

// Client is a Redis-backed Store.
//
// Each kind lives in one hash, {prefix}:{kind}, with one field per variant:
//   - refcache:customers  -> _
//   - refcache:users      -> _
//   - refcache:users_by_role -> EMPLOYEE, CUSTOMER
//   - refcache:groups     -> _
//
// Deleting several kinds is a single DEL, so invalidating users and every
// per-role list happens atomically.
type Client struct {
	rdb    *redis.Client
	prefix string
	logger *logrus.Logger
}

// storedEntry is the JSON stored in each hash field.
type storedEntry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt int64           `json:"stored_at_ns"`
}

// NewClient connects to Redis using cfg and verifies the connection.
func NewClient(cfg *config.RedisConfig, logger *logrus.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password // pragma: allowlist secret
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConn
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolTimeout = cfg.PoolTimeout
	opts.ConnMaxIdleTime = cfg.IdleTimeout

	client := NewClientFromRedis(redis.NewClient(opts), cfg.KeyPrefix, logger)

	if pingErr := client.Ping(context.Background()); pingErr != nil {
		_ = client.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", pingErr)
	}

	logger.Info("Connected to Redis successfully")

	return client, nil
}

// NewClientFromRedis wraps an existing go-redis client.
func NewClientFromRedis(rdb *redis.Client, prefix string, logger *logrus.Logger) *Client {
	if prefix == "" {
		prefix = "refcache"
	}
	return &Client{rdb: rdb, prefix: prefix, logger: logger}
}

// Close gracefully shuts down the Redis client and closes all connections in the pool.
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		c.logger.WithError(err).Error("Failed to close Redis connection")
		return err
	}
	c.logger.Debug("Redis connection closed")
	return nil
}

// Ping tests connectivity to the Redis server by sending a PING command.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get implements Store.
func (c *Client) Get(ctx context.Context, key Key) (Entry, bool, error) {
	data, err := c.rdb.HGet(ctx, c.kindKey(key.Kind), variantField(key.Variant)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	var stored storedEntry
	if unmarshalErr := json.Unmarshal(data, &stored); unmarshalErr != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal %s: %w", key, unmarshalErr)
	}

	return Entry{
		Payload:  []byte(stored.Payload),
		StoredAt: time.Unix(0, stored.StoredAt),
	}, true, nil
}

// Set implements Store. The hash expiry is refreshed on every write.
func (c *Client) Set(ctx context.Context, key Key, entry Entry, ttl time.Duration) error {
	payload := entry.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}

	data, err := json.Marshal(storedEntry{
		Payload:  json.RawMessage(payload),
		StoredAt: entry.StoredAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	redisKey := c.kindKey(key.Kind)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey, variantField(key.Variant), data)
		if ttl > 0 {
			pipe.Expire(ctx, redisKey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	c.logger.WithField("key", key.String()).Debug("Reference entry stored")
	return nil
}

// DeleteKinds implements Store with a single DEL command.
func (c *Client) DeleteKinds(ctx context.Context, kinds ...Kind) error {
	if len(kinds) == 0 {
		return nil
	}

	keys := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		keys = append(keys, c.kindKey(kind))
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete %v: %w", kinds, err)
	}
	return nil
}

func (c *Client) kindKey(kind Kind) string {
	return c.prefix + ":" + string(kind)
}

func variantField(variant string) string {
	if variant == "" {
		return defaultVariant
	}
	return variant
}
