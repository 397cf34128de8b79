// Package replaycache keeps prepared replay slices in Redis.
package replaycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/replay"
)

const defaultTTL = 10 * time.Minute

// Cache implements replay.SliceCache. Redis failures degrade to cache misses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg configs.RedisConfig, logger logrus.FieldLogger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewWithClient(client, cfg.TTL, logger), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func (c *Cache) Get(ctx context.Context, key string) (replay.Slice, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Warn("replay cache read failed")
		}
		return replay.Slice{}, false
	}
	var s replay.Slice
	if err := json.Unmarshal(data, &s); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("dropping undecodable replay cache entry")
		_ = c.client.Del(ctx, key).Err()
		return replay.Slice{}, false
	}
	return s, true
}

func (c *Cache) Set(ctx context.Context, key string, s replay.Slice) {
	data, err := json.Marshal(s)
	if err != nil {
		c.logger.WithError(err).Warn("encode replay slice")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("replay cache write failed")
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}
