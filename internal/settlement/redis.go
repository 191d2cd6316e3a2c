package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores start prices as "price|source" strings under
// startprice:{market}:{start}. Writes use SETNX.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// RedisConfig holds connection parameters for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires records; zero keeps them forever.
	TTL time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func redisKey(marketID, startKey string) string {
	return "startprice:" + marketID + ":" + startKey
}

func encodeRecord(price float64, source string) string {
	return strconv.FormatFloat(price, 'g', -1, 64) + "|" + source
}

func decodeRecord(v string) (float64, string, error) {
	p, source, _ := strings.Cut(v, "|")
	price, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed start price record %q: %w", v, err)
	}
	return price, source, nil
}

func (c *RedisCache) Get(ctx context.Context, marketID, startKey string) (float64, bool, error) {
	v, err := c.rdb.Get(ctx, redisKey(marketID, startKey)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get start price: %w", err)
	}
	price, _, err := decodeRecord(v)
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

func (c *RedisCache) SetIfAbsent(ctx context.Context, marketID, startKey string, price float64, source string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, redisKey(marketID, startKey), encodeRecord(price, source), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx start price: %w", err)
	}
	return ok, nil
}
