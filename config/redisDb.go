package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisConfigured reports whether REDIS_ADDRESS is set. Redis is optional:
// it backs the rate limiter, the sweep lock and the redis ledger driver.
func RedisConfigured() bool {
	return os.Getenv("REDIS_ADDRESS") != ""
}

func redisOptions() *redis.Options {
	return &redis.Options{
		Addr:     os.Getenv("REDIS_ADDRESS"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       IntFromEnv("REDIS_DB", 0),
		PoolSize: IntFromEnv("REDIS_POOL_SIZE", 100),
	}
}

// NewRedisClient builds a client without checking the connection.
func NewRedisClient() *redis.Client {
	return redis.NewClient(redisOptions())
}

// ConnectRedisWithRetry connects and returns the Redis client + lock client.
// It gives up once ctx is done.
func ConnectRedisWithRetry(ctx context.Context) (*redis.Client, *redislock.Client, error) {
	opts := redisOptions()
	if opts.Addr == "" {
		return nil, nil, fmt.Errorf("REDIS_ADDRESS not set")
	}

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(opts)
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, opts.Addr)
			return rdb, redislock.New(rdb), nil
		}
		_ = rdb.Close()

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, opts.Addr, err, sleep)
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("connect redis: %w (last error: %v)", ctx.Err(), err)
		case <-time.After(sleep):
		}
	}
}
