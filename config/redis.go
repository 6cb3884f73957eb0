package config

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis bundles the client and the lock client built on it.
type Redis struct {
	Client *redis.Client
	Locker *redislock.Client
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// ConnectRedis dials REDIS_ADDRESS, retrying with exponential backoff
// (capped at 30s) until ctx is done.
func ConnectRedis(ctx context.Context, c *Config, log zerolog.Logger) (*Redis, error) {
	if !c.RedisEnabled() {
		return nil, fmt.Errorf("REDIS_ADDRESS not set")
	}

	for attempt := 1; ; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddress,
			Password: c.RedisPassword,
			DB:       0,
			PoolSize: 100,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Info().Int("attempt", attempt).Str("addr", c.RedisAddress).Msg("connected to redis")
			return &Redis{Client: client, Locker: redislock.New(client)}, nil
		}
		client.Close()

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("addr", c.RedisAddress).
			Dur("retry_in", sleep).Msg("failed to connect redis")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect redis %s: %w", c.RedisAddress, err)
		case <-time.After(sleep):
		}
	}
}
