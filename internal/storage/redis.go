package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dorsakh/Food-Log-FrontEnd/pkg/config"
	"github.com/dorsakh/Food-Log-FrontEnd/pkg/utils"
)

// RedisStore backs the session storage with Redis. Every foodlog process
// pointed at the same Redis instance sees the same session, and change
// signals ride Redis pub/sub so other processes are woken without
// polling.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store and verifies connectivity
// with automatic retry.
//
// Retry configuration:
//   - Max attempts: 5
//   - Initial delay: 100ms
//   - Max delay: 3 seconds
//   - Total timeout: 30 seconds
//
// Parameters:
//   - cfg: Redis configuration including host, port, password, database,
//     and pool size
//
// Returns the connected store or an error if all retries fail.
//
// Example:
//
//	store, err := storage.NewRedisStore(&cfg.Storage.Redis)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Redis connection failed")
//	}
//	defer store.Close()
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Verify connection with retry
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.StorageRetryConfig()
	retryConfig.MaxAttempts = 5
	retryConfig.InitialDelay = 100 * time.Millisecond
	retryConfig.MaxDelay = 3 * time.Second

	var lastErr error
	err := utils.Retry(ctx, retryConfig, func() error {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			lastErr = err
			log.Warn().Err(err).Msg("Failed to ping Redis, retrying...")
			return err
		}
		return nil
	})

	if err != nil {
		client.Close()
		if lastErr != nil {
			return nil, fmt.Errorf("failed to connect to Redis after retries: %w", lastErr)
		}
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.Address()).Msg("Connected to Redis session storage")

	return &RedisStore{client: client}, nil
}

// Get retrieves the value stored under key. Returns ErrNotFound when the
// key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key with no expiration. Session keys live until
// explicitly cleared.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Absent keys are ignored.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Publish broadcasts payload on the named channel. Delivery reaches every
// subscriber on this Redis instance, including other processes.
func (s *RedisStore) Publish(ctx context.Context, channel, payload string) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on the named channel and forwards payloads until the
// stop function is called or ctx is cancelled.
func (s *RedisStore) Subscribe(ctx context.Context, channel string) (<-chan string, func(), error) {
	pubsub := s.client.Subscribe(ctx, channel)

	// Force the subscription to be established before returning so a
	// Publish immediately after Subscribe is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan string, 8)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		if err := pubsub.Close(); err != nil {
			log.Debug().Err(err).Str("channel", channel).Msg("Failed to close subscription")
		}
	}

	return out, stop, nil
}

// Ping checks if Redis is alive and responsive. Used by the status
// listener to report storage health.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection and releases all resources.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
