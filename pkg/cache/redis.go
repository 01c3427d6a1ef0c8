// Package cache bootstraps the Redis client used as the coordination store
// (§4.B): sale-status cache, rate tokens, job state, job queue backing
// structures. Mirrors pkg/database's retry-with-backoff shape.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Options configures the Redis client.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient creates a Redis client with retry logic, verified by PING.
// Retries with exponential backoff: 1s, 2s, 4s, 8s, 16s (total ~31s).
func NewClient(ctx context.Context, opts Options, maxRetries int) (*redis.Client, error) {
	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var client *redis.Client
	var err error

	for attempt := 0; attempt < attempts; attempt++ {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
			PoolSize: opts.PoolSize,
		})

		if pingErr := client.Ping(ctx).Err(); pingErr == nil {
			log.Info().Msg("coordination store connection established")
			return client, nil
		} else {
			_ = client.Close()
			err = fmt.Errorf("ping failed: %w", pingErr)
		}

		backoff := time.Duration(1<<attempt) * time.Second
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Dur("next_retry_in", backoff).
			Msg("coordination store connection failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("failed to connect to coordination store after %d attempts: %w", attempts, err)
}

// Pinger adapts a *redis.Client to the handler package's Pinger interface
// (Ping(ctx) error), since the client's own Ping returns a *StatusCmd.
type Pinger struct {
	client *redis.Client
}

// NewPinger wraps client for health-check use.
func NewPinger(client *redis.Client) Pinger {
	return Pinger{client: client}
}

// Ping reports whether the coordination store is reachable.
func (p Pinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
