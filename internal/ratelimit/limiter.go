package ratelimit

import "context"

// RateLimiter controls outbound send throughput per template category.
type RateLimiter interface {
	Allow(ctx context.Context, category string) (bool, error)
	Wait(ctx context.Context, category string) error
}
