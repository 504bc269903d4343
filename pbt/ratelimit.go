package pbt

import (
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

// RateLimiter gates per-key traffic, used by the Controller to bound
// how fast generations are started and trials submitted.
type RateLimiter interface {
	Allow(key string) bool
}

// tokenBucketLimiter wraps a token bucket over an in-memory store.
type tokenBucketLimiter struct {
	bucket *limiter.TokenBucket
}

// NewPerMinuteLimiter builds a RateLimiter allowing up to ratePerMinute
// events per key per minute, with a burst allowance of burst.
func NewPerMinuteLimiter(ratePerMinute, burst int) (RateLimiter, error) {
	memStore := store.NewMemoryStore(time.Minute)
	bucket, err := limiter.NewTokenBucket(limiter.Config{
		Rate:     int64(ratePerMinute),
		Duration: time.Minute,
		Burst:    int64(burst),
	}, memStore)
	if err != nil {
		return nil, err
	}
	return &tokenBucketLimiter{bucket: bucket}, nil
}

func (t *tokenBucketLimiter) Allow(key string) bool {
	return t.bucket.Allow(key)
}

// NoLimit is a RateLimiter that always allows, used when throttling is
// disabled.
type NoLimit struct{}

func (NoLimit) Allow(string) bool { return true }
