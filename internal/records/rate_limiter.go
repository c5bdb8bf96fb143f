package records

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements per-caller rate limiting using a token bucket
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	bucketsMux sync.RWMutex
	limit      int
	burst      int
	period     time.Duration
}

// tokenBucket represents a token bucket for rate limiting
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewRateLimiter allows limit requests per period, with bursts of up to
// burst requests. A non-positive burst means limit.
func NewRateLimiter(limit, burst int, period time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = limit
	}
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		burst:   burst,
		period:  period,
	}
}

// Allow checks if a request is allowed for the given caller
func (rl *RateLimiter) Allow(userID string) (bool, error) {
	bucket := rl.getBucket(userID)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	rl.refill(bucket, time.Now())

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, nil
	}
	return false, nil
}

func (rl *RateLimiter) refill(bucket *tokenBucket, now time.Time) {
	elapsed := now.Sub(bucket.lastRefill)
	if elapsed <= 0 {
		return
	}
	bucket.tokens += elapsed.Seconds() * float64(rl.limit) / rl.period.Seconds()
	if bucket.tokens > float64(rl.burst) {
		bucket.tokens = float64(rl.burst)
	}
	bucket.lastRefill = now
}

// Reset resets the rate limit for a caller
func (rl *RateLimiter) Reset(userID string) error {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	if bucket, exists := rl.buckets[userID]; exists {
		bucket.mutex.Lock()
		bucket.tokens = float64(rl.burst)
		bucket.lastRefill = time.Now()
		bucket.mutex.Unlock()
	}

	return nil
}

// GetLimits returns current whole token count and burst size for a caller
func (rl *RateLimiter) GetLimits(userID string) (int, int, error) {
	bucket := rl.getBucket(userID)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	rl.refill(bucket, time.Now())
	return int(bucket.tokens), rl.burst, nil
}

// getBucket gets or creates a token bucket for a caller
func (rl *RateLimiter) getBucket(userID string) *tokenBucket {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[userID]
	rl.bucketsMux.RUnlock()

	if exists {
		return bucket
	}

	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[userID]; exists {
		return bucket
	}

	bucket = &tokenBucket{
		tokens:     float64(rl.burst),
		lastRefill: time.Now(),
	}
	rl.buckets[userID] = bucket

	return bucket
}

// cleanup removes buckets idle for longer than maxIdle
func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for userID, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, userID)
		}
		bucket.mutex.Unlock()
	}
}

// StartCleanup periodically drops idle buckets until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(rl.period * 10)
			}
		}
	}()
}
