package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket limiter shared by all workers that talk to
// one provider, so the in-flight cap and the provider's rate limit compose.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int

	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	last429Time   time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute requests.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}

		wait := r.timeUntilNextToken()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Record429 notes a rate-limit response from the provider and drains the
// bucket so in-flight workers back off together.
func (r *RateLimiter) Record429() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last429Time = time.Now()
	r.tokens = 0
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()

	var until time.Duration
	if r.tokens < 1.0 {
		until = r.timeUntilNextToken()
	}
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		TimeUntilToken:  until,
		TotalConsumed:   r.totalConsumed,
		Last429Time:     r.last429Time,
	}
}

// refill adds tokens for elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * float64(r.requestsPerMinute) / 60.0
	if r.tokens > float64(r.requestsPerMinute) {
		r.tokens = float64(r.requestsPerMinute)
	}
}

// timeUntilNextToken must be called with lock held.
func (r *RateLimiter) timeUntilNextToken() time.Duration {
	needed := 1.0 - r.tokens
	perSecond := float64(r.requestsPerMinute) / 60.0
	return time.Duration(needed / perSecond * float64(time.Second))
}
