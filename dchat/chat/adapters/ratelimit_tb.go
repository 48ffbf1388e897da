package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// ErrRateLimited is returned when a key has no tokens left.
var ErrRateLimited = errors.New("rate limited")

// TurnLimiter is a per-key token bucket guarding turn submission. Each key
// (session) gets burst tokens up front and one refill per interval.
type TurnLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*turnBucket
	burst    int
	interval time.Duration
}

type turnBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewTurnLimiter allows ratePerMinute sustained turns with the given burst.
func NewTurnLimiter(ratePerMinute, burst int) *TurnLimiter {
	if ratePerMinute < 1 {
		ratePerMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &TurnLimiter{
		buckets:  make(map[string]*turnBucket),
		burst:    burst,
		interval: time.Minute / time.Duration(ratePerMinute),
	}
}

// Acquire takes one token for key or fails with ErrRateLimited. The
// returned release is a no-op kept for interface symmetry: turns consume
// their token permanently, throughput is restored by refill alone.
func (l *TurnLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &turnBucket{tokens: l.burst, lastRefill: time.Now()}
		l.buckets[key] = b
	}

	if refill := int(time.Since(b.lastRefill) / l.interval); refill > 0 {
		b.tokens = min(b.tokens+refill, l.burst)
		b.lastRefill = b.lastRefill.Add(time.Duration(refill) * l.interval)
	}

	if b.tokens <= 0 {
		return nil, ErrRateLimited
	}
	b.tokens--
	return func() {}, nil
}

// Ensure TurnLimiter implements the RateLimiter interface.
var _ ports.RateLimiter = (*TurnLimiter)(nil)
