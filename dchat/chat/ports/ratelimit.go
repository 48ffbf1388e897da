package chatports

import "context"

// RateLimiter bounds how fast turns may be submitted per session.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
