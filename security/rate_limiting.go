package security

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// PerMinute limits a route group per operator (falling back to client IP)
// using a one-minute Redis window. Check-in devices scan at human speed; a
// caller burning through the limit is a stuck client or a script.
func (r *RateLimiter) PerMinute(scope string, max int64) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.redis == nil {
			return e.Next()
		}

		id := e.RealIP()
		if e.Auth != nil {
			id = e.Auth.Id
		}
		key := fmt.Sprintf("ratelimit:%s:%s", scope, id)

		ctx, cancel := context.WithTimeout(e.Request.Context(), time.Second)
		defer cancel()

		// EXPIRE NX re-attaches the window TTL whenever it is missing, so a
		// lost expiry cannot turn the counter into a permanent block
		pipe := r.redis.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			// a Redis hiccup must not take down check-ins
			return e.Next()
		}
		if incr.Val() > max {
			return apis.NewApiError(http.StatusTooManyRequests, "Too many requests", nil)
		}

		return e.Next()
	}
}
