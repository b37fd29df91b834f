package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/flowmarket/internal/config"
	"go.uber.org/zap"
)

const keySubmit = "registration:submit:%s:%s"

// SubmitLimiter throttles registration submissions per client address.
// A nil limiter, or any Redis failure, lets the request through.
type SubmitLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewSubmitLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *SubmitLimiter {
	if client == nil || cfg.SubmitRatePerSecond <= 0 || cfg.SubmitBurst <= 0 {
		return nil
	}
	return newSubmitLimiter(client, cfg.SubmitRatePerSecond, cfg.SubmitBurst, log)
}

func newSubmitLimiter(client redis.Scripter, rate float64, burst int, log *zap.Logger) *SubmitLimiter {
	return &SubmitLimiter{
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
		log:    log.Named("ratelimit.submit"),
	}
}

func (l *SubmitLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow reports whether clientIP may submit on the given endpoint scope.
// The returned result is nil when limiting is disabled or failed open.
func (l *SubmitLimiter) Allow(ctx context.Context, scope, clientIP string) (bool, *RateLimitResult) {
	if !l.Enabled() {
		return true, nil
	}

	key := fmt.Sprintf(keySubmit, strings.TrimSpace(scope), strings.TrimSpace(clientIP))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return true, nil
	}
	return res.Allowed, res
}
