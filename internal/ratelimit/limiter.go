package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/macrolog/internal/config"
)

const (
	keySessionCreate = "macrolog:ratelimit:session-create:%s"
	keySessionWrite  = "macrolog:ratelimit:write:%s"
)

// Limiter throttles session creation per client and backup writes per
// session. A nil Limiter allows everything.
type Limiter struct {
	bucket *TokenBucket

	createRate  float64
	createBurst int
	writeRate   float64
	writeBurst  int
}

func NewLimiter(cfg config.Config) (*Limiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.SessionCreateRate <= 0 || limitCfg.SessionCreateBurst <= 0 {
		return nil, errors.New("session create rate limit must be positive")
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errors.New("write rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &Limiter{
		bucket:      NewTokenBucket(client),
		createRate:  limitCfg.SessionCreateRate,
		createBurst: limitCfg.SessionCreateBurst,
		writeRate:   limitCfg.WriteRate,
		writeBurst:  limitCfg.WriteBurst,
	}, nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *Limiter) AllowSessionCreate(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keySessionCreate, strings.TrimSpace(clientIP)), l.createRate, l.createBurst)
}

func (l *Limiter) AllowWrite(ctx context.Context, sessionID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keySessionWrite, strings.TrimSpace(sessionID)), l.writeRate, l.writeBurst)
}
