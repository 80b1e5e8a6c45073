// Package ratelimiter は外部サービス呼び出しの頻度制限を提供します。
package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter は、外部呼び出しなどの操作の頻度を制限するインターフェースです。
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter は、interval あたり limit 回までに呼び出しを平準化します。
type RateLimiter struct {
	name string
	lim  *rate.Limiter
}

var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiter は新しいRateLimiterのインスタンスを生成します。
// limitが0以下の場合は制限しません。
func NewRateLimiter(name string, limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{name: name, lim: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimiter{
		name: name,
		lim:  rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit),
	}
}

// Wait は上限に達している場合、次の枠が空くかctxが終了するまで待機します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := rl.lim.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		slog.Debug("rate limit wait", "limiter", rl.name, "waited", waited)
	}
	return nil
}
