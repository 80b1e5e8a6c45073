package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"cardsignal_backend/internal/platform/cache"
)

// PurgeRecorder は削除件数の計測先です。
type PurgeRecorder interface {
	CachePurged(n int64)
}

// NewPurgeScheduler は比較販売キャッシュの期限切れ行を定期削除するスケジューラーを生成します。
// scheduleが空の場合はnilを返します。呼び出し側でStart/Stopします。
func NewPurgeScheduler(schedule string, purger cache.Purger, metrics PurgeRecorder) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { RunPurge(context.Background(), purger, metrics) }); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return c, nil
}

// RunPurge は期限切れ行を1回削除します。
func RunPurge(ctx context.Context, purger cache.Purger, metrics PurgeRecorder) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	n, err := purger.PurgeExpired(ctx)
	if err != nil {
		slog.Error("comparable cache purge failed", "error", err)
		return 0, err
	}
	if metrics != nil {
		metrics.CachePurged(n)
	}
	slog.Info("comparable cache purged", "deleted", n, "elapsed", time.Since(start))
	return n, nil
}
