package di

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cardsignal_backend/internal/app/config"
	historyadapters "cardsignal_backend/internal/feature/history/adapters"
	session "cardsignal_backend/internal/feature/session/usecase"
	platformsession "cardsignal_backend/internal/platform/session"
)

// NewRecorder は設定に応じた判断履歴の保存先を生成します。
// redisが指定されていてもRedisが使えない場合はSQLにフォールバックします。
func NewRecorder(cfg config.HistoryConfig, rdb *redis.Client, db *gorm.DB) (session.Recorder, error) {
	switch cfg.Backend {
	case "redis":
		if rdb != nil {
			return platformsession.NewHistoryRedis(rdb, "history", cfg.Capacity, cfg.TTL)
		}
		slog.Warn("Redis unavailable, decision history falls back to sql")
		return historyadapters.NewHistoryGormRecorder(db, cfg.Capacity)
	case "sql":
		return historyadapters.NewHistoryGormRecorder(db, cfg.Capacity)
	default:
		return historyadapters.NewMemoryRecorder(cfg.Capacity, cfg.TTL)
	}
}
