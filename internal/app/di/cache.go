// Package di はアプリケーションのコンポーネントを設定から組み立てます。
package di

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cardsignal_backend/internal/app/config"
	pricingadapters "cardsignal_backend/internal/feature/pricing/adapters"
	pricing "cardsignal_backend/internal/feature/pricing/usecase"
	"cardsignal_backend/internal/platform/cache"
)

// ComparableCache は価格解決のキャッシュと、期限切れ行の削除先の組です。
type ComparableCache interface {
	pricing.ComparableCache
	cache.Purger
}

// NewComparableCache は設定に応じた比較販売キャッシュを生成します。
// redisはSQLを下層に持つ2段構成です。Redisが使えない場合はSQLにフォールバックします。
func NewComparableCache(cfg config.CacheConfig, rdb *redis.Client, db *gorm.DB) ComparableCache {
	switch cfg.Backend {
	case "memory":
		return pricingadapters.NewMemoryComparableCache(cfg.TTL)
	case "redis":
		sql := pricingadapters.NewComparableGormCache(db, cfg.TTL)
		if rdb == nil {
			slog.Warn("Redis unavailable, comparable cache falls back to sql")
			return sql
		}
		return cache.NewCachingComparableCache(rdb, cfg.TTL, sql, cfg.Namespace)
	default:
		return pricingadapters.NewComparableGormCache(db, cfg.TTL)
	}
}
