package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cardsignal_backend/internal/app/config"
	historyadapters "cardsignal_backend/internal/feature/history/adapters"
	pricingadapters "cardsignal_backend/internal/feature/pricing/adapters"
	"cardsignal_backend/internal/platform/db"
	platformhandler "cardsignal_backend/internal/platform/http/handler"
	platformredis "cardsignal_backend/internal/platform/redis"
)

// Stores は起動時に接続した永続化先です。使わない接続はnilです。
type Stores struct {
	Redis *redis.Client
	DB    *gorm.DB
}

// OpenStores は設定のバックエンドが必要とする接続だけを開きます。
// Redisに接続できない場合はnilのまま続行し、各バックエンドがSQLにフォールバックします。
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{}

	wantRedis := cfg.Cache.Backend == "redis" || cfg.History.Backend == "redis"
	if wantRedis {
		if !cfg.Redis.Enabled() {
			slog.Warn("Redis is not configured. Running without Redis.")
		} else if rdb, err := platformredis.NewRedisClient(ctx, cfg.Redis); err != nil {
			slog.Warn("Redis unavailable. Running without Redis.", "error", err)
		} else {
			s.Redis = rdb
		}
	}

	wantDB := cfg.Cache.Backend != "memory" ||
		cfg.History.Backend == "sql" ||
		(cfg.History.Backend == "redis" && s.Redis == nil)
	if wantDB {
		gdb, err := db.Open(cfg.DB, &pricingadapters.ComparableCacheModel{}, &historyadapters.DecisionLogModel{})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open db: %w", err)
		}
		s.DB = gdb
	}
	return s, nil
}

// HealthChecks は接続済みの永続化先の疎通確認を返します。
func (s *Stores) HealthChecks() []platformhandler.Check {
	var checks []platformhandler.Check
	if s.Redis != nil {
		checks = append(checks, platformhandler.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return s.Redis.Ping(ctx).Err()
		}})
	}
	if s.DB != nil {
		checks = append(checks, platformhandler.Check{Name: "db", Ping: func(ctx context.Context) error {
			sqlDB, err := s.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	return checks
}

// Close は開いた接続をすべて閉じます。
func (s *Stores) Close() error {
	var errs []error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close db: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
