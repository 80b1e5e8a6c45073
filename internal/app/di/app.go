package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"cardsignal_backend/internal/app/config"
	"cardsignal_backend/internal/app/router"
	decision "cardsignal_backend/internal/feature/decision/usecase"
	pricing "cardsignal_backend/internal/feature/pricing/usecase"
	"cardsignal_backend/internal/feature/session/transport/handler"
	"cardsignal_backend/internal/feature/session/transport/stream"
	session "cardsignal_backend/internal/feature/session/usecase"
	platformhandler "cardsignal_backend/internal/platform/http/handler"
	jwtmw "cardsignal_backend/internal/platform/jwt"
	"cardsignal_backend/internal/platform/metrics"
)

// App は組み立て済みのアプリケーションです。
type App struct {
	Router  *gin.Engine
	Service *session.Service
	Cache   ComparableCache
	Metrics *metrics.Metrics

	stores  *Stores
	purge   *cron.Cron
	closers []func() error
}

// Build は設定からアプリケーション全体を組み立てます。
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{stores: stores, Metrics: metrics.New()}

	if err := app.build(ctx, cfg); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	// Collaborators
	visual, err := NewVisualExtractor(ctx, cfg.Vision)
	if err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	gen, err := NewTextGenerator(ctx, cfg.Advisory)
	if err != nil {
		return err
	}
	advisor := NewQueryBuilder(cfg.Advisory, gen)
	market := NewMarketplace(cfg.Ebay)

	// Repository
	a.Cache = NewComparableCache(cfg.Cache, a.stores.Redis, a.stores.DB)
	recorder, err := NewRecorder(cfg.History, a.stores.Redis, a.stores.DB)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	// Usecase
	resolver := pricing.NewResolver(cfg.Pricing, a.Cache, market, advisor, a.Metrics)
	engine := decision.NewEngine(cfg.Decision.Rules())
	hub := stream.NewHub(cfg.Stream, nil)

	deps := session.Deps{
		Transcriber: NewTranscriber(cfg.Whisper),
		Resolver:    resolver,
		Decider:     engine,
		Explainer:   NewExplainer(cfg.Advisory, gen),
		Recorder:    recorder,
		Publisher:   hub,
		Metrics:     a.Metrics,
	}
	if visual != nil {
		deps.Visual = visual
		a.closers = append(a.closers, visual.Close)
	}
	a.Service = session.NewService(cfg.Session, cfg.Continuity, deps)
	hub.SetSessions(a.Service)

	// Handler
	var tokens handler.TokenGenerator
	if cfg.Auth.JWTSecret != "" {
		tokens = jwtmw.NewGenerator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}
	sessionH := handler.NewSessionHandler(a.Service, tokens)
	healthH := platformhandler.NewHealthHandler(0, a.stores.HealthChecks()...)

	a.Router = router.NewRouter(router.Deps{
		Sessions:  sessionH,
		Stream:    hub,
		Health:    healthH,
		Metrics:   a.Metrics,
		JWTSecret: cfg.Auth.JWTSecret,
	})

	// Scheduler
	a.purge, err = NewPurgeScheduler(cfg.Cache.PurgeSchedule, a.Cache, a.Metrics)
	if err != nil {
		return err
	}
	if a.purge != nil {
		a.purge.Start()
	}
	return nil
}

// Close はセッションを停止し、スケジューラーと接続を閉じます。
func (a *App) Close(ctx context.Context) error {
	if a.purge != nil {
		<-a.purge.Stop().Done()
	}
	if a.Service != nil {
		a.Service.Shutdown(ctx)
	}

	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.stores.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
