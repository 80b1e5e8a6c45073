package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cardsignal_backend/internal/app/config"
	decision "cardsignal_backend/internal/feature/decision/usecase"
	"cardsignal_backend/internal/feature/identity/adapters/vision"
	"cardsignal_backend/internal/feature/identity/adapters/whisper"
	identity "cardsignal_backend/internal/feature/identity/usecase"
	"cardsignal_backend/internal/feature/pricing/adapters/anthropic"
	"cardsignal_backend/internal/feature/pricing/adapters/ebay"
	"cardsignal_backend/internal/feature/pricing/adapters/gemini"
	pricing "cardsignal_backend/internal/feature/pricing/usecase"
	session "cardsignal_backend/internal/feature/session/usecase"
	infrahttp "cardsignal_backend/internal/platform/http"
	"cardsignal_backend/internal/shared/ratelimiter"
)

// NewVisualExtractor は画面認識エンジンを生成します。無効な場合はnilを返し、
// セッションはクライアントから送られた認識済みテキストのみを使います。
func NewVisualExtractor(ctx context.Context, cfg config.VisionConfig) (*vision.VisionTextExtractor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return vision.NewVisionTextExtractor(ctx)
}

// NewTranscriber は文字起こしエンジンを生成します。無効な場合はnilを返します。
func NewTranscriber(cfg config.WhisperConfig) identity.Transcriber {
	if !cfg.Enabled {
		return nil
	}
	return whisper.NewWhisperTranscriber(cfg.Config)
}

// NewMarketplace はeBayの販売実績検索を生成します。
func NewMarketplace(cfg config.EbayConfig) *ebay.SoldListingsScraper {
	client := infrahttp.NewHTTPClient(cfg.Timeout, cfg.UserAgent)
	limiter := ratelimiter.NewRateLimiter("ebay", cfg.RequestsPerMinute, time.Minute)
	return ebay.NewSoldListingsScraper(client, limiter, cfg.Config)
}

// NewTextGenerator は補助サービスが使う言語モデルを生成します。
// providerがnoneの場合はnilを返します。
func NewTextGenerator(ctx context.Context, cfg config.AdvisoryConfig) (pricing.TextGenerator, error) {
	switch cfg.Provider {
	case "gemini":
		gen, err := gemini.NewGeminiGenerator(ctx, cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("advisory: %w", err)
		}
		return gen, nil
	case "anthropic":
		return anthropic.NewClaudeGenerator(cfg.Anthropic), nil
	default:
		return nil, nil
	}
}

// NewQueryBuilder は検索クエリ生成の補助サービスを生成します。
// genがnilの場合はnilを返し、価格解決は規則ベースのクエリのみを使います。
func NewQueryBuilder(cfg config.AdvisoryConfig, gen pricing.TextGenerator) pricing.QueryBuilder {
	if gen == nil {
		return nil
	}
	slog.Info("advisory query builder enabled", "provider", cfg.Provider)
	return pricing.NewAdvisoryQueryBuilder(gen)
}

// NewExplainer は判断結果の説明文を生成するサービスを生成します。
// 無効な場合やgenがnilの場合はnilを返します。
func NewExplainer(cfg config.AdvisoryConfig, gen pricing.TextGenerator) session.Explainer {
	if !cfg.Explain || gen == nil {
		return nil
	}
	slog.Info("decision explanations enabled", "provider", cfg.Provider)
	return decision.NewAdvisoryExplainer(gen)
}
