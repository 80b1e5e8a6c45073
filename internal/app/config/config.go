// Package config はアプリケーション全体の設定をviperで読み込みます。
// 設定ファイル（config.yaml、任意）と環境変数（例: REDIS_HOST, DB_DRIVER）を組み合わせます。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	continuity "cardsignal_backend/internal/feature/continuity/usecase"
	decision "cardsignal_backend/internal/feature/decision/usecase"
	historyusecase "cardsignal_backend/internal/feature/history/usecase"
	"cardsignal_backend/internal/feature/identity/adapters/whisper"
	"cardsignal_backend/internal/feature/pricing/adapters/anthropic"
	"cardsignal_backend/internal/feature/pricing/adapters/ebay"
	"cardsignal_backend/internal/feature/pricing/adapters/gemini"
	pricing "cardsignal_backend/internal/feature/pricing/usecase"
	"cardsignal_backend/internal/feature/session/transport/stream"
	session "cardsignal_backend/internal/feature/session/usecase"
	"cardsignal_backend/internal/platform/db"
	"cardsignal_backend/internal/platform/logger"
	"cardsignal_backend/internal/platform/redis"
)

// ErrInvalidConfig は設定値が不正な場合のエラーです。
var ErrInvalidConfig = errors.New("invalid config")

// Config はアプリケーション全体の設定です。
type Config struct {
	Server     ServerConfig           `mapstructure:"server"`
	Log        logger.Config          `mapstructure:"log"`
	Auth       AuthConfig             `mapstructure:"auth"`
	Redis      redis.Config           `mapstructure:"redis"`
	DB         db.Config              `mapstructure:"db"`
	Cache      CacheConfig            `mapstructure:"cache"`
	Pricing    pricing.ResolverConfig `mapstructure:"pricing"`
	Continuity continuity.Config      `mapstructure:"continuity"`
	Decision   DecisionConfig         `mapstructure:"decision"`
	Session    session.Config         `mapstructure:"session"`
	Stream     stream.Config          `mapstructure:"stream"`
	History    HistoryConfig          `mapstructure:"history"`
	Vision     VisionConfig           `mapstructure:"vision"`
	Whisper    WhisperConfig          `mapstructure:"whisper"`
	Ebay       EbayConfig             `mapstructure:"ebay"`
	Advisory   AdvisoryConfig         `mapstructure:"advisory"`
}

// ServerConfig はHTTPサーバーの設定です。
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig はセッショントークンの設定です。JWTSecretが空の場合は検証しません。
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// CacheConfig は比較販売キャッシュの設定です。
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // redis | sql | memory
	TTL           time.Duration `mapstructure:"ttl"`
	Namespace     string        `mapstructure:"namespace"`
	PurgeSchedule string        `mapstructure:"purge_schedule"` // cron形式。空の場合は定期削除しない
}

// HistoryConfig は判断履歴の設定です。
type HistoryConfig struct {
	Backend  string        `mapstructure:"backend"` // memory | redis | sql
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"` // 最終書き込みからの保持期間（memory, redis）
}

// GradeMultiplier は鑑定グレードの価値倍率の上書きです。
// グレード名に "." を含むため、マップではなく配列で指定します。
type GradeMultiplier struct {
	Grade      string  `mapstructure:"grade"`
	Multiplier float64 `mapstructure:"multiplier"`
}

// DecisionConfig は判断ルールの設定です。
type DecisionConfig struct {
	decision.Config `mapstructure:",squash"`
	Grades          []GradeMultiplier `mapstructure:"grades"`
}

// Rules はグレード倍率の上書きを反映した判断ルールを返します。
func (c DecisionConfig) Rules() decision.Config {
	out := c.Config
	out.GradeMultipliers = decision.DefaultGradeMultipliers()
	for _, g := range c.Grades {
		out.GradeMultipliers[strings.ToUpper(strings.TrimSpace(g.Grade))] = g.Multiplier
	}
	return out
}

// VisionConfig は画面認識エンジン（Google Cloud Vision）の設定です。
type VisionConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WhisperConfig は文字起こしエンジンの設定です。
type WhisperConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	whisper.Config `mapstructure:",squash"`
}

// EbayConfig は販売実績検索の設定です。
type EbayConfig struct {
	ebay.Config `mapstructure:",squash"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// AdvisoryConfig は言語モデルによる補助サービス（検索クエリ生成・判断の説明）の設定です。
type AdvisoryConfig struct {
	Provider  string           `mapstructure:"provider"` // none | gemini | anthropic
	Explain   bool             `mapstructure:"explain"`  // 判断結果に説明文を付ける
	Gemini    gemini.Config    `mapstructure:"gemini"`
	Anthropic anthropic.Config `mapstructure:"anthropic"`
}

// Load は設定ファイルと環境変数から設定を読み込み、検証します。
// pathが空の場合はカレントディレクトリのconfig.yamlを探し、なければ既定値と環境変数のみを使います。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 既存デプロイとの互換
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "./cardsignal.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "cardsignal")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.connect_timeout", 60*time.Second)
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.namespace", "comparables")
	v.SetDefault("cache.purge_schedule", "@every 15m")

	p := pricing.DefaultResolverConfig()
	v.SetDefault("pricing.similarity_threshold", p.SimilarityThreshold)
	v.SetDefault("pricing.search_timeout", p.SearchTimeout)
	v.SetDefault("pricing.advisory_timeout", p.AdvisoryTimeout)

	c := continuity.DefaultConfig()
	v.SetDefault("continuity.min_name_confidence", c.MinNameConfidence)
	v.SetDefault("continuity.ttl", c.TTL)
	v.SetDefault("continuity.hard_cutoff", c.HardCutoff)

	d := decision.DefaultConfig()
	v.SetDefault("decision.min_comparables", d.MinComparables)
	v.SetDefault("decision.thin_data_count", d.ThinDataCount)
	v.SetDefault("decision.fair_value_sample", d.FairValueSample)
	v.SetDefault("decision.normal.strong", d.Normal.Strong)
	v.SetDefault("decision.normal.positive", d.Normal.Positive)
	v.SetDefault("decision.normal.watch", d.Normal.Watch)
	v.SetDefault("decision.thin.strong", d.Thin.Strong)
	v.SetDefault("decision.thin.positive", d.Thin.Positive)
	v.SetDefault("decision.thin.watch", d.Thin.Watch)
	v.SetDefault("decision.max_bid_fraction", d.MaxBidFraction)
	v.SetDefault("decision.selling_fee", d.SellingFee)
	v.SetDefault("decision.stale_penalty", d.StalePenalty)
	v.SetDefault("decision.high_bid_count", d.HighBidCount)
	v.SetDefault("decision.wide_spread_ratio", d.WideSpreadRatio)
	v.SetDefault("decision.low_identity_confidence", d.LowIdentityConf)

	s := session.DefaultConfig()
	v.SetDefault("session.visual_timeout", s.VisualTimeout)
	v.SetDefault("session.audio_timeout", s.AudioTimeout)
	v.SetDefault("session.resolve_timeout", s.ResolveTimeout)
	v.SetDefault("session.explain_timeout", s.ExplainTimeout)
	v.SetDefault("session.audio_max_age", s.AudioMaxAge)
	v.SetDefault("session.text_confidence", s.TextConfidence)
	v.SetDefault("session.max_audio_workers", s.MaxAudioWorkers)

	st := stream.DefaultConfig()
	v.SetDefault("stream.send_buffer", st.SendBuffer)
	v.SetDefault("stream.write_timeout", st.WriteTimeout)
	v.SetDefault("stream.ping_interval", st.PingInterval)

	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.capacity", historyusecase.DefaultCapacity)
	v.SetDefault("history.ttl", 24*time.Hour)

	v.SetDefault("vision.enabled", false)

	v.SetDefault("whisper.enabled", false)
	v.SetDefault("whisper.binary", whisper.DefaultBinary)
	v.SetDefault("whisper.model", whisper.DefaultModel)
	v.SetDefault("whisper.language", whisper.DefaultLanguage)
	v.SetDefault("whisper.temp_dir", "")

	v.SetDefault("ebay.base_url", ebay.DefaultBaseURL)
	v.SetDefault("ebay.max_results", ebay.DefaultMaxResults)
	v.SetDefault("ebay.requests_per_minute", 30)
	v.SetDefault("ebay.timeout", 10*time.Second)
	v.SetDefault("ebay.user_agent", "")

	v.SetDefault("advisory.provider", "none")
	v.SetDefault("advisory.explain", false)
	v.SetDefault("advisory.gemini.api_key", "")
	v.SetDefault("advisory.gemini.model", gemini.DefaultModel)
	v.SetDefault("advisory.gemini.base_url", "")
	v.SetDefault("advisory.anthropic.api_key", "")
	v.SetDefault("advisory.anthropic.model", anthropic.DefaultModel)
	v.SetDefault("advisory.anthropic.max_tokens", anthropic.DefaultMaxTokens)
	v.SetDefault("advisory.anthropic.base_url", "")
}

// Validate は設定値の整合性を検証します。各フィーチャーの設定は各自のValidateに委ねます。
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port must be in 1..65535, got %d", ErrInvalidConfig, c.Server.Port)
	case c.Auth.JWTSecret != "" && c.Auth.TokenTTL <= 0:
		return fmt.Errorf("%w: auth.token_ttl must be positive, got %v", ErrInvalidConfig, c.Auth.TokenTTL)
	case !oneOf(c.Cache.Backend, "redis", "sql", "memory"):
		return fmt.Errorf("%w: cache.backend must be redis, sql or memory, got %q", ErrInvalidConfig, c.Cache.Backend)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("%w: cache.ttl must be positive, got %v", ErrInvalidConfig, c.Cache.TTL)
	case !oneOf(c.History.Backend, "memory", "redis", "sql"):
		return fmt.Errorf("%w: history.backend must be memory, redis or sql, got %q", ErrInvalidConfig, c.History.Backend)
	case c.History.Capacity < 1:
		return fmt.Errorf("%w: history.capacity must be >= 1, got %d", ErrInvalidConfig, c.History.Capacity)
	case !oneOf(c.Advisory.Provider, "none", "gemini", "anthropic"):
		return fmt.Errorf("%w: advisory.provider must be none, gemini or anthropic, got %q", ErrInvalidConfig, c.Advisory.Provider)
	case c.Advisory.Provider == "anthropic" && c.Advisory.Anthropic.APIKey == "":
		return fmt.Errorf("%w: advisory.anthropic.api_key is required", ErrInvalidConfig)
	case c.Advisory.Explain && c.Advisory.Provider == "none":
		return fmt.Errorf("%w: advisory.explain requires an advisory.provider", ErrInvalidConfig)
	case c.Ebay.Timeout <= 0:
		return fmt.Errorf("%w: ebay.timeout must be positive, got %v", ErrInvalidConfig, c.Ebay.Timeout)
	}
	for _, g := range c.Decision.Grades {
		if strings.TrimSpace(g.Grade) == "" {
			return fmt.Errorf("%w: decision.grades entry without grade", ErrInvalidConfig)
		}
	}

	checks := []struct {
		name string
		err  error
	}{
		{"pricing", c.Pricing.Validate()},
		{"continuity", c.Continuity.Validate()},
		{"decision", c.Decision.Rules().Validate()},
		{"session", c.Session.Validate()},
	}
	for _, chk := range checks {
		if chk.err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, chk.name, chk.err)
		}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
