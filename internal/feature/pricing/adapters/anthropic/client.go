// Package anthropic はAnthropic Messages APIを使用した検索クエリ生成クライアントを提供します。
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"cardsignal_backend/internal/feature/pricing/usecase"
)

const (
	// DefaultModel は既定のモデルです。
	DefaultModel = "claude-haiku-4-5-20251001"
	// DefaultMaxTokens は1回の生成の最大トークン数です。検索クエリ1行には十分です。
	DefaultMaxTokens = 128
)

// ErrEmptyResponse はテキストブロックを含まない応答のエラーです。
var ErrEmptyResponse = errors.New("anthropic: response has no text")

// Config はAnthropic APIの設定です。
type Config struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"` // 空の場合はSDKの既定
}

// ClaudeGenerator はAnthropic Messages APIでテキストを生成します。
type ClaudeGenerator struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// ClaudeGeneratorがTextGeneratorを実装していることをコンパイル時に検証します。
var _ usecase.TextGenerator = (*ClaudeGenerator)(nil)

// NewClaudeGenerator はClaudeGeneratorの新しいインスタンスを生成します。
func NewClaudeGenerator(cfg Config) *ClaudeGenerator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &ClaudeGenerator{
		client:    sdk.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Generate はプロンプトを1件のユーザーメッセージとして送信し、テキストブロックを連結して返します。
func (c *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
