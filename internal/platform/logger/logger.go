// Package logger はslogのハンドラー構成を提供します。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config はログ出力の設定です。
type Config struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

// New は設定に従ったロガーを生成します。
func New(w io.Writer, cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", cfg.Format)
	}
}

// Setup は生成したロガーをslogの既定ロガーに設定します。
func Setup(w io.Writer, cfg Config) error {
	l, err := New(w, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	return nil
}

// ParseLevel はログレベル文字列を解釈します。空文字はinfoです。
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log level: unsupported value %q", value)
	}
}
