// Package whisper はWhisper CLIを使用した音声文字起こしクライアントを提供します。
package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"cardsignal_backend/internal/feature/identity/usecase"
)

const (
	// DefaultBinary はWhisper CLIの実行ファイル名です。
	DefaultBinary = "whisper"
	// DefaultModel は既定のWhisperモデルです。
	DefaultModel = "base"
	// DefaultLanguage は実況の言語です。
	DefaultLanguage = "en"
)

// Config はWhisper CLIの設定です。
type Config struct {
	Binary   string `mapstructure:"binary"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	TempDir  string `mapstructure:"temp_dir"` // 空の場合はOSの一時ディレクトリ
}

// WhisperTranscriber は音声チャンクを一時WAVファイルに書き出し、Whisper CLIで文字起こしします。
type WhisperTranscriber struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// WhisperTranscriberがTranscriberを実装していることをコンパイル時に検証します。
var _ usecase.Transcriber = (*WhisperTranscriber)(nil)

// NewWhisperTranscriber は設定の空欄を既定値で埋めてWhisperTranscriberを生成します。
func NewWhisperTranscriber(cfg Config) *WhisperTranscriber {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &WhisperTranscriber{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperTranscriber) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

// Transcribe は音声チャンクを文字起こしします。空のチャンクは空文字列を返します。
func (w *WhisperTranscriber) Transcribe(ctx context.Context, chunk []byte) (string, error) {
	if len(chunk) == 0 {
		return "", nil
	}

	dir, err := os.MkdirTemp(w.cfg.TempDir, "cardsignal-audio-")
	if err != nil {
		return "", fmt.Errorf("transcribe: create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	source := filepath.Join(dir, "chunk.wav")
	if err := os.WriteFile(source, chunk, 0o600); err != nil {
		return "", fmt.Errorf("transcribe: write chunk: %w", err)
	}

	if err := w.run(ctx, w.cfg.Binary, w.buildArgs(source, dir)...); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "chunk.txt"))
	if err != nil {
		return "", fmt.Errorf("transcribe: read output: %w", err)
	}
	return strings.Join(strings.Fields(string(b)), " "), nil
}

func (w *WhisperTranscriber) buildArgs(source, outputDir string) []string {
	return []string{
		source,
		"--model", w.cfg.Model,
		"--language", w.cfg.Language,
		"--fp16", "False",
		"--output_format", "txt",
		"--output_dir", outputDir,
	}
}

// run executes a command, using the custom runner if set.
func (w *WhisperTranscriber) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
