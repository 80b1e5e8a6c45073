package usecase

import (
	"context"

	"cardsignal_backend/internal/feature/identity/domain/entity"
)

// VisualExtractor は映像フレームから文字を認識するエンジンのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type VisualExtractor interface {
	// Extract はフレーム画像のうちregionで指定された領域の文字を認識します。
	// regionがゼロ値の場合は画面全体を対象とします。
	Extract(ctx context.Context, frame []byte, region entity.Region) (entity.VisualText, error)
}

// Transcriber は音声チャンクを文字起こしするエンジンのインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Transcriber interface {
	// Transcribe は音声チャンク（WAV）をテキストに変換します。
	Transcribe(ctx context.Context, chunk []byte) (string, error)
}
