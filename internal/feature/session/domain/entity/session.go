// Package entity はsessionフィーチャーのドメインモデルを定義します。
package entity

import (
	"time"

	identity "cardsignal_backend/internal/feature/identity/domain/entity"
)

// Session は開始済みの解析セッションです。
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// RawAuction はクライアントから送られるオークション状態の生の値です。
// ゼロ値のフィールドは未観測として扱い、認識テキストや実況から補います。
type RawAuction struct {
	CurrentBid    float64
	TimeRemaining time.Duration
	BidCount      int
	StartingPrice float64
}

// CycleInput は1サイクル分の観測です。
type CycleInput struct {
	// Frame は画面キャプチャ画像です。FrameTextがある場合は認識エンジンを呼びません。
	Frame  []byte
	Region identity.Region

	// FrameText はクライアント側で認識済みのテキストです。
	FrameText       string
	FrameConfidence float64
	// FrameAttributes はクライアント側で識別済みの属性です。FrameTextの解析結果より優先します。
	FrameAttributes identity.EntityAttributes

	// AudioChunk はこのサイクルで文字起こしする音声です。Transcriptがある場合は使いません。
	AudioChunk []byte
	Transcript string

	Auction RawAuction
}
