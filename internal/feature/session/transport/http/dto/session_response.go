package dto

import (
	"time"

	decision "cardsignal_backend/internal/feature/decision/domain/entity"
)

// SessionResponse はセッション開始時のレスポンスDTOです。
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Token     string    `json:"token,omitempty"` // セッション専用のアクセストークン
}

// HistoryResponse は判断履歴のレスポンスDTOです。新しい順に並びます。
type HistoryResponse struct {
	SessionID string                    `json:"session_id"`
	Count     int                       `json:"count"`
	Results   []decision.DecisionResult `json:"results"`
}

// ErrorResponse はエラーレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
}
