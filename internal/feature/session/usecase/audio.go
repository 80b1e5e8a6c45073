package usecase

import (
	"sync"
	"time"

	identity "cardsignal_backend/internal/feature/identity/usecase"
)

// audioSlot はセッションの最新の文字起こし結果を保持します。
// 観測時刻が古い結果で新しい結果を上書きしません。
type audioSlot struct {
	mu     sync.Mutex
	result identity.TranscriptResult
	at     time.Time
}

func (s *audioSlot) set(res identity.TranscriptResult, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.Before(s.at) {
		return
	}
	s.result, s.at = res, at
}

// latest はmaxAge以内の結果を返します。古い・未取得の場合は音声の根拠なしです。
func (s *audioSlot) latest(now time.Time, maxAge time.Duration) (identity.TranscriptResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.at.IsZero() || now.Sub(s.at) > maxAge {
		return identity.TranscriptResult{}, false
	}
	return s.result, true
}

func (s *audioSlot) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result, s.at = identity.TranscriptResult{}, time.Time{}
}
