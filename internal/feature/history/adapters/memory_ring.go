// Package adapters はhistoryフィーチャーの記録先（メモリ・SQL）を提供します。
package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cardsignal_backend/internal/feature/decision/domain/entity"
	"cardsignal_backend/internal/feature/history/usecase"
)

// ring は固定長の循環バッファです。満杯になると最古の要素を上書きします。
type ring struct {
	mu      sync.Mutex
	buf     []entity.DecisionResult
	start   int
	size    int
	touched time.Time // 最終書き込み時刻
}

func (r *ring) push(v entity.DecisionResult, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = now
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) idleSince(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.touched)
}

// newestFirst は新しい順のコピーを返します。
func (r *ring) newestFirst() []entity.DecisionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.DecisionResult, 0, r.size)
	for i := r.size - 1; i >= 0; i-- {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

type memoryRecorder struct {
	mu       sync.RWMutex
	rings    map[string]*ring
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

var _ usecase.Recorder = (*memoryRecorder)(nil)

// NewMemoryRecorder はセッションごとの循環バッファで履歴を保持するRecorderを生成します。
// ttlを超えて書き込みのないセッションの履歴は破棄されます。ttlが0以下の場合は破棄しません。
func NewMemoryRecorder(capacity int, ttl time.Duration) (*memoryRecorder, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", usecase.ErrInvalidCapacity, capacity)
	}
	return &memoryRecorder{
		rings:    make(map[string]*ring),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (m *memoryRecorder) Record(_ context.Context, sessionID string, result entity.DecisionResult) error {
	now := m.now()
	m.ringFor(sessionID, now).push(result, now)
	return nil
}

func (m *memoryRecorder) History(_ context.Context, sessionID string) ([]entity.DecisionResult, error) {
	m.mu.RLock()
	r, ok := m.rings[sessionID]
	m.mu.RUnlock()
	if !ok || m.expired(r, m.now()) {
		return []entity.DecisionResult{}, nil
	}
	return r.newestFirst(), nil
}

func (m *memoryRecorder) ringFor(sessionID string, now time.Time) *ring {
	m.mu.RLock()
	r, ok := m.rings[sessionID]
	m.mu.RUnlock()
	if ok && !m.expired(r, now) {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 新しいセッションの追加時に放置されたセッションを掃除する
	m.sweepLocked(now)
	if r, ok := m.rings[sessionID]; ok {
		return r
	}
	r = &ring{buf: make([]entity.DecisionResult, m.capacity), touched: now}
	m.rings[sessionID] = r
	return r
}

func (m *memoryRecorder) sweepLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, r := range m.rings {
		if m.expired(r, now) {
			delete(m.rings, id)
		}
	}
}

func (m *memoryRecorder) expired(r *ring, now time.Time) bool {
	return m.ttl > 0 && r.idleSince(now) > m.ttl
}
