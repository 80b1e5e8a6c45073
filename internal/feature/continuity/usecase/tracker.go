// Package usecase はセッション単位の識別継続（キャリーフォワード）を実装します。
package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cardsignal_backend/internal/feature/identity/domain/entity"
)

// ErrInvalidConfig は継続トラッカーの設定が不正な場合のエラーです。
var ErrInvalidConfig = errors.New("invalid continuity config")

// State は継続トラッカーの状態です。
type State string

const (
	StateConfirmed  State = "confirmed"
	StateStaleCarry State = "stale_carry"
	StateUnknown    State = "unknown"
)

// Config は継続トラッカーのしきい値です。
type Config struct {
	MinNameConfidence float64       `mapstructure:"min_name_confidence"` // 識別名を信頼する信頼度の下限（この値を超えること）
	TTL               time.Duration `mapstructure:"ttl"`                 // 保持エンティティを確定扱いする期間
	HardCutoff        time.Duration `mapstructure:"hard_cutoff"`         // 古いエンティティを持ち越す上限
}

// DefaultConfig は既定のしきい値を返します。
func DefaultConfig() Config {
	return Config{
		MinNameConfidence: 0.6,
		TTL:               30 * time.Second,
		HardCutoff:        90 * time.Second,
	}
}

// Validate は設定値の整合性を検証します。
func (c Config) Validate() error {
	switch {
	case c.MinNameConfidence < 0 || c.MinNameConfidence >= 1:
		return fmt.Errorf("%w: min_name_confidence must be in [0,1), got %v", ErrInvalidConfig, c.MinNameConfidence)
	case c.TTL <= 0:
		return fmt.Errorf("%w: ttl must be positive, got %v", ErrInvalidConfig, c.TTL)
	case c.HardCutoff < c.TTL:
		return fmt.Errorf("%w: hard_cutoff (%v) must not be shorter than ttl (%v)", ErrInvalidConfig, c.HardCutoff, c.TTL)
	}
	return nil
}

// Resolution は1サイクル分の継続判定結果です。
type Resolution struct {
	State  State
	Entity entity.EntityAttributes
	Age    time.Duration // 保持エンティティの確定からの経過時間
}

// Tracker は1セッションの識別状態を保持します。ゼロ値は使用できません。
type Tracker struct {
	cfg Config

	mu            sync.Mutex
	last          entity.EntityAttributes
	hasLast       bool
	lastConfirmed time.Time
}

// NewTracker はTrackerの新しいインスタンスを生成します。
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Observe は今回の融合結果を受け取り、状態遷移を行って採用するエンティティを返します。
func (t *Tracker) Observe(fused entity.EntityAttributes, now time.Time) Resolution {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fused.HasName() && fused.Name.Confidence > t.cfg.MinNameConfidence {
		fused.Stale = false
		t.last = fused
		t.hasLast = true
		t.lastConfirmed = now
		return Resolution{State: StateConfirmed, Entity: fused}
	}

	if t.hasLast {
		age := now.Sub(t.lastConfirmed)
		switch {
		case age <= t.cfg.TTL:
			return Resolution{State: StateConfirmed, Entity: carry(t.last, fused), Age: age}
		case age <= t.cfg.HardCutoff:
			stale := markCarried(t.last)
			stale.Stale = true
			return Resolution{State: StateStaleCarry, Entity: stale, Age: age}
		}
	}

	if fused.HasSource(entity.SourceAudio) {
		audio := fused.OnlySource(entity.SourceAudio)
		audio.Stale = true
		return Resolution{State: StateStaleCarry, Entity: audio}
	}

	return Resolution{State: StateUnknown}
}

// Reset は保持している状態をすべて破棄します。
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = entity.EntityAttributes{}
	t.hasLast = false
	t.lastConfirmed = time.Time{}
}

// carry は保持エンティティを出所carriedとして持ち越し、未観測フィールドを今回の観測で補います。
// 保持エンティティの値が優先されます。
func carry(stored, fresh entity.EntityAttributes) entity.EntityAttributes {
	out := markCarried(stored).FillFrom(fresh)
	out.Stale = false
	return out
}

func markCarried(a entity.EntityAttributes) entity.EntityAttributes {
	text := func(f entity.TextField) entity.TextField {
		if f.Present() {
			f.Source = entity.SourceCarried
		}
		return f
	}
	flag := func(f entity.FlagField) entity.FlagField {
		if f.Present() {
			f.Source = entity.SourceCarried
		}
		return f
	}
	a.Name = text(a.Name)
	a.Grade = text(a.Grade)
	a.Era = text(a.Era)
	a.Set = text(a.Set)
	a.Number = text(a.Number)
	a.Rookie = flag(a.Rookie)
	a.Autograph = flag(a.Autograph)
	a.Parallel = flag(a.Parallel)
	return a
}
