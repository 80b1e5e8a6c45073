package adapters

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignal_backend/internal/feature/decision/domain/entity"
	"cardsignal_backend/internal/feature/history/usecase"
)

func result(cycle int64) entity.DecisionResult {
	return entity.DecisionResult{
		Signal:      entity.SignalWatch,
		Cycle:       cycle,
		SessionID:   "s-1",
		KeyFactors:  []entity.Factor{},
		RiskFactors: []entity.Factor{entity.FactorThinData},
	}
}

func cycles(results []entity.DecisionResult) []int64 {
	out := make([]int64, 0, len(results))
	for _, r := range results {
		out = append(out, r.Cycle)
	}
	return out
}

func TestNewMemoryRecorder_InvalidCapacity(t *testing.T) {
	t.Parallel()

	for _, c := range []int{0, -1} {
		_, err := NewMemoryRecorder(c, 0)
		assert.ErrorIs(t, err, usecase.ErrInvalidCapacity)
	}
}

// TestMemoryRecorder_Eviction は上限を超えた場合に古いものから削除されることを検証します。
func TestMemoryRecorder_Eviction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		inserts  int
		wantLen  int
		newest   int64
		oldest   int64
	}{
		{name: "below capacity", capacity: 50, inserts: 3, wantLen: 3, newest: 3, oldest: 1},
		{name: "exactly capacity", capacity: 50, inserts: 50, wantLen: 50, newest: 50, oldest: 1},
		{name: "55 into 50 keeps most recent", capacity: 50, inserts: 55, wantLen: 50, newest: 55, oldest: 6},
		{name: "capacity one", capacity: 1, inserts: 4, wantLen: 1, newest: 4, oldest: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, err := NewMemoryRecorder(tt.capacity, 0)
			require.NoError(t, err)
			ctx := context.Background()

			for i := 1; i <= tt.inserts; i++ {
				require.NoError(t, rec.Record(ctx, "s-1", result(int64(i))))
			}

			got, err := rec.History(ctx, "s-1")
			require.NoError(t, err)
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.newest, got[0].Cycle)
			assert.Equal(t, tt.oldest, got[len(got)-1].Cycle)

			// 新しい順に連続していること
			cs := cycles(got)
			for i := 1; i < len(cs); i++ {
				assert.Equal(t, cs[i-1]-1, cs[i])
			}
		})
	}
}

// TestMemoryRecorder_UnknownSession は未記録のセッションで空の履歴を返すことを検証します。
func TestMemoryRecorder_UnknownSession(t *testing.T) {
	t.Parallel()

	rec, err := NewMemoryRecorder(usecase.DefaultCapacity, 0)
	require.NoError(t, err)

	got, err := rec.History(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// TestMemoryRecorder_ConcurrentSessions は異なるセッションへの並行記録が互いに干渉しないことを検証します。
func TestMemoryRecorder_ConcurrentSessions(t *testing.T) {
	t.Parallel()

	rec, err := NewMemoryRecorder(10, 0)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", s)
			for i := 1; i <= 25; i++ {
				_ = rec.Record(ctx, id, result(int64(i)))
			}
		}(s)
	}
	wg.Wait()

	for s := 0; s < 8; s++ {
		got, err := rec.History(ctx, fmt.Sprintf("s-%d", s))
		require.NoError(t, err)
		require.Len(t, got, 10)
		assert.Equal(t, int64(25), got[0].Cycle)
		assert.Equal(t, int64(16), got[9].Cycle)
	}
}

// TestMemoryRecorder_HistoryIsCopy は返された履歴を変更しても内部状態に影響しないことを検証します。
func TestMemoryRecorder_HistoryIsCopy(t *testing.T) {
	t.Parallel()

	rec, err := NewMemoryRecorder(5, 0)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, "s-1", result(1)))

	got, _ := rec.History(ctx, "s-1")
	got[0].Cycle = 99

	again, _ := rec.History(ctx, "s-1")
	assert.Equal(t, int64(1), again[0].Cycle)
}

// TestMemoryRecorder_IdleTTL は書き込みが途絶えたセッションの履歴が破棄されることを検証します。
func TestMemoryRecorder_IdleTTL(t *testing.T) {
	t.Parallel()

	rec, err := NewMemoryRecorder(5, time.Minute)
	require.NoError(t, err)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, rec.Record(ctx, fmt.Sprintf("old-%d", i), result(1)))
	}
	require.NoError(t, rec.Record(ctx, "active", result(1)))

	clock = clock.Add(45 * time.Second)
	require.NoError(t, rec.Record(ctx, "active", result(2)))

	// 境界ちょうどはまだ保持される
	clock = clock.Add(15 * time.Second)
	got, err := rec.History(ctx, "old-0")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	clock = clock.Add(time.Second)
	got, err = rec.History(ctx, "old-0")
	require.NoError(t, err)
	assert.Empty(t, got, "idle session is no longer visible")

	// 新しいセッションの記録で放置分が掃除される
	require.NoError(t, rec.Record(ctx, "fresh", result(1)))
	assert.Len(t, rec.rings, 2)

	got, err = rec.History(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, cycles(got))

	// 期限切れ後に同じIDで記録すると空の履歴から始まる
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, rec.Record(ctx, "active", result(3)))
	got, err = rec.History(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, cycles(got))
	assert.Len(t, rec.rings, 1)
}

// TestMemoryRecorder_NoTTL はttlが0の場合に履歴が破棄されないことを検証します。
func TestMemoryRecorder_NoTTL(t *testing.T) {
	t.Parallel()

	rec, err := NewMemoryRecorder(5, 0)
	require.NoError(t, err)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, "s-1", result(1)))
	clock = clock.Add(365 * 24 * time.Hour)
	require.NoError(t, rec.Record(ctx, "s-2", result(1)))

	got, err := rec.History(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, rec.rings, 2)
}
