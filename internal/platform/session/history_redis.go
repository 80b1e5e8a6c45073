// Package session はRedisを使ったセッション単位のデータ保存を提供します。
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardsignal_backend/internal/feature/decision/domain/entity"
	"cardsignal_backend/internal/feature/history/usecase"
)

// HistoryRedis implements usecase.Recorder using a Redis list per session.
// New results are pushed to the head, so LRANGE returns them newest first.
type HistoryRedis struct {
	client   *redis.Client
	prefix   string
	capacity int
	ttl      time.Duration
}

var _ usecase.Recorder = (*HistoryRedis)(nil)

// NewHistoryRedis creates a new HistoryRedis instance.
// ttl bounds how long an idle session's history survives; 0 means 24 hours.
func NewHistoryRedis(client *redis.Client, prefix string, capacity int, ttl time.Duration) (*HistoryRedis, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", usecase.ErrInvalidCapacity, capacity)
	}
	if prefix == "" {
		prefix = "history"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HistoryRedis{
		client:   client,
		prefix:   prefix,
		capacity: capacity,
		ttl:      ttl,
	}, nil
}

// historyKey returns the Redis key for a session's history list.
func (r *HistoryRedis) historyKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, sessionID)
}

// Record pushes a result and trims the list to capacity.
func (r *HistoryRedis) Record(ctx context.Context, sessionID string, result entity.DecisionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	key := r.historyKey(sessionID)
	if err := r.client.LPush(ctx, key, data).Err(); err != nil {
		return err
	}

	// Evict the oldest entries beyond capacity
	if err := r.client.LTrim(ctx, key, 0, int64(r.capacity-1)).Err(); err != nil {
		return err
	}

	return r.client.Expire(ctx, key, r.ttl).Err()
}

// History returns up to capacity results, newest first.
func (r *HistoryRedis) History(ctx context.Context, sessionID string) ([]entity.DecisionResult, error) {
	items, err := r.client.LRange(ctx, r.historyKey(sessionID), 0, int64(r.capacity-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]entity.DecisionResult, 0, len(items))
	for _, item := range items {
		var res entity.DecisionResult
		if err := json.Unmarshal([]byte(item), &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}
