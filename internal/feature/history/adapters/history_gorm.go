package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cardsignal_backend/internal/feature/decision/domain/entity"
	"cardsignal_backend/internal/feature/history/usecase"
)

type historyGorm struct {
	db       *gorm.DB
	capacity int
}

var _ usecase.Recorder = (*historyGorm)(nil)

// NewHistoryGormRecorder はRDBのdecision_logテーブルに履歴を保持するRecorderを生成します。
func NewHistoryGormRecorder(db *gorm.DB, capacity int) (*historyGorm, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", usecase.ErrInvalidCapacity, capacity)
	}
	return &historyGorm{db: db, capacity: capacity}, nil
}

// DecisionLogModel はセッションID＋連番→判断結果のテーブルです。
type DecisionLogModel struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"size:64;not null;index:decision_log_session_cycle,priority:1"`
	Cycle     int64     `gorm:"not null;index:decision_log_session_cycle,priority:2"`
	Signal    string    `gorm:"size:32;not null"`
	Payload   []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (DecisionLogModel) TableName() string {
	return "decision_log"
}

// Record は結果を挿入し、保持件数を超えた古い行を同じトランザクションで削除します。
func (r *historyGorm) Record(ctx context.Context, sessionID string, result entity.DecisionResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode decision payload: %w", err)
	}
	m := DecisionLogModel{
		SessionID: sessionID,
		Cycle:     result.Cycle,
		Signal:    string(result.Signal),
		Payload:   b,
		CreatedAt: time.Now().UTC(),
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}

		// 新しい方から数えてcapacity+1件目以前を削除する
		var boundary DecisionLogModel
		err := tx.Where("session_id = ?", sessionID).
			Order("id DESC").
			Offset(r.capacity).
			Limit(1).
			Take(&boundary).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Where("session_id = ? AND id <= ?", sessionID, boundary.ID).
			Delete(&DecisionLogModel{}).Error
	})
}

// History は新しい順に最大capacity件を返します。
func (r *historyGorm) History(ctx context.Context, sessionID string) ([]entity.DecisionResult, error) {
	var rows []DecisionLogModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(r.capacity).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]entity.DecisionResult, 0, len(rows))
	for _, m := range rows {
		var res entity.DecisionResult
		if err := json.Unmarshal(m.Payload, &res); err != nil {
			return nil, fmt.Errorf("decode decision payload (id=%d): %w", m.ID, err)
		}
		out = append(out, res)
	}
	return out, nil
}
