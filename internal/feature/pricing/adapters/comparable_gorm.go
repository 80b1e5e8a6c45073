package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardsignal_backend/internal/feature/pricing/domain/entity"
	"cardsignal_backend/internal/feature/pricing/usecase"
)

type comparableGorm struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

var _ usecase.ComparableCache = (*comparableGorm)(nil)

// NewComparableGormCache はRDBに比較販売を保持するキャッシュを生成します。ttlが0以下の場合は24時間です。
func NewComparableGormCache(db *gorm.DB, ttl time.Duration) *comparableGorm {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &comparableGorm{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// ComparableCacheModel は指紋→比較販売のテーブルです。
type ComparableCacheModel struct {
	Fingerprint string    `gorm:"primaryKey;size:64"`
	Query       string    `gorm:"size:255;not null;default:''"`
	Status      string    `gorm:"size:16;not null"`
	Payload     []byte    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (ComparableCacheModel) TableName() string {
	return "comparable_cache"
}

// Get はTTL内のエントリを返します。
func (r *comparableGorm) Get(ctx context.Context, fp string) (entity.ComparableSet, bool, error) {
	var m ComparableCacheModel
	err := r.db.WithContext(ctx).
		Where("fingerprint = ? AND created_at >= ?", fp, r.now().Add(-r.ttl)).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.ComparableSet{}, false, nil
	}
	if err != nil {
		return entity.ComparableSet{}, false, err
	}

	var set entity.ComparableSet
	if err := json.Unmarshal(m.Payload, &set); err != nil {
		return entity.ComparableSet{}, false, fmt.Errorf("decode comparable payload: %w", err)
	}
	return set, true, nil
}

// Put はエントリを書き込みます。既存の指紋は新しい内容と作成時刻で置き換えます。
func (r *comparableGorm) Put(ctx context.Context, fp string, set entity.ComparableSet) error {
	b, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode comparable payload: %w", err)
	}
	m := ComparableCacheModel{
		Fingerprint: fp,
		Query:       set.Query,
		Status:      string(set.Status),
		Payload:     b,
		CreatedAt:   r.now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"query", "status", "payload", "created_at"}),
	}).Create(&m).Error
}

// PurgeExpired はTTLを過ぎた行を削除し、削除件数を返します。
func (r *comparableGorm) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", r.now().Add(-r.ttl)).
		Delete(&ComparableCacheModel{})
	return res.RowsAffected, res.Error
}
