// Package usecase はセッションごとの判断履歴を保持する記録係の契約を定義します。
package usecase

import (
	"context"
	"errors"

	"cardsignal_backend/internal/feature/decision/domain/entity"
)

// DefaultCapacity はセッションごとに保持する履歴の既定件数です。
const DefaultCapacity = 50

// ErrInvalidCapacity は保持件数が正でない場合のエラーです。
var ErrInvalidCapacity = errors.New("history capacity must be positive")

// Recorder はセッションごとの判断結果を挿入順に保持します。
// 上限を超えた場合は古いものから削除されます。
type Recorder interface {
	// Record は判断結果を追加します。異なるセッションへの並行呼び出しは安全です。
	Record(ctx context.Context, sessionID string, result entity.DecisionResult) error
	// History は新しい順に最大で保持件数分の結果を返します。
	History(ctx context.Context, sessionID string) ([]entity.DecisionResult, error)
}
