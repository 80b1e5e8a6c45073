package usecase

import "errors"

var (
	// ErrInvalidConfig は価格解決の設定が不正な場合のエラーです。
	ErrInvalidConfig = errors.New("invalid pricing config")
	// ErrEmptyQuery は生成されたクエリが空の場合のエラーです。
	ErrEmptyQuery = errors.New("empty search query")
	// ErrCollaboratorPanic は外部連携先の呼び出しがpanicした場合のエラーです。
	ErrCollaboratorPanic = errors.New("collaborator panicked")
)
