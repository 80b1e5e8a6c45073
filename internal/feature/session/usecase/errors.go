package usecase

import "errors"

var (
	// ErrSessionNotFound は指定されたセッションが存在しない場合のエラーです。
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionStopped はセッションが停止済み（または処理中に停止された）場合のエラーです。
	ErrSessionStopped = errors.New("session stopped")
	// ErrEngineUnavailable は必要な認識エンジンが設定されていない場合のエラーです。
	ErrEngineUnavailable = errors.New("engine unavailable")
	// ErrInvalidConfig はセッション設定が不正な場合のエラーです。
	ErrInvalidConfig = errors.New("invalid session config")
)
