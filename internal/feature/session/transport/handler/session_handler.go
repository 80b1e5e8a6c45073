// Package handler はsessionフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	decision "cardsignal_backend/internal/feature/decision/domain/entity"
	"cardsignal_backend/internal/feature/session/domain/entity"
	"cardsignal_backend/internal/feature/session/transport/http/dto"
	"cardsignal_backend/internal/feature/session/usecase"
)

// SessionUsecase はセッション操作のユースケースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type SessionUsecase interface {
	StartSession(ctx context.Context) (entity.Session, error)
	StopSession(ctx context.Context, id string) error
	ProcessCycle(ctx context.Context, id string, in entity.CycleInput) (decision.DecisionResult, error)
	SubmitAudio(ctx context.Context, id string, chunk []byte) error
	GetHistory(ctx context.Context, id string) ([]decision.DecisionResult, error)
}

// TokenGenerator はセッション専用のアクセストークンを発行します。
type TokenGenerator interface {
	GenerateToken(sessionID string) (string, error)
}

// SessionHandler はセッションのHTTPリクエストを処理します。
type SessionHandler struct {
	uc     SessionUsecase
	tokens TokenGenerator // nilの場合はトークンを発行しない
}

// NewSessionHandler はSessionHandlerの新しいインスタンスを生成します。
func NewSessionHandler(uc SessionUsecase, tokens TokenGenerator) *SessionHandler {
	return &SessionHandler{uc: uc, tokens: tokens}
}

// Start は POST /v1/sessions を処理します。
// 成功時はセッションIDとアクセストークン付きで201を返却します。
func (h *SessionHandler) Start(c *gin.Context) {
	sess, err := h.uc.StartSession(c.Request.Context())
	if err != nil {
		h.fail(c, "start session failed", "", err)
		return
	}

	res := dto.SessionResponse{SessionID: sess.ID, StartedAt: sess.StartedAt}
	if h.tokens != nil {
		token, err := h.tokens.GenerateToken(sess.ID)
		if err != nil {
			// トークンを渡せないセッションは使えないので閉じる
			_ = h.uc.StopSession(c.Request.Context(), sess.ID)
			h.fail(c, "issue session token failed", sess.ID, err)
			return
		}
		res.Token = token
	}
	c.JSON(http.StatusCreated, res)
}

// Cycle は POST /v1/sessions/:id/cycles を処理し、判断結果を返します。
// 根拠不足の場合もsignal=UNKNOWNとして200を返却します。
func (h *SessionHandler) Cycle(c *gin.Context) {
	id := c.Param("id")

	var req dto.CycleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("cycle validation failed", "error", err, "session_id", id, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}

	res, err := h.uc.ProcessCycle(c.Request.Context(), id, req.ToInput())
	if err != nil {
		h.fail(c, "process cycle failed", id, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Audio は POST /v1/sessions/:id/audio を処理します。
// 文字起こしは非同期のため、受け付けた時点で202を返却します。
func (h *SessionHandler) Audio(c *gin.Context) {
	id := c.Param("id")

	var req dto.AudioReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("audio validation failed", "error", err, "session_id", id, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
		return
	}

	if err := h.uc.SubmitAudio(c.Request.Context(), id, req.Audio); err != nil {
		h.fail(c, "submit audio failed", id, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// History は GET /v1/sessions/:id/history を処理し、判断履歴を新しい順に返します。
func (h *SessionHandler) History(c *gin.Context) {
	id := c.Param("id")

	results, err := h.uc.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get history failed", id, err)
		return
	}
	c.JSON(http.StatusOK, dto.HistoryResponse{SessionID: id, Count: len(results), Results: results})
}

// Stop は DELETE /v1/sessions/:id を処理します。
func (h *SessionHandler) Stop(c *gin.Context) {
	id := c.Param("id")

	if err := h.uc.StopSession(c.Request.Context(), id); err != nil {
		h.fail(c, "stop session failed", id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail はユースケースのエラーをHTTPステータスに変換して返却します。
func (h *SessionHandler) fail(c *gin.Context, msg, id string, err error) {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
	case errors.Is(err, usecase.ErrSessionStopped):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "session stopped"})
	case errors.Is(err, usecase.ErrEngineUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
	default:
		slog.Error(msg, "error", err, "session_id", id, "remote_addr", c.ClientIP())
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}
