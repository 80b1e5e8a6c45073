// Package router はHTTPルーティングを定義します。
package router

import (
	"github.com/gin-gonic/gin"

	"cardsignal_backend/internal/feature/session/transport/handler"
	"cardsignal_backend/internal/feature/session/transport/stream"
	platformhandler "cardsignal_backend/internal/platform/http/handler"
	jwtmw "cardsignal_backend/internal/platform/jwt"
	"cardsignal_backend/internal/platform/metrics"
)

// Deps はルーターが登録するハンドラーです。MetricsとStreamは省略できます。
type Deps struct {
	Sessions  *handler.SessionHandler
	Stream    *stream.Hub
	Health    *platformhandler.HealthHandler
	Metrics   *metrics.Metrics
	JWTSecret string // 空の場合はセッショントークンを検証しない
}

// NewRouter はルートを登録したGinエンジンを返します。
func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// 認証不要
	// 導通確認用
	r.GET("/healthz", d.Health.Health)
	r.HEAD("/healthz", d.Health.Health)
	r.OPTIONS("/healthz", d.Health.Health)

	v1 := r.Group("/v1")
	// セッション開始（トークン発行）
	v1.POST("/sessions", d.Sessions.Start)

	// セッション単位のルート
	// → トークンのsidとパスの:idが一致する必要がある
	sess := v1.Group("/sessions/:id")
	sess.Use(jwtmw.SessionRequired(d.JWTSecret, "id"))
	{
		sess.POST("/cycles", d.Sessions.Cycle)
		sess.POST("/audio", d.Sessions.Audio)
		sess.GET("/history", d.Sessions.History)
		sess.DELETE("", d.Sessions.Stop)
		if d.Stream != nil {
			// ブラウザのWebSocketはヘッダーを付けられないため ?token= でも受け付ける
			sess.GET("/stream", d.Stream.Serve)
		}
	}

	return r
}
