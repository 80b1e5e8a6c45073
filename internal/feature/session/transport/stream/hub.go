// Package stream はセッションの判断結果をWebSocketで購読者に配信します。
package stream

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	decision "cardsignal_backend/internal/feature/decision/domain/entity"
)

// SessionChecker はセッションの存在確認を行います。
type SessionChecker interface {
	IsLive(id string) bool
}

// Config はHubの設定です。
type Config struct {
	SendBuffer   int           `mapstructure:"send_buffer"` // 購読者ごとの未送信結果の上限
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// DefaultConfig は既定の設定を返します。
func DefaultConfig() Config {
	return Config{SendBuffer: 16, WriteTimeout: 5 * time.Second, PingInterval: 30 * time.Second}
}

type subscriber struct {
	conn      *websocket.Conn
	send      chan decision.DecisionResult
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Hub はセッションごとの購読者を管理します。
type Hub struct {
	cfg      Config
	sessions SessionChecker
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub はHubの新しいインスタンスを生成します。sessionsがnilの場合は存在確認をしません。
func NewHub(cfg Config, sessions SessionChecker) *Hub {
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	return &Hub{
		cfg:      cfg,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 認証はルーターのミドルウェアで行う
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// SetSessions はセッションの存在確認先を設定します。Serveの前に呼び出します。
func (h *Hub) SetSessions(sessions SessionChecker) {
	h.sessions = sessions
}

// Publish は判断結果をセッションの購読者全員に送ります。
// 送信待ちが上限に達した購読者への結果は破棄し、サイクルを止めません。
func (h *Hub) Publish(sessionID string, result decision.DecisionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[sessionID] {
		select {
		case sub.send <- result:
		default:
			slog.Warn("stream subscriber is slow, result dropped", "session_id", sessionID, "cycle", result.Cycle)
		}
	}
}

// CloseSession はセッションの購読者全員との接続を閉じます。
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	subs := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}

// Subscribers はセッションの購読者数を返します。
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Serve は GET /v1/sessions/:id/stream を処理し、WebSocketにアップグレードします。
func (h *Hub) Serve(c *gin.Context) {
	id := c.Param("id")
	if h.sessions != nil && !h.sessions.IsLive(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		slog.Warn("websocket upgrade failed", "error", err, "session_id", id, "remote_addr", c.ClientIP())
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan decision.DecisionResult, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	h.add(id, sub)
	slog.Info("stream subscribed", "session_id", id, "remote_addr", c.ClientIP())

	go h.writeLoop(id, sub)
	h.readLoop(sub)
	h.remove(id, sub)
	sub.close()
}

func (h *Hub) add(id string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[*subscriber]struct{})
	}
	h.subs[id][sub] = struct{}{}
}

func (h *Hub) remove(id string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[id], sub)
	if len(h.subs[id]) == 0 {
		delete(h.subs, id)
	}
}

// readLoop はクライアントの切断を検出するまで受信メッセージを読み捨てます。
func (h *Hub) readLoop(sub *subscriber) {
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(id string, sub *subscriber) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case res := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := sub.conn.WriteJSON(res); err != nil {
				slog.Warn("stream write failed", "error", err, "session_id", id)
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		case <-sub.done:
			_ = sub.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
				time.Now().Add(h.cfg.WriteTimeout),
			)
			return
		}
	}
}
