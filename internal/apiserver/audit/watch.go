package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/eventbus"
	"pocketfiler/pkg/logging"
)

const (
	defaultPollInterval = 2 * time.Second
	watchWindow         = 100
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
)

var watchLog = logging.Default("audit-ws")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WatchMessage WebSocket 推送的消息
type WatchMessage struct {
	Type      string                   `json:"type"` // event
	Data      *eventbus.LifecycleEvent `json:"data"`
	Timestamp time.Time                `json:"timestamp"`
}

// Watch 通过 WebSocket 推送实体的生命周期事件
//
// 路由: GET /ws/audit/{entity}/{id}
//
// 连接建立后先按时间顺序推送已有事件，之后轮询事件总线推送新事件。
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	entity, id, err := target(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		watchLog.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go readPump(conn, cancel)

	seen := make(map[string]bool)
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		events, err := h.events.Recent(ctx, entity, id, watchWindow)
		if err != nil {
			watchLog.WithError(err).Warn("read lifecycle events failed", "entity", entity, "id", id)
		} else {
			next := make(map[string]bool, len(events))
			// Recent 新事件在前，倒序发送
			for i := len(events) - 1; i >= 0; i-- {
				ev := events[i]
				next[ev.ID] = true
				if seen[ev.ID] {
					continue
				}
				if err := send(conn, WatchMessage{Type: "event", Data: ev, Timestamp: time.Now()}); err != nil {
					return
				}
			}
			seen = next
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RegisterWatch 注册 WebSocket 路由（仅管理员）
//
// mux 不能经过包装 ResponseWriter 的中间件，否则无法 Hijack 连接。
func (h *Handler) RegisterWatch(mux *http.ServeMux, authn func(http.Handler) http.Handler) {
	mux.Handle("GET /ws/audit/{entity}/{id}", authn(auth.AdminOnly(h.Watch)))
}

func send(conn *websocket.Conn, msg WatchMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// readPump 只处理控制帧，连接断开时取消推送
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				watchLog.WithError(err).Debug("websocket read error")
			}
			return
		}
	}
}
