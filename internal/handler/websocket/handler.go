package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/hub"
)

// WebSocketHandler 负责升级连接并把连接交给 Hub 与事件处理器
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	handler  hub.Handler
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为 "*" 或空时接受任意来源。
func NewWebSocketHandler(h *hub.Hub, handler hub.Handler, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if handler == nil {
		panic("Handler cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		hub:     h,
		handler: handler,
	}
}

// HandleConnection 处理 GET /ws。
// 连接建立时未认证，客户端通过 room:join 事件加入房间。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误
		logrus.WithError(err).WithField("client_ip", c.ClientIP()).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, h.handler, conn)
	logrus.WithFields(logrus.Fields{
		"conn_id":   client.ID(),
		"client_ip": c.ClientIP(),
	}).Info("WS Handler: Connection upgraded to WebSocket")
	client.Run()
}
