package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个 WebSocket 连接。
// ReadPump 把入站帧按顺序交给 Handler，WritePump 负责出站帧与心跳。
type Client struct {
	id      string
	hub     *Hub
	handler Handler
	conn    *websocket.Conn
	send    chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient 创建一个新的 Client 实例并分配连接 ID
func NewClient(hub *Hub, handler Handler, conn *websocket.Conn) *Client {
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		handler: handler,
		conn:    conn,
		send:    make(chan []byte, 256),
	}
}

func (c *Client) ID() string { return c.id }

// Send 将消息放入发送队列 (非阻塞)
func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close 关闭发送队列，WritePump 写完剩余帧后发送关闭帧并断开
func (c *Client) Close() {
	c.shutdown()
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 读取入站帧并交给 Handler，退出时通知断开并清理组成员关系。
func (c *Client) ReadPump() {
	logCtx := logrus.WithField("conn_id", c.id)
	c.handler.HandleConnect(c)
	defer func() {
		c.handler.HandleDisconnect(c)
		c.hub.Remove(c.id)
		c.shutdown()
		c.conn.Close()
		logCtx.Info("readPump exited, connection cleaned up")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.handler.HandleMessage(c, message)
	}
}

// WritePump 将发送队列中的消息写入连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	logCtx := logrus.WithField("conn_id", c.id)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}
