package hub

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Conn 是可被加入广播组的连接
type Conn interface {
	ID() string
	// Send 非阻塞投递一帧，连接已关闭或发送队列已满时返回 false
	Send(msg []byte) bool
	// Close 关闭发送队列，已排队的帧写完后断开连接。可重复调用。
	Close()
}

// Handler 接收连接生命周期与入站消息。
// 同一连接的 HandleMessage 按顺序调用。
type Handler interface {
	HandleConnect(c Conn)
	HandleMessage(c Conn, raw []byte)
	HandleDisconnect(c Conn)
}

// Hub 维护广播组：groupID -> connID -> Conn。
// 连接本身由 Client 持有，Hub 只记录组成员关系。
type Hub struct {
	groups   map[string]map[string]Conn
	memberOf map[string]map[string]struct{}
	mu       sync.RWMutex
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub() *Hub {
	return &Hub{
		groups:   make(map[string]map[string]Conn),
		memberOf: make(map[string]map[string]struct{}),
	}
}

// Join 将连接加入广播组，重复加入是幂等的
func (h *Hub) Join(c Conn, groupID string) {
	if c == nil {
		logrus.Error("Hub: Attempted to join a nil connection")
		return
	}
	h.mu.Lock()
	members, ok := h.groups[groupID]
	if !ok {
		members = make(map[string]Conn)
		h.groups[groupID] = members
	}
	members[c.ID()] = c
	groups, ok := h.memberOf[c.ID()]
	if !ok {
		groups = make(map[string]struct{})
		h.memberOf[c.ID()] = groups
	}
	groups[groupID] = struct{}{}
	size := len(members)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id": groupID,
		"conn_id": c.ID(),
		"members": size,
	}).Debug("Connection joined group")
}

// Leave 将连接移出广播组
func (h *Hub) Leave(connID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, groupID)
}

func (h *Hub) leaveLocked(connID, groupID string) {
	if members, ok := h.groups[groupID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, groupID)
		}
	}
	if groups, ok := h.memberOf[connID]; ok {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(h.memberOf, connID)
		}
	}
}

// Remove 将连接移出它所在的全部广播组
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for groupID := range h.memberOf[connID] {
		h.leaveLocked(connID, groupID)
	}
}

// Evict 解散整个广播组，返回被移出的连接 ID
func (h *Hub) Evict(groupID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[groupID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	for _, id := range ids {
		h.leaveLocked(id, groupID)
	}
	return ids
}

// Broadcast 将消息发送给组内所有连接，exceptID 非空时排除该连接。
// 发送队列已满的连接会被关闭，客户端至少能观察到断开。
// 返回成功入队的连接数。
func (h *Hub) Broadcast(groupID string, msg []byte, exceptID string) int {
	h.mu.RLock()
	members := h.groups[groupID]
	// 复制接收者列表，避免持锁发送
	targets := make([]Conn, 0, len(members))
	for id, c := range members {
		if id != exceptID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":         groupID,
		"message_size":    len(msg),
		"recipient_count": len(targets),
	})
	logCtx.Debug("Broadcasting message to group")

	delivered := 0
	for _, c := range targets {
		if c.Send(msg) {
			delivered++
		} else {
			logCtx.WithField("conn_id", c.ID()).Warn("Connection send queue unavailable during broadcast, closing connection")
			c.Close()
		}
	}
	return delivered
}

// Members 返回组内连接 ID
func (h *Hub) Members(groupID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.groups[groupID]))
	for id := range h.groups[groupID] {
		ids = append(ids, id)
	}
	return ids
}

// Size 返回组内连接数
func (h *Hub) Size(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupID])
}
