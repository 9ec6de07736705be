// Package gateway 实现实时通道的会话状态机：
// 校验座位令牌、维护房间广播组成员关系、路由房间内事件。
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/domain"
	"github.com/mokcj0825/board-hill/internal/dto"
	"github.com/mokcj0825/board-hill/internal/hub"
	"github.com/mokcj0825/board-hill/internal/service"
)

// 额外的 ack 错误码
const (
	CodeNotJoined     = "not_joined"
	CodeRoomMismatch  = "room_mismatch"
	CodeAlreadyJoined = "already_joined"
	CodeRateLimited   = "rate_limited"
	CodeBadPayload    = "bad_payload"
	CodeUnknownEvent  = "unknown_event"
	CodeInternal      = "internal_error"
)

// MaxMessageLength 是 room:message 文本的最大字符数
const MaxMessageLength = 2000

// Rooms 是网关所需的房间存储操作，由 *service.RoomService 实现
type Rooms interface {
	ResolveSeat(ctx context.Context, roomID, seatToken string) (*domain.Seat, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
	ListPlayers(ctx context.Context, roomID string) ([]domain.Seat, error)
	CloseRoom(ctx context.Context, roomID string) error
}

// Registry 是广播组能力，由 *hub.Hub 实现
type Registry interface {
	Join(c hub.Conn, groupID string)
	Leave(connID, groupID string)
	Broadcast(groupID string, msg []byte, exceptID string) int
	Evict(groupID string) []string
}

// Activity 记录房间活动时间，可为 nil
type Activity interface {
	Touch(ctx context.Context, roomID string, at time.Time) error
	Forget(ctx context.Context, roomID string) error
}

type Config struct {
	Activity          Activity
	JoinAttemptLimit  int
	JoinAttemptWindow time.Duration
	// StoreTimeout 限制单次事件处理中的存储调用，0 表示 5s
	StoreTimeout time.Duration
}

// Gateway 实现 hub.Handler
type Gateway struct {
	rooms        Rooms
	groups       Registry
	coordinator  *Coordinator
	limiter      *joinLimiter
	activity     Activity
	storeTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	// 每个房间尚未完成的活动写入；closing 中的房间不再写入
	touches map[string]*pendingTouches
	closing map[string]struct{}

	// 跟踪异步的玩家列表刷新与活动写入
	background sync.WaitGroup
}

type pendingTouches struct {
	wg sync.WaitGroup
	n  int
}

var _ hub.Handler = (*Gateway)(nil)

// New 创建网关
func New(rooms Rooms, groups Registry, cfg Config) *Gateway {
	if rooms == nil || groups == nil {
		panic("Rooms and Registry cannot be nil for Gateway")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Gateway{
		rooms:        rooms,
		groups:       groups,
		coordinator:  NewCoordinator(rooms, groups),
		limiter:      newJoinLimiter(cfg.JoinAttemptLimit, cfg.JoinAttemptWindow),
		activity:     cfg.Activity,
		storeTimeout: cfg.StoreTimeout,
		sessions:     make(map[string]*Session),
		touches:      make(map[string]*pendingTouches),
		closing:      make(map[string]struct{}),
	}
}

// Session 返回连接当前会话的副本
func (g *Gateway) Session(connID string) (Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Wait 等待所有已触发的后台刷新完成
func (g *Gateway) Wait() {
	g.background.Wait()
}

func (g *Gateway) HandleConnect(c hub.Conn) {
	g.mu.Lock()
	g.sessions[c.ID()] = &Session{ConnID: c.ID(), State: StateUnauthenticated}
	g.mu.Unlock()
	logrus.WithField("conn_id", c.ID()).Debug("Connection opened")
}

func (g *Gateway) HandleMessage(c hub.Conn, raw []byte) {
	logCtx := logrus.WithField("conn_id", c.ID())
	var env dto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logCtx.WithError(err).Debug("Dropping malformed frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
	defer cancel()

	switch env.Event {
	case dto.EventJoin:
		g.handleJoin(ctx, c, env)
	case dto.EventMessage:
		g.handleChat(c, env)
	default:
		logCtx.WithField("event", env.Event).Debug("Unknown event")
		g.fail(c, env.ID, CodeUnknownEvent)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c hub.Conn, env dto.Envelope) {
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.ID(), "operation": "join"})

	if !g.limiter.Allow(c.ID()) {
		logCtx.Warn("Join attempts rate limited")
		g.fail(c, env.ID, CodeRateLimited)
		return
	}
	req := decodeJoin(env.Data)
	current, ok := g.Session(c.ID())
	if !ok {
		return
	}
	if current.State == StateJoined {
		g.fail(c, env.ID, CodeAlreadyJoined)
		return
	}

	roomID := service.NormalizeRoomID(req.RoomID)
	if roomID == "" {
		g.fail(c, env.ID, ackCode(service.ErrInvalidRoomID))
		return
	}
	logCtx = logCtx.WithField("room_id", roomID)

	seat, err := g.rooms.ResolveSeat(ctx, roomID, req.SeatToken)
	if err != nil {
		logCtx.WithError(err).Info("Join rejected")
		g.fail(c, env.ID, ackCode(err))
		return
	}
	// 房主可能刚刚关闭了房间
	exists, err := g.rooms.RoomExists(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to recheck room before join")
		g.fail(c, env.ID, ackCode(err))
		return
	}
	if !exists {
		g.fail(c, env.ID, ackCode(service.ErrRoomNotFound))
		return
	}

	g.mu.Lock()
	s, ok := g.sessions[c.ID()]
	if !ok {
		g.mu.Unlock()
		return
	}
	s.State = StateJoined
	s.RoomID = roomID
	s.SeatID = seat.SeatID
	s.DisplayName = seat.DisplayName
	s.SeatToken = seat.ID
	s.IsHost = seat.IsHost()
	g.groups.Join(c, roomID)
	g.mu.Unlock()

	g.reply(c, env.ID, dto.JoinAck{
		OK:          true,
		RoomID:      roomID,
		SeatID:      seat.SeatID,
		DisplayName: seat.DisplayName,
		IsHost:      seat.IsHost(),
	})
	logCtx.WithFields(logrus.Fields{"seat_id": seat.SeatID, "is_host": seat.IsHost()}).Info("Connection joined room")

	g.notify(roomID, c.ID(), dto.SystemJoin, seat.SeatID)
	g.refreshAsync(roomID)
	g.touch(roomID)
}

func (g *Gateway) handleChat(c hub.Conn, env dto.Envelope) {
	var req dto.MessageRequest
	if err := decode(env.Data, &req); err != nil {
		g.fail(c, env.ID, CodeBadPayload)
		return
	}
	roomID := service.NormalizeRoomID(req.RoomID)
	if roomID == "" {
		g.fail(c, env.ID, ackCode(service.ErrInvalidRoomID))
		return
	}
	if strings.TrimSpace(req.Message) == "" || utf8.RuneCountInString(req.Message) > MaxMessageLength {
		g.fail(c, env.ID, ackCode(service.ErrInvalidMessage))
		return
	}
	sess, ok := g.Session(c.ID())
	if !ok || sess.State != StateJoined {
		g.fail(c, env.ID, CodeNotJoined)
		return
	}
	if sess.RoomID != roomID {
		g.fail(c, env.ID, CodeRoomMismatch)
		return
	}

	msg, err := dto.Encode(dto.EventMessage, dto.ChatMessage{
		From:    sess.sender(),
		Message: req.Message,
		At:      time.Now().UnixMilli(),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal chat message")
		g.fail(c, env.ID, CodeInternal)
		return
	}
	g.groups.Broadcast(roomID, msg, "")
	g.reply(c, env.ID, dto.Ack{OK: true})
	g.touch(roomID)
}

func (g *Gateway) HandleDisconnect(c hub.Conn) {
	g.limiter.Forget(c.ID())

	g.mu.Lock()
	s, ok := g.sessions[c.ID()]
	if !ok {
		g.mu.Unlock()
		return
	}
	sess := *s
	s.State = StateClosed
	delete(g.sessions, c.ID())
	g.mu.Unlock()

	if sess.State != StateJoined {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id": c.ID(),
		"room_id": sess.RoomID,
		"seat_id": sess.SeatID,
	})

	if !sess.IsHost {
		g.groups.Leave(c.ID(), sess.RoomID)
		g.notify(sess.RoomID, c.ID(), dto.SystemLeave, sess.SeatID)
		logCtx.Info("Guest left room")
		return
	}

	g.mu.Lock()
	g.closing[sess.RoomID] = struct{}{}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.closing, sess.RoomID)
		g.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
	defer cancel()
	evicted := g.coordinator.CloseRoom(ctx, sess.RoomID, c.ID())

	// 被移出组的连接回到未认证状态，可以重新加入其他房间
	g.mu.Lock()
	for _, id := range evicted {
		if other, ok := g.sessions[id]; ok && other.RoomID == sess.RoomID {
			other.reset()
		}
	}
	pending := g.touches[sess.RoomID]
	g.mu.Unlock()

	if g.activity != nil {
		// Forget 必须晚于该房间已发出的全部写入
		if pending != nil {
			pending.wg.Wait()
		}
		forgetCtx, forgetCancel := context.WithTimeout(context.Background(), g.storeTimeout)
		defer forgetCancel()
		if err := g.activity.Forget(forgetCtx, sess.RoomID); err != nil {
			logCtx.WithError(err).Warn("Failed to clear room activity")
		}
	}
	logCtx.WithField("evicted", len(evicted)).Info("Host left, room closed")
}

// notify 向组内除 exceptID 外的连接发送 room:system
func (g *Gateway) notify(roomID, exceptID, kind, by string) {
	msg, err := dto.Encode(dto.EventSystem, dto.SystemEvent{Type: kind, By: by, At: time.Now().UnixMilli()})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal system event")
		return
	}
	g.groups.Broadcast(roomID, msg, exceptID)
}

func (g *Gateway) refreshAsync(roomID string) {
	g.background.Add(1)
	go func() {
		defer g.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
		defer cancel()
		g.coordinator.RefreshPlayerList(ctx, roomID)
	}()
}

// touch 异步记录房间活动，失败只记录日志。正在关闭的房间直接跳过。
func (g *Gateway) touch(roomID string) {
	if g.activity == nil {
		return
	}
	g.mu.Lock()
	if _, ok := g.closing[roomID]; ok {
		g.mu.Unlock()
		return
	}
	p, ok := g.touches[roomID]
	if !ok {
		p = &pendingTouches{}
		g.touches[roomID] = p
	}
	p.n++
	p.wg.Add(1)
	g.mu.Unlock()

	at := time.Now()
	g.background.Add(1)
	go func() {
		defer g.background.Done()
		defer func() {
			g.mu.Lock()
			p.n--
			if p.n == 0 && g.touches[roomID] == p {
				delete(g.touches, roomID)
			}
			g.mu.Unlock()
			p.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), g.storeTimeout)
		defer cancel()
		if err := g.activity.Touch(ctx, roomID, at); err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to record room activity")
		}
	}()
}

func (g *Gateway) reply(c hub.Conn, id int64, data interface{}) {
	if id == 0 {
		return
	}
	msg, err := dto.EncodeAck(id, data)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal ack")
		return
	}
	if !c.Send(msg) {
		logrus.WithField("conn_id", c.ID()).Warn("Failed to queue ack")
	}
}

func (g *Gateway) fail(c hub.Conn, id int64, code string) {
	g.reply(c, id, dto.Ack{OK: false, Error: code})
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, v)
}

// decodeJoin 宽松解析 room:join 请求体。
// 缺失或类型不符的字段按空字符串处理，由后续校验给出 invalid roomId / invalid_seat。
func decodeJoin(data json.RawMessage) dto.JoinRequest {
	var req dto.JoinRequest
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return req
	}
	if err := json.Unmarshal(fields["roomId"], &req.RoomID); err != nil {
		req.RoomID = ""
	}
	if err := json.Unmarshal(fields["seatToken"], &req.SeatToken); err != nil {
		req.SeatToken = ""
	}
	return req
}

// ackCode 把业务错误转换为 ack 中的 error 字符串
func ackCode(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return service.ErrRoomNotFound.Error()
	case errors.Is(err, service.ErrInvalidSeat):
		return service.ErrInvalidSeat.Error()
	case errors.Is(err, service.ErrInvalidRoomID):
		return service.ErrInvalidRoomID.Error()
	case errors.Is(err, service.ErrInvalidMessage):
		return service.ErrInvalidMessage.Error()
	case errors.Is(err, service.ErrStore):
		return service.ErrStore.Error()
	default:
		return CodeInternal
	}
}
