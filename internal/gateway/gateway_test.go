package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mokcj0825/board-hill/internal/domain"
	"github.com/mokcj0825/board-hill/internal/dto"
	"github.com/mokcj0825/board-hill/internal/gateway"
	"github.com/mokcj0825/board-hill/internal/hub"
	"github.com/mokcj0825/board-hill/internal/infra/persistence/memory"
	"github.com/mokcj0825/board-hill/internal/repository/mocks"
	"github.com/mokcj0825/board-hill/internal/service"
)

// testConn 记录收到的帧
type testConn struct {
	id     string
	mu     sync.Mutex
	frames []dto.Envelope
}

func (c *testConn) ID() string { return c.id }

func (c *testConn) Send(msg []byte) bool {
	var env dto.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.frames = append(c.frames, env)
	c.mu.Unlock()
	return true
}

func (c *testConn) Close() {}

func (c *testConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Event)
	}
	return out
}

func (c *testConn) last(event string) (dto.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Event == event {
			return c.frames[i], true
		}
	}
	return dto.Envelope{}, false
}

func (c *testConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fixture struct {
	gw    *gateway.Gateway
	hub   *hub.Hub
	rooms *service.RoomService
	room  *domain.Room
	host  *domain.Seat
	guest *domain.Seat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	rooms := service.NewRoomService(memory.NewRoomRepository(), nil)
	h := hub.NewHub()
	gw := gateway.New(rooms, h, gateway.Config{JoinAttemptLimit: 5, JoinAttemptWindow: time.Minute})

	room, err := rooms.CreateRoom(ctx)
	require.NoError(t, err)
	host, err := rooms.CreateSeat(ctx, room.ID, "Host")
	require.NoError(t, err)
	guest, err := rooms.CreateSeat(ctx, room.ID, "Guest")
	require.NoError(t, err)
	return &fixture{gw: gw, hub: h, rooms: rooms, room: room, host: host, guest: guest}
}

func (f *fixture) connect(id string) *testConn {
	c := &testConn{id: id}
	f.gw.HandleConnect(c)
	return c
}

func send(gw *gateway.Gateway, c hub.Conn, event string, id int64, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	raw, _ := json.Marshal(dto.Envelope{Event: event, ID: id, Data: payload})
	gw.HandleMessage(c, raw)
}

func ackOf(t *testing.T, c *testConn) map[string]interface{} {
	t.Helper()
	env, ok := c.last(dto.EventAck)
	require.True(t, ok, "expected an ack")
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (f *fixture) join(t *testing.T, c *testConn, seat *domain.Seat) {
	t.Helper()
	send(f.gw, c, dto.EventJoin, 1, dto.JoinRequest{RoomID: f.room.ID, SeatToken: seat.ID})
	f.gw.Wait()
	require.Equal(t, true, ackOf(t, c)["ok"])
}

// --- join ---

func TestGateway_JoinSuccess(t *testing.T) {
	f := newFixture(t)
	host := f.connect("host")
	guest := f.connect("guest")
	f.join(t, host, f.host)
	host.reset()

	send(f.gw, guest, dto.EventJoin, 7, dto.JoinRequest{RoomID: " " + strings.ToLower(f.room.ID) + " ", SeatToken: f.guest.ID})
	f.gw.Wait()

	ack := ackOf(t, guest)
	assert.Equal(t, true, ack["ok"])
	assert.Equal(t, f.room.ID, ack["roomId"])
	assert.Equal(t, "seat-2", ack["seatId"])
	assert.Equal(t, f.guest.DisplayName, ack["displayName"])
	assert.Equal(t, false, ack["isHost"])

	// 加入者先看到自己的 ack，再看到玩家列表
	assert.Equal(t, []string{dto.EventAck, dto.EventPlayers}, guest.events())
	// 其他成员收到 join 系统事件和玩家列表
	assert.Equal(t, []string{dto.EventSystem, dto.EventPlayers}, host.events())

	sys, _ := host.last(dto.EventSystem)
	var ev dto.SystemEvent
	require.NoError(t, json.Unmarshal(sys.Data, &ev))
	assert.Equal(t, dto.SystemJoin, ev.Type)
	assert.Equal(t, "seat-2", ev.By)

	players, _ := guest.last(dto.EventPlayers)
	var pe dto.PlayersEvent
	require.NoError(t, json.Unmarshal(players.Data, &pe))
	require.Len(t, pe.Players, 2)
	assert.Equal(t, "seat-1", pe.Players[0].SeatID)
	assert.Equal(t, "Guest", pe.Players[1].Nickname)

	sess, ok := f.gw.Session("guest")
	require.True(t, ok)
	assert.Equal(t, gateway.StateJoined, sess.State)
	assert.False(t, sess.IsHost)
	assert.Equal(t, f.guest.ID, sess.SeatToken)
}

func TestGateway_HostFlag(t *testing.T) {
	f := newFixture(t)
	host := f.connect("host")
	f.join(t, host, f.host)
	assert.Equal(t, true, ackOf(t, host)["isHost"])
	sess, _ := f.gw.Session("host")
	assert.True(t, sess.IsHost)
}

func TestGateway_JoinFailures(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		data interface{}
		want string
	}{
		{"empty room id", dto.JoinRequest{RoomID: "  ", SeatToken: f.host.ID}, "invalid roomId"},
		{"numeric room id", map[string]interface{}{"roomId": 123, "seatToken": f.host.ID}, "invalid roomId"},
		{"null data", nil, "invalid roomId"},
		{"non-object data", "ABC234", "invalid roomId"},
		{"unknown room", dto.JoinRequest{RoomID: "ZZZZZZ", SeatToken: f.host.ID}, "room_not_found"},
		{"unknown room with numeric token", map[string]interface{}{"roomId": "ZZZZZZ", "seatToken": 42}, "room_not_found"},
		{"wrong token", dto.JoinRequest{RoomID: f.room.ID, SeatToken: "nope"}, "invalid_seat"},
		{"missing token", dto.JoinRequest{RoomID: f.room.ID}, "invalid_seat"},
		{"numeric token", map[string]interface{}{"roomId": f.room.ID, "seatToken": 42}, "invalid_seat"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := f.connect(fmt.Sprintf("c%d", i))
			send(f.gw, c, dto.EventJoin, 3, tc.data)
			ack := ackOf(t, c)
			assert.Equal(t, false, ack["ok"])
			assert.Equal(t, tc.want, ack["error"])

			sess, _ := f.gw.Session(c.id)
			assert.Equal(t, gateway.StateUnauthenticated, sess.State)
			assert.Zero(t, f.hub.Size(f.room.ID))
		})
	}
}

func TestGateway_JoinWithoutData(t *testing.T) {
	f := newFixture(t)
	c := f.connect("c")
	f.gw.HandleMessage(c, []byte(`{"event":"room:join","id":4}`))

	ack := ackOf(t, c)
	assert.Equal(t, false, ack["ok"])
	assert.Equal(t, "invalid roomId", ack["error"])
	sess, _ := f.gw.Session("c")
	assert.Equal(t, gateway.StateUnauthenticated, sess.State)
}

func TestGateway_RejoinWhileJoined(t *testing.T) {
	f := newFixture(t)
	c := f.connect("c")
	f.join(t, c, f.host)
	send(f.gw, c, dto.EventJoin, 2, dto.JoinRequest{RoomID: f.room.ID, SeatToken: f.guest.ID})
	assert.Equal(t, gateway.CodeAlreadyJoined, ackOf(t, c)["error"])
}

func TestGateway_JoinRateLimited(t *testing.T) {
	f := newFixture(t)
	c := f.connect("c")
	for i := 0; i < 5; i++ {
		send(f.gw, c, dto.EventJoin, 1, dto.JoinRequest{RoomID: f.room.ID, SeatToken: "guess"})
		assert.Equal(t, "invalid_seat", ackOf(t, c)["error"])
	}
	send(f.gw, c, dto.EventJoin, 1, dto.JoinRequest{RoomID: f.room.ID, SeatToken: f.host.ID})
	assert.Equal(t, gateway.CodeRateLimited, ackOf(t, c)["error"])
}

func TestGateway_NoAckWithoutID(t *testing.T) {
	f := newFixture(t)
	c := f.connect("c")
	send(f.gw, c, dto.EventJoin, 0, dto.JoinRequest{RoomID: "ZZZZZZ"})
	send(f.gw, c, "room:unknown", 0, struct{}{})
	f.gw.HandleMessage(c, []byte("not json"))
	assert.Empty(t, c.events())
}

// --- message ---

func TestGateway_MessageBroadcastIncludesSender(t *testing.T) {
	f := newFixture(t)
	host, guest := f.connect("host"), f.connect("guest")
	f.join(t, host, f.host)
	f.join(t, guest, f.guest)
	host.reset()
	guest.reset()

	send(f.gw, guest, dto.EventMessage, 9, dto.MessageRequest{RoomID: strings.ToLower(f.room.ID), Message: "hello"})

	for _, c := range []*testConn{host, guest} {
		env, ok := c.last(dto.EventMessage)
		require.True(t, ok, c.id)
		var msg dto.ChatMessage
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, f.guest.DisplayName, msg.From)
		assert.Equal(t, "hello", msg.Message)
		assert.NotZero(t, msg.At)
	}
	assert.Equal(t, true, ackOf(t, guest)["ok"])
}

func TestGateway_MessageGating(t *testing.T) {
	f := newFixture(t)
	outsider := f.connect("outsider")
	send(f.gw, outsider, dto.EventMessage, 1, dto.MessageRequest{RoomID: f.room.ID, Message: "hi"})
	assert.Equal(t, gateway.CodeNotJoined, ackOf(t, outsider)["error"])

	member := f.connect("member")
	f.join(t, member, f.host)
	send(f.gw, member, dto.EventMessage, 2, dto.MessageRequest{RoomID: "OTHER1", Message: "hi"})
	assert.Equal(t, gateway.CodeRoomMismatch, ackOf(t, member)["error"])

	send(f.gw, member, dto.EventMessage, 3, dto.MessageRequest{RoomID: f.room.ID, Message: "   "})
	assert.Equal(t, "invalid_message", ackOf(t, member)["error"])

	send(f.gw, member, dto.EventMessage, 4, dto.MessageRequest{RoomID: "", Message: "hi"})
	assert.Equal(t, "invalid roomId", ackOf(t, member)["error"])

	_, delivered := outsider.last(dto.EventMessage)
	assert.False(t, delivered)
}

// --- disconnect ---

func TestGateway_HostDisconnectClosesRoom(t *testing.T) {
	f := newFixture(t)
	host, guest := f.connect("host"), f.connect("guest")
	f.join(t, host, f.host)
	f.join(t, guest, f.guest)
	host.reset()
	guest.reset()

	f.gw.HandleDisconnect(host)

	env, ok := guest.last(dto.EventClosed)
	require.True(t, ok, "guest must receive room:closed")
	var closed dto.RoomClosedEvent
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	assert.Equal(t, gateway.RoomClosedMessage, closed.Message)
	assert.Empty(t, host.events())

	_, err := f.rooms.GetRoomStatus(context.Background(), f.room.ID)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
	players, err := f.rooms.ListPlayers(context.Background(), f.room.ID)
	require.NoError(t, err)
	assert.Empty(t, players)

	// 访客连接仍在，但已不属于该房间
	assert.Zero(t, f.hub.Size(f.room.ID))
	sess, ok := f.gw.Session("guest")
	require.True(t, ok)
	assert.Equal(t, gateway.StateUnauthenticated, sess.State)
	assert.Empty(t, sess.RoomID)
	_, ok = f.gw.Session("host")
	assert.False(t, ok)
}

func TestGateway_GuestDisconnectNotifiesOthers(t *testing.T) {
	f := newFixture(t)
	host, guest := f.connect("host"), f.connect("guest")
	f.join(t, host, f.host)
	f.join(t, guest, f.guest)
	host.reset()
	guest.reset()

	f.gw.HandleDisconnect(guest)

	env, ok := host.last(dto.EventSystem)
	require.True(t, ok)
	var ev dto.SystemEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, dto.SystemLeave, ev.Type)
	assert.Equal(t, "seat-2", ev.By)
	assert.Empty(t, guest.events())

	status, err := f.rooms.GetRoomStatus(context.Background(), f.room.ID)
	require.NoError(t, err)
	assert.Len(t, status.Seats, 2, "guest seat is kept")
	assert.Equal(t, []string{"host"}, f.hub.Members(f.room.ID))
}

func TestGateway_UnauthenticatedDisconnectIsNoop(t *testing.T) {
	f := newFixture(t)
	host := f.connect("host")
	f.join(t, host, f.host)
	host.reset()

	idle := f.connect("idle")
	f.gw.HandleDisconnect(idle)
	f.gw.HandleDisconnect(idle)

	assert.Empty(t, host.events())
	exists, err := f.rooms.RoomExists(context.Background(), f.room.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

// --- coordinator ---

type failingRooms struct{ gateway.Rooms }

func (failingRooms) ListPlayers(context.Context, string) ([]domain.Seat, error) {
	return nil, errors.New("store down")
}

func (failingRooms) CloseRoom(context.Context, string) error {
	return errors.New("store down")
}

func TestCoordinator_RefreshFailureSendsNothing(t *testing.T) {
	h := hub.NewHub()
	c := &testConn{id: "a"}
	h.Join(c, "ROOM01")
	coord := gateway.NewCoordinator(failingRooms{}, h)

	coord.RefreshPlayerList(context.Background(), "ROOM01")
	assert.Empty(t, c.events())
}

func TestCoordinator_CloseRoomEvictsEvenWhenDeleteFails(t *testing.T) {
	h := hub.NewHub()
	host, guest := &testConn{id: "host"}, &testConn{id: "guest"}
	h.Join(host, "ROOM01")
	h.Join(guest, "ROOM01")
	coord := gateway.NewCoordinator(failingRooms{}, h)

	evicted := coord.CloseRoom(context.Background(), "ROOM01", "host")
	assert.ElementsMatch(t, []string{"host", "guest"}, evicted)
	assert.Equal(t, []string{dto.EventClosed}, guest.events())
	assert.Empty(t, host.events())
	assert.Zero(t, h.Size("ROOM01"))
}

func TestGateway_RecordsRoomActivity(t *testing.T) {
	ctx := context.Background()
	rooms := service.NewRoomService(memory.NewRoomRepository(), nil)
	room, err := rooms.CreateRoom(ctx)
	require.NoError(t, err)
	hostSeat, err := rooms.CreateSeat(ctx, room.ID, "h")
	require.NoError(t, err)

	activity := new(mocks.ActivityRepository)
	activity.On("Touch", mock.Anything, room.ID, mock.AnythingOfType("time.Time")).Return(nil).Twice()
	activity.On("Forget", mock.Anything, room.ID).Return(nil).Once()

	gw := gateway.New(rooms, hub.NewHub(), gateway.Config{Activity: activity})
	host := &testConn{id: "host"}
	gw.HandleConnect(host)
	send(gw, host, dto.EventJoin, 1, dto.JoinRequest{RoomID: room.ID, SeatToken: hostSeat.ID})
	send(gw, host, dto.EventMessage, 2, dto.MessageRequest{RoomID: room.ID, Message: "hi"})
	gw.Wait()
	gw.HandleDisconnect(host)

	activity.AssertExpectations(t)
}

func TestGateway_ForgetRunsAfterPendingActivity(t *testing.T) {
	ctx := context.Background()
	rooms := service.NewRoomService(memory.NewRoomRepository(), nil)
	room, err := rooms.CreateRoom(ctx)
	require.NoError(t, err)
	hostSeat, err := rooms.CreateSeat(ctx, room.ID, "h")
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(op string) {
		mu.Lock()
		order = append(order, op)
		mu.Unlock()
	}

	activity := new(mocks.ActivityRepository)
	activity.On("Touch", mock.Anything, room.ID, mock.AnythingOfType("time.Time")).
		Run(func(mock.Arguments) {
			time.Sleep(50 * time.Millisecond)
			record("touch")
		}).Return(nil).Twice()
	activity.On("Forget", mock.Anything, room.ID).
		Run(func(mock.Arguments) { record("forget") }).Return(nil).Once()

	gw := gateway.New(rooms, hub.NewHub(), gateway.Config{Activity: activity})
	host := &testConn{id: "host"}
	gw.HandleConnect(host)
	send(gw, host, dto.EventJoin, 1, dto.JoinRequest{RoomID: room.ID, SeatToken: hostSeat.ID})
	send(gw, host, dto.EventMessage, 2, dto.MessageRequest{RoomID: room.ID, Message: "hi"})
	// 两次写入仍在进行中
	gw.HandleDisconnect(host)
	gw.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"touch", "touch", "forget"}, order)
	activity.AssertExpectations(t)
}
