package dto

import (
	"encoding/json"

	"github.com/mokcj0825/board-hill/internal/domain"
)

// 实时通道事件名
const (
	EventJoin    = "room:join"
	EventMessage = "room:message"
	EventSystem  = "room:system"
	EventPlayers = "room:players"
	EventClosed  = "room:closed"
	EventAck     = "ack"
)

// 系统事件类型
const (
	SystemJoin  = "join"
	SystemLeave = "leave"
)

// Envelope 是 WebSocket 文本帧的外层结构。
// ID 非零的请求会收到同 ID 的 ack。
type Envelope struct {
	Event string          `json:"event"`
	ID    int64           `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outgoing 用于编码服务端下发的帧
type outgoing struct {
	Event string      `json:"event"`
	ID    int64       `json:"id,omitempty"`
	Data  interface{} `json:"data"`
}

// Encode 编码一个服务端事件
func Encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outgoing{Event: event, Data: data})
}

// EncodeAck 编码对请求 id 的确认
func EncodeAck(id int64, data interface{}) ([]byte, error) {
	return json.Marshal(outgoing{Event: EventAck, ID: id, Data: data})
}

// JoinRequest room:join 的请求体
type JoinRequest struct {
	RoomID    string `json:"roomId"`
	SeatToken string `json:"seatToken"`
}

// JoinAck 加入成功的确认
type JoinAck struct {
	OK          bool   `json:"ok"`
	RoomID      string `json:"roomId"`
	SeatID      string `json:"seatId"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

// Ack 通用确认，失败时带 error
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// MessageRequest room:message 的请求体
type MessageRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// ChatMessage 广播给房间内所有连接 (包括发送者)
type ChatMessage struct {
	From    string `json:"from"`
	Message string `json:"message"`
	At      int64  `json:"at"`
}

// SystemEvent 加入/离开通知
type SystemEvent struct {
	Type string `json:"type"`
	By   string `json:"by"`
	At   int64  `json:"at"`
}

// Player 是座位在玩家列表中的投影
type Player struct {
	SeatID      string `json:"seatId"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"displayName"`
	JoinedAt    int64  `json:"joinedAt"`
}

type PlayersEvent struct {
	Players []Player `json:"players"`
}

// RoomClosedEvent 在房间删除前发送一次
type RoomClosedEvent struct {
	Message string `json:"message"`
	At      int64  `json:"at"`
}

// PlayerFromSeat 投影单个座位
func PlayerFromSeat(seat domain.Seat) Player {
	return Player{
		SeatID:      seat.SeatID,
		Nickname:    seat.Nickname,
		DisplayName: seat.DisplayName,
		JoinedAt:    seat.JoinedAt.UnixMilli(),
	}
}

// PlayersFromSeats 投影座位列表，空列表编码为 []
func PlayersFromSeats(seats []domain.Seat) []Player {
	players := make([]Player, 0, len(seats))
	for _, s := range seats {
		players = append(players, PlayerFromSeat(s))
	}
	return players
}
