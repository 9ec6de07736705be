// Package events 定义房间生命周期事件，供外部协作方订阅 (审计、统计等)。
// 这些事件不参与房间内的实时广播。
package events

import (
	"context"
	"time"
)

type Type string

const (
	RoomCreated Type = "room.created"
	SeatCreated Type = "seat.created"
	RoomClosed  Type = "room.closed"
)

// Event 是发布到消息总线的生命周期事件
type Event struct {
	Type   Type   `json:"type"`
	RoomID string `json:"roomId"`
	SeatID string `json:"seatId,omitempty"`
	At     int64  `json:"at"` // 毫秒时间戳
}

// New 创建带当前时间戳的事件
func New(t Type, roomID, seatID string) Event {
	return Event{Type: t, RoomID: roomID, SeatID: seatID, At: time.Now().UnixMilli()}
}

// Publisher 发布生命周期事件。实现方应快速返回，失败只需返回错误，由调用方记录日志。
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher 丢弃所有事件 (未配置 NATS_URL 时使用)
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
