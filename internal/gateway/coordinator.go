package gateway

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/dto"
)

// RoomClosedMessage 随 room:closed 下发
const RoomClosedMessage = "The host has left. This room is closed."

// Coordinator 向房间广播玩家列表，并执行房主断开时的关闭流程。
type Coordinator struct {
	rooms  Rooms
	groups Registry
}

func NewCoordinator(rooms Rooms, groups Registry) *Coordinator {
	return &Coordinator{rooms: rooms, groups: groups}
}

// RefreshPlayerList 重新读取座位并向整个组推送 room:players。
// 读取失败只记录日志，不发送事件。
func (c *Coordinator) RefreshPlayerList(ctx context.Context, roomID string) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "RefreshPlayerList"})
	seats, err := c.rooms.ListPlayers(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to load players, skipping refresh")
		return
	}
	msg, err := dto.Encode(dto.EventPlayers, dto.PlayersEvent{Players: dto.PlayersFromSeats(seats)})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal players event")
		return
	}
	n := c.groups.Broadcast(roomID, msg, "")
	logCtx.WithField("recipient_count", n).Debug("Player list pushed")
}

// CloseRoom 先通知组内成员房间关闭，再删除房间并解散广播组。
// 返回被移出组的连接 ID。删除失败只记录日志。
func (c *Coordinator) CloseRoom(ctx context.Context, roomID, hostConnID string) []string {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "CloseRoom"})

	msg, err := dto.Encode(dto.EventClosed, dto.RoomClosedEvent{
		Message: RoomClosedMessage,
		At:      time.Now().UnixMilli(),
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal room closed event")
	} else {
		c.groups.Broadcast(roomID, msg, hostConnID)
	}

	if err := c.rooms.CloseRoom(ctx, roomID); err != nil {
		logCtx.WithError(err).Error("Failed to delete room during host disconnect")
	}

	evicted := c.groups.Evict(roomID)
	logCtx.WithField("evicted", len(evicted)).Info("Room closed by host disconnect")
	return evicted
}
