package domain

import (
	"fmt"
	"strings"
	"time"
)

// HostSeatID 是房间中第一个座位的标签。
// 房主身份由创建顺序决定，不单独存储标志位。
const HostSeatID = "seat-1"

// Seat 表示玩家在某个房间内的座位记录。
// ID 即 seat token，是实时通道的 bearer 凭证。
type Seat struct {
	ID          string    `gorm:"primaryKey;type:char(32)"`
	SeatID      string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_room_seat"`
	Nickname    string    `gorm:"type:varchar(128);not null;default:''"`
	DisplayName string    `gorm:"type:varchar(160);not null;default:''"`
	RoomID      string    `gorm:"type:char(6);not null;index;uniqueIndex:idx_room_seat"`
	JoinedAt    time.Time `gorm:"autoCreateTime"`
}

// IsHost 报告该座位是否为房主座位 (seat-1)。
func (s *Seat) IsHost() bool {
	return s.SeatID == HostSeatID
}

// SeatLabel 根据序号生成座位标签，例如 seat-3。
func SeatLabel(ordinal int) string {
	return fmt.Sprintf("seat-%d", ordinal)
}

// DisplayName 返回 "<nickname>#<token 前 4 位>"。
// 在创建座位时计算一次并持久化。
func DisplayName(nickname, seatToken string) string {
	suffix := seatToken
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return strings.TrimSpace(nickname) + "#" + suffix
}
