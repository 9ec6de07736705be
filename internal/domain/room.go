package domain

import "time"

// Room 表示一个短期存在的多人房间，以 6 位房间码作为主键。
type Room struct {
	ID          string    `gorm:"primaryKey;type:char(6)"`     // 房间码，大写，唯一
	HostKey     string    `gorm:"type:varchar(64);not null"`   // 返回给创建者的凭证 (保留，暂不用于鉴权)
	SeatCounter int       `gorm:"not null;default:0"`          // 已分配的座位序号，用于原子分配 seat-<n>
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`        // 创建时间
	Seats       []Seat    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}
