package repository

import (
	"context"
	"time"

	"github.com/mokcj0825/board-hill/internal/domain"
)

// RoomRepository 定义了房间与座位的存储操作。
type RoomRepository interface {
	// FindRoom 根据房间码查找房间，includeSeats 为 true 时一并加载座位 (按 JoinedAt 排序)。
	// 房间不存在时返回 ErrRoomNotFound。
	FindRoom(ctx context.Context, id string, includeSeats bool) (*domain.Room, error)

	// RoomExists 检查房间码当前是否存在。
	RoomExists(ctx context.Context, id string) (bool, error)

	// CreateRoom 保存新房间。房间码冲突时返回 ErrDuplicateEntry。
	CreateRoom(ctx context.Context, room *domain.Room) error

	// DeleteRoom 删除房间并级联删除其所有座位。房间不存在时不报错。
	DeleteRoom(ctx context.Context, id string) error

	// NextSeatOrdinal 原子地为房间分配下一个座位序号 (从 1 开始)。
	// 房间不存在时返回 ErrRoomNotFound。
	NextSeatOrdinal(ctx context.Context, roomID string) (int, error)

	// CreateSeat 保存新座位。
	CreateSeat(ctx context.Context, seat *domain.Seat) error

	// ListSeats 返回房间当前的全部座位，按加入顺序排列。
	ListSeats(ctx context.Context, roomID string) ([]domain.Seat, error)

	// ListRoomsCreatedBefore 返回创建时间早于 t 的房间 (不含座位)，用于过期房间报告。
	ListRoomsCreatedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Room, error)
}
