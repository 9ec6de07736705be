package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/mokcj0825/board-hill/internal/domain"
	"github.com/mokcj0825/board-hill/internal/repository"
)

// MySQL 错误码
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrNoReferencedRow = 1452
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func orderSeats(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at ASC").Order("seat_id ASC")
}

// FindRoom 根据房间码查找房间
func (r *GormRoomRepository) FindRoom(ctx context.Context, id string, includeSeats bool) (*domain.Room, error) {
	var room domain.Room
	q := r.db.WithContext(ctx)
	if includeSeats {
		q = q.Preload("Seats", orderSeats)
	}
	err := q.Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room '%s': %w", id, err)
	}
	return &room, nil
}

// RoomExists 检查房间码是否存在
func (r *GormRoomRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by id '%s': %w", id, err)
	}
	return count > 0, nil
}

// CreateRoom 插入新房间
func (r *GormRoomRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Omit("Seats").Create(room).Error; err != nil {
		if isMySQLError(err, mysqlErrDuplicateEntry) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room '%s': %w", room.ID, err)
	}
	return nil
}

// DeleteRoom 在同一事务中删除座位和房间
func (r *GormRoomRepository) DeleteRoom(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&domain.Seat{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Room{}).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: delete room '%s': %w", id, err)
	}
	return nil
}

// NextSeatOrdinal 在事务中自增 seat_counter 并读回新值。
// UPDATE 持有行锁，并发的调用会串行化，序号不会重复。
func (r *GormRoomRepository) NextSeatOrdinal(ctx context.Context, roomID string) (int, error) {
	var ordinal int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Room{}).
			Where("id = ?", roomID).
			UpdateColumn("seat_counter", gorm.Expr("seat_counter + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrRoomNotFound
		}
		return tx.Model(&domain.Room{}).Select("seat_counter").Where("id = ?", roomID).Row().Scan(&ordinal)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("gorm: next seat ordinal for room '%s': %w", roomID, err)
	}
	return ordinal, nil
}

// CreateSeat 插入新座位
func (r *GormRoomRepository) CreateSeat(ctx context.Context, seat *domain.Seat) error {
	if err := r.db.WithContext(ctx).Create(seat).Error; err != nil {
		switch {
		case isMySQLError(err, mysqlErrDuplicateEntry):
			return repository.ErrDuplicateEntry
		case isMySQLError(err, mysqlErrNoReferencedRow):
			// 房间在分配序号后被删除
			return repository.ErrRoomNotFound
		}
		return fmt.Errorf("gorm: create seat %s in room '%s': %w", seat.SeatID, seat.RoomID, err)
	}
	return nil
}

// ListSeats 返回房间的全部座位
func (r *GormRoomRepository) ListSeats(ctx context.Context, roomID string) ([]domain.Seat, error) {
	var seats []domain.Seat
	err := orderSeats(r.db.WithContext(ctx)).Where("room_id = ?", roomID).Find(&seats).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list seats for room '%s': %w", roomID, err)
	}
	return seats, nil
}

// ListRoomsCreatedBefore 查询较早创建的房间
func (r *GormRoomRepository) ListRoomsCreatedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Room, error) {
	var rooms []domain.Room
	q := r.db.WithContext(ctx).Where("created_at < ?", t).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("gorm: list rooms created before %s: %w", t.Format(time.RFC3339), err)
	}
	return rooms, nil
}

func isMySQLError(err error, number uint16) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == number
}
