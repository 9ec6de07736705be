// Package memory 提供进程内的 RoomRepository 实现，用于开发模式 (STORE_DRIVER=memory) 和测试。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mokcj0825/board-hill/internal/domain"
	"github.com/mokcj0825/board-hill/internal/repository"
)

type roomRecord struct {
	room  domain.Room
	seats []domain.Seat
}

// RoomRepository 用互斥锁保护的 map 保存房间和座位。
type RoomRepository struct {
	mu     sync.Mutex
	rooms  map[string]*roomRecord
	tokens map[string]string // seat token -> room id
	now    func() time.Time
}

// NewRoomRepository 创建空的内存存储库
func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		rooms:  make(map[string]*roomRecord),
		tokens: make(map[string]string),
		now:    time.Now,
	}
}

func copySeats(seats []domain.Seat) []domain.Seat {
	out := make([]domain.Seat, len(seats))
	copy(out, seats)
	return out
}

func (r *RoomRepository) FindRoom(ctx context.Context, id string, includeSeats bool) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	room := rec.room
	if includeSeats {
		room.Seats = copySeats(rec.seats)
	}
	return &room, nil
}

func (r *RoomRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[id]
	return ok, nil
}

func (r *RoomRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[room.ID]; exists {
		return repository.ErrDuplicateEntry
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = r.now()
	}
	stored := *room
	stored.Seats = nil
	r.rooms[room.ID] = &roomRecord{room: stored}
	return nil
}

func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rooms[id]
	if !ok {
		return nil
	}
	for _, s := range rec.seats {
		delete(r.tokens, s.ID)
	}
	delete(r.rooms, id)
	return nil
}

func (r *RoomRepository) NextSeatOrdinal(ctx context.Context, roomID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rooms[roomID]
	if !ok {
		return 0, repository.ErrRoomNotFound
	}
	rec.room.SeatCounter++
	return rec.room.SeatCounter, nil
}

func (r *RoomRepository) CreateSeat(ctx context.Context, seat *domain.Seat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rooms[seat.RoomID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	if _, taken := r.tokens[seat.ID]; taken {
		return repository.ErrDuplicateEntry
	}
	for _, s := range rec.seats {
		if s.SeatID == seat.SeatID {
			return repository.ErrDuplicateEntry
		}
	}
	if seat.JoinedAt.IsZero() {
		seat.JoinedAt = r.now()
	}
	rec.seats = append(rec.seats, *seat)
	r.tokens[seat.ID] = seat.RoomID
	return nil
}

func (r *RoomRepository) ListSeats(ctx context.Context, roomID string) ([]domain.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rooms[roomID]
	if !ok {
		return []domain.Seat{}, nil
	}
	return copySeats(rec.seats), nil
}

func (r *RoomRepository) ListRoomsCreatedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	out := make([]domain.Room, 0)
	for _, rec := range r.rooms {
		if rec.room.CreatedAt.Before(t) {
			out = append(out, rec.room)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
