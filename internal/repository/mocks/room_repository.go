// Package mocks 提供基于 testify/mock 的存储库替身。
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mokcj0825/board-hill/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 Mock 实现。
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindRoom(ctx context.Context, id string, includeSeats bool) (*domain.Room, error) {
	args := m.Called(ctx, id, includeSeats)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *RoomRepository) RoomExists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RoomRepository) NextSeatOrdinal(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *RoomRepository) CreateSeat(ctx context.Context, seat *domain.Seat) error {
	args := m.Called(ctx, seat)
	return args.Error(0)
}

func (m *RoomRepository) ListSeats(ctx context.Context, roomID string) ([]domain.Seat, error) {
	args := m.Called(ctx, roomID)
	seats, _ := args.Get(0).([]domain.Seat)
	return seats, args.Error(1)
}

func (m *RoomRepository) ListRoomsCreatedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Room, error) {
	args := m.Called(ctx, t, limit)
	rooms, _ := args.Get(0).([]domain.Room)
	return rooms, args.Error(1)
}
