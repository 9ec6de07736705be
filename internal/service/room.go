package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/domain"
	"github.com/mokcj0825/board-hill/internal/events"
	"github.com/mokcj0825/board-hill/internal/idgen"
	"github.com/mokcj0825/board-hill/internal/repository"
)

const (
	maxRoomCodeAttempts = 5
	MaxNicknameLength   = 32
)

// RoomService 负责房间与座位的生命周期：创建房间、分配座位、查询状态、关闭房间。
type RoomService struct {
	roomRepo  repository.RoomRepository
	publisher events.Publisher
}

// NewRoomService 创建 RoomService 实例。publisher 为 nil 时不发布生命周期事件。
func NewRoomService(roomRepo repository.RoomRepository, publisher events.Publisher) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &RoomService{roomRepo: roomRepo, publisher: publisher}
}

// NormalizeRoomID 去除首尾空白并转为大写
func NormalizeRoomID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// NormalizeNickname 去除首尾空白并截断到 MaxNicknameLength 个字符
func NormalizeNickname(raw string) string {
	nick := strings.TrimSpace(raw)
	if utf8.RuneCountInString(nick) > MaxNicknameLength {
		nick = strings.TrimSpace(string([]rune(nick)[:MaxNicknameLength]))
	}
	return nick
}

// CreateRoom 生成唯一房间码并保存新房间，最多尝试 maxRoomCodeAttempts 次。
func (s *RoomService) CreateRoom(ctx context.Context) (*domain.Room, error) {
	logCtx := logrus.WithField("operation", "CreateRoom")

	for attempt := 1; attempt <= maxRoomCodeAttempts; attempt++ {
		code, err := idgen.RoomCode()
		if err != nil {
			return nil, err
		}
		exists, err := s.roomRepo.RoomExists(ctx, code)
		if err != nil {
			logCtx.WithError(err).WithField("room_id", code).Error("Failed to check room code uniqueness")
			return nil, storeError("check room code", err)
		}
		if exists {
			logCtx.WithField("room_id", code).Warnf("Room code already in use, retrying (attempt %d)", attempt)
			continue
		}

		hostKey, err := idgen.SeatToken()
		if err != nil {
			return nil, err
		}
		room := &domain.Room{ID: code, HostKey: hostKey}
		if err := s.roomRepo.CreateRoom(ctx, room); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				// 检查与插入之间被其他请求抢占
				logCtx.WithField("room_id", code).Warnf("Room code taken concurrently, retrying (attempt %d)", attempt)
				continue
			}
			logCtx.WithError(err).WithField("room_id", code).Error("Failed to save new room")
			return nil, storeError("create room", err)
		}

		s.publish(ctx, events.New(events.RoomCreated, room.ID, ""))
		logCtx.WithField("room_id", room.ID).Info("Room created")
		return room, nil
	}

	logCtx.Errorf("Failed to generate a unique room code after %d attempts", maxRoomCodeAttempts)
	return nil, ErrRoomIDCollision
}

// CreateSeat 在房间中创建新座位并返回带令牌的座位。
// 座位序号由存储层原子分配，并发加入不会产生重复的 seat-<n>。
func (s *RoomService) CreateSeat(ctx context.Context, rawRoomID, rawNickname string) (*domain.Seat, error) {
	roomID := NormalizeRoomID(rawRoomID)
	nickname := NormalizeNickname(rawNickname)
	logCtx := logrus.WithFields(logrus.Fields{"operation": "CreateSeat", "room_id": roomID})
	if roomID == "" {
		return nil, ErrRoomNotFound
	}

	ordinal, err := s.roomRepo.NextSeatOrdinal(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Room not found")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to allocate seat ordinal")
		return nil, storeError("allocate seat ordinal", err)
	}

	token, err := idgen.SeatToken()
	if err != nil {
		return nil, err
	}
	seat := &domain.Seat{
		ID:          token,
		SeatID:      domain.SeatLabel(ordinal),
		Nickname:    nickname,
		DisplayName: domain.DisplayName(nickname, token),
		RoomID:      roomID,
	}
	logCtx = logCtx.WithField("seat_id", seat.SeatID)

	if err := s.roomRepo.CreateSeat(ctx, seat); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Room deleted before seat could be saved")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to save seat")
		return nil, storeError("create seat", err)
	}

	s.publish(ctx, events.New(events.SeatCreated, roomID, seat.SeatID))
	logCtx.Info("Seat created")
	return seat, nil
}

// GetRoomStatus 返回房间及其全部座位
func (s *RoomService) GetRoomStatus(ctx context.Context, rawRoomID string) (*domain.Room, error) {
	roomID := NormalizeRoomID(rawRoomID)
	if roomID == "" {
		return nil, ErrRoomNotFound
	}
	room, err := s.roomRepo.FindRoom(ctx, roomID, true)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("GetRoomStatus: repository error")
		return nil, storeError("find room", err)
	}
	return room, nil
}

// ResolveSeat 在已规范化的房间中查找与令牌匹配的座位。
func (s *RoomService) ResolveSeat(ctx context.Context, roomID, seatToken string) (*domain.Seat, error) {
	room, err := s.roomRepo.FindRoom(ctx, roomID, true)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, storeError("find room", err)
	}
	if seatToken == "" {
		return nil, ErrInvalidSeat
	}
	var found *domain.Seat
	for i := range room.Seats {
		if subtle.ConstantTimeCompare([]byte(room.Seats[i].ID), []byte(seatToken)) == 1 {
			found = &room.Seats[i]
		}
	}
	if found == nil {
		return nil, ErrInvalidSeat
	}
	return found, nil
}

// RoomExists 检查房间是否仍然存在
func (s *RoomService) RoomExists(ctx context.Context, roomID string) (bool, error) {
	exists, err := s.roomRepo.RoomExists(ctx, roomID)
	if err != nil {
		return false, storeError("check room", err)
	}
	return exists, nil
}

// ListPlayers 重新读取房间当前的座位列表
func (s *RoomService) ListPlayers(ctx context.Context, roomID string) ([]domain.Seat, error) {
	seats, err := s.roomRepo.ListSeats(ctx, roomID)
	if err != nil {
		return nil, storeError("list seats", err)
	}
	return seats, nil
}

// CloseRoom 删除房间 (级联删除座位)
func (s *RoomService) CloseRoom(ctx context.Context, roomID string) error {
	if err := s.roomRepo.DeleteRoom(ctx, roomID); err != nil {
		return storeError("delete room", err)
	}
	s.publish(ctx, events.New(events.RoomClosed, roomID, ""))
	logrus.WithField("room_id", roomID).Info("Room closed and deleted")
	return nil
}

func (s *RoomService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event":   ev.Type,
			"room_id": ev.RoomID,
		}).Warn("Failed to publish lifecycle event")
	}
}
