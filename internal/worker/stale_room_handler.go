package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/repository"
	"github.com/mokcj0825/board-hill/internal/tasks"
)

// GroupSizer 返回房间广播组当前的连接数，由 *hub.Hub 实现
type GroupSizer interface {
	Size(groupID string) int
}

// StaleRoom 是一条闲置房间报告
type StaleRoom struct {
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time // 零值表示没有活动记录
}

// StaleRoomHandler 报告创建时间早于阈值、无在线连接且近期无活动的房间。
// 只记录日志，不删除任何数据。
type StaleRoomHandler struct {
	roomRepo repository.RoomRepository
	activity repository.ActivityRepository
	groups   GroupSizer
	now      func() time.Time
}

// NewStaleRoomHandler 创建 Handler 实例，activity 可为 nil
func NewStaleRoomHandler(roomRepo repository.RoomRepository, activity repository.ActivityRepository, groups GroupSizer) *StaleRoomHandler {
	if roomRepo == nil || groups == nil {
		panic("RoomRepository and GroupSizer cannot be nil for StaleRoomHandler")
	}
	return &StaleRoomHandler{roomRepo: roomRepo, activity: activity, groups: groups, now: time.Now}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *StaleRoomHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	logCtx := logrus.WithFields(logrus.Fields{"task_id": taskID, "task_type": t.Type()})

	var payload tasks.StaleRoomScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	stale, err := h.Scan(ctx, payload.OlderThan, payload.Limit)
	if err != nil {
		logCtx.WithError(err).Error("Stale room scan failed")
		return err
	}
	for _, r := range stale {
		entry := logCtx.WithFields(logrus.Fields{
			"room_id":    r.RoomID,
			"created_at": r.CreatedAt.Format(time.RFC3339),
		})
		if !r.LastActive.IsZero() {
			entry = entry.WithField("last_active", r.LastActive.Format(time.RFC3339))
		}
		entry.Warn("Stale room detected")
	}
	logCtx.WithField("stale_count", len(stale)).Info("Stale room scan finished")
	return nil
}

// Scan 返回闲置房间列表
func (h *StaleRoomHandler) Scan(ctx context.Context, olderThan time.Duration, limit int) ([]StaleRoom, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("olderThan must be positive, got %s", olderThan)
	}
	cutoff := h.now().Add(-olderThan)
	rooms, err := h.roomRepo.ListRoomsCreatedBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	stale := make([]StaleRoom, 0)
	for _, room := range rooms {
		if h.groups.Size(room.ID) > 0 {
			continue
		}
		report := StaleRoom{RoomID: room.ID, CreatedAt: room.CreatedAt}
		if h.activity != nil {
			last, err := h.activity.LastActive(ctx, room.ID)
			switch {
			case err == nil:
				if last.After(cutoff) {
					continue
				}
				report.LastActive = last
			case errors.Is(err, repository.ErrNotFound):
			default:
				logrus.WithError(err).WithField("room_id", room.ID).Warn("Failed to read room activity, reporting by age only")
			}
		}
		stale = append(stale, report)
	}
	return stale, nil
}
