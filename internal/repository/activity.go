package repository

import (
	"context"
	"time"
)

// ActivityRepository 记录房间最近一次活动时间 (加入、发言)。
// 仅用于闲置房间报告，不影响房间生命周期。
type ActivityRepository interface {
	// Touch 记录房间在 at 时刻有活动
	Touch(ctx context.Context, roomID string, at time.Time) error
	// LastActive 返回最近活动时间，没有记录时返回 ErrNotFound
	LastActive(ctx context.Context, roomID string) (time.Time, error)
	// Forget 删除房间的活动记录
	Forget(ctx context.Context, roomID string) error
}
