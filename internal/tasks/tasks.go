package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型
const (
	TypeStaleRoomScan = "room:stale_scan"
)

// DefaultStaleScanLimit 是单次扫描检查的房间上限
const DefaultStaleScanLimit = 500

// StaleRoomScanPayload 描述一次闲置房间扫描
type StaleRoomScanPayload struct {
	OlderThan time.Duration `json:"olderThan"`
	Limit     int           `json:"limit"`
}

// NewStaleRoomScanTask 创建闲置房间扫描任务
func NewStaleRoomScanTask(olderThan time.Duration, limit int) (*asynq.Task, error) {
	if limit <= 0 {
		limit = DefaultStaleScanLimit
	}
	payload, err := json.Marshal(StaleRoomScanPayload{OlderThan: olderThan, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStaleRoomScan, payload, asynq.MaxRetry(0), asynq.Timeout(time.Minute)), nil
}
