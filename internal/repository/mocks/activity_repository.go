package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// ActivityRepository 是 repository.ActivityRepository 的 Mock 实现。
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Touch(ctx context.Context, roomID string, at time.Time) error {
	args := m.Called(ctx, roomID, at)
	return args.Error(0)
}

func (m *ActivityRepository) LastActive(ctx context.Context, roomID string) (time.Time, error) {
	args := m.Called(ctx, roomID)
	at, _ := args.Get(0).(time.Time)
	return at, args.Error(1)
}

func (m *ActivityRepository) Forget(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}
