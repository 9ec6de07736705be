package service

import (
	"errors"
	"fmt"
)

// 业务错误。错误文本即对外返回的错误码。
var (
	ErrRoomIDCollision = errors.New("room_id_collision")
	ErrRoomNotFound    = errors.New("room_not_found")
	ErrInvalidSeat     = errors.New("invalid_seat")
	ErrInvalidRoomID   = errors.New("invalid roomId")
	ErrInvalidMessage  = errors.New("invalid_message")
	// ErrStore 匹配所有 *StoreError
	ErrStore = errors.New("db_error")
)

// StoreError 包装与持久化存储通信时发生的任何错误。
// 在本层不做重试。
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrStore) 对任何 StoreError 成立
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Detail 返回给客户端的可读错误详情
func (e *StoreError) Detail() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Err.Error()
}

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
