// Package idgen 生成房间码、座位令牌和临时玩家 ID。
// 所有随机源都来自 crypto/rand (经 go-nanoid)。
package idgen

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// RoomCodeAlphabet 去掉了容易混淆的 I、O、0、1。
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLength   = 6

	TokenAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	SeatTokenLength = 32
	PlayerIDLength  = 24
)

// RoomCode 生成 6 位房间码。不做唯一性检查，由调用方负责。
func RoomCode() (string, error) {
	code, err := gonanoid.Generate(RoomCodeAlphabet, RoomCodeLength)
	if err != nil {
		return "", fmt.Errorf("idgen: generate room code: %w", err)
	}
	return code, nil
}

// SeatToken 生成 32 位座位令牌。房主的 hostKey 也使用同样的格式。
func SeatToken() (string, error) {
	token, err := gonanoid.Generate(TokenAlphabet, SeatTokenLength)
	if err != nil {
		return "", fmt.Errorf("idgen: generate seat token: %w", err)
	}
	return token, nil
}

// PlayerID 生成 /startGame 返回的临时玩家 ID。
func PlayerID() (string, error) {
	id, err := gonanoid.Generate(TokenAlphabet, PlayerIDLength)
	if err != nil {
		return "", fmt.Errorf("idgen: generate player id: %w", err)
	}
	return id, nil
}
