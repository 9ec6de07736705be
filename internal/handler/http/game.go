package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/idgen"
	"github.com/mokcj0825/board-hill/internal/service"
)

type StartGameRequest struct {
	Nickname string `json:"nickname"`
}

type StartGameResponse struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// Health 处理 GET /health
func Health(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"ok": true})
}

// StartGame 处理 POST /startGame，签发一个临时玩家 ID (不落库)
func StartGame(c *gin.Context) {
	var req StartGameRequest
	bindOptional(c, &req)
	playerID, err := idgen.PlayerID()
	if err != nil {
		logrus.WithError(err).Error("Handler.StartGame: Failed to generate player id")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, StartGameResponse{
		PlayerID: playerID,
		Nickname: service.NormalizeNickname(req.Nickname),
	})
}
