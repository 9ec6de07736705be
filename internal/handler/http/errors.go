package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/service"
)

// HandleServiceError 将业务错误映射为 HTTP 响应
func HandleServiceError(c *gin.Context, err error) {
	var storeErr *service.StoreError
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, service.ErrRoomNotFound.Error())
	case errors.Is(err, service.ErrRoomIDCollision):
		ErrorResponse(c, http.StatusInternalServerError, service.ErrRoomIDCollision.Error())
	case errors.Is(err, service.ErrInvalidRoomID):
		ErrorResponse(c, http.StatusBadRequest, "invalid_room_id")
	case errors.As(err, &storeErr):
		ErrorDetailResponse(c, http.StatusInternalServerError, service.ErrStore.Error(), storeErr.Detail())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "internal_error")
	}
}
