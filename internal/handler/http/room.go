package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/dto"
	"github.com/mokcj0825/board-hill/internal/service"
)

// RoomHandler 封装了与房间和座位相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

type CreateRoomResponse struct {
	RoomID  string `json:"roomId"`
	HostKey string `json:"hostKey"`
}

// SeatRequest 是创建座位的请求体。/joinRoom 通过 body 传 roomId。
// 字段均可缺省，类型不符时按空字符串处理。
type SeatRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

type CreateSeatResponse struct {
	RoomID      string `json:"roomId"`
	SeatID      string `json:"seatId"`
	SeatToken   string `json:"seatToken"`
	DisplayName string `json:"displayName"`
}

type RoomStatusResponse struct {
	RoomID    string       `json:"roomId"`
	CreatedAt int64        `json:"createdAt"`
	Seats     []dto.Player `json:"seats"`
}

// CreateRoom 处理 POST /rooms 与 POST /createRoom
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	room, err := h.roomService.CreateRoom(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Failed to create room")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{RoomID: room.ID, HostKey: room.HostKey})
}

// CreateSeat 处理 POST /rooms/:id/seats
func (h *RoomHandler) CreateSeat(c *gin.Context) {
	var req SeatRequest
	bindOptional(c, &req)
	h.createSeat(c, c.Param("id"), req.Nickname)
}

// JoinRoom 处理 POST /joinRoom，房间码来自请求体
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req SeatRequest
	bindOptional(c, &req)
	h.createSeat(c, req.RoomID, req.Nickname)
}

func (h *RoomHandler) createSeat(c *gin.Context, roomID, nickname string) {
	seat, err := h.roomService.CreateSeat(c.Request.Context(), roomID, nickname)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Info("Handler.CreateSeat: Failed to create seat")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, CreateSeatResponse{
		RoomID:      seat.RoomID,
		SeatID:      seat.SeatID,
		SeatToken:   seat.ID,
		DisplayName: seat.DisplayName,
	})
}

// GetRoom 处理 GET /rooms/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoomStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, RoomStatusResponse{
		RoomID:    room.ID,
		CreatedAt: room.CreatedAt.UnixMilli(),
		Seats:     dto.PlayersFromSeats(room.Seats),
	})
}

// bindOptional 解析可选的 JSON 请求体，空体或格式错误都按零值处理
func bindOptional(c *gin.Context, v interface{}) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return
	}
	if err := c.ShouldBindJSON(v); err != nil {
		logrus.WithError(err).Debug("Ignoring unparsable request body")
	}
}
