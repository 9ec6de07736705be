package http

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册 HTTP API 路由
func RegisterRoutes(r gin.IRouter, rooms *RoomHandler) {
	r.GET("/health", Health)
	r.POST("/startGame", StartGame)

	r.POST("/rooms", rooms.CreateRoom)
	r.POST("/createRoom", rooms.CreateRoom)
	r.POST("/rooms/:id/seats", rooms.CreateSeat)
	r.POST("/joinRoom", rooms.JoinRoom)
	r.GET("/rooms/:id", rooms.GetRoom)
}
