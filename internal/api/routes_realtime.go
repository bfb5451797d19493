package api

import (
	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/handlers"
)

func registerRealtimeRoutes(api *gin.RouterGroup, handler *handlers.RealtimeHandler) {
	api.GET("/realtime", handler.Stream)
	api.GET("/realtime/:stream", handler.Stream)
}
