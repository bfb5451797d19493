package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/studytrack/notifyd/internal/auth"
	"github.com/studytrack/notifyd/internal/handlers"
	"github.com/studytrack/notifyd/internal/middleware"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler, prefs *handlers.PreferencesHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread-count", handler.UnreadCount)
		group.GET("/templates", handler.ListTemplates)
		group.POST("/read", handler.MarkRead)
		group.POST("/read-all", handler.MarkAllRead)

		group.GET("/preferences", prefs.Get)
		group.PATCH("/preferences", prefs.Update)

		// Producer API
		send := middleware.RequireScope(iauth.ScopeSend)
		group.POST("", send, handler.Create)
		group.POST("/template", send, handler.CreateFromTemplate)
		group.POST("/bulk", send, handler.SendBulk)

		group.GET("/:id", handler.Get)
		group.POST("/:id/read", handler.MarkOneRead)
		group.POST("/:id/dismiss", handler.Dismiss)
		group.DELETE("/:id", handler.Delete)
	}
}
