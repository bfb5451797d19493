package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/handlers"
	"github.com/studytrack/notifyd/web"
)

func registerPushRoutes(api *gin.RouterGroup, handler *handlers.PushHandler) {
	group := api.Group("/push")
	{
		group.GET("/vapid-key", handler.VAPIDKey)
		group.POST("/subscriptions", handler.Subscribe)
		group.DELETE("/subscriptions", handler.Unsubscribe)
	}
}

// registerServiceWorkerRoute serves the push service worker from the site root so its
// scope covers the whole origin.
func registerServiceWorkerRoute(r *gin.Engine) error {
	script, err := web.ServiceWorker()
	if err != nil {
		return fmt.Errorf("load service worker: %w", err)
	}
	r.GET("/"+web.ServiceWorkerPath, func(c *gin.Context) {
		c.Header("Service-Worker-Allowed", "/")
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "application/javascript; charset=utf-8", script)
	})
	return nil
}
