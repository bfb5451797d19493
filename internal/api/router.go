package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/app"
	iauth "github.com/studytrack/notifyd/internal/auth"
	"github.com/studytrack/notifyd/internal/handlers"
	"github.com/studytrack/notifyd/internal/middleware"
	"github.com/studytrack/notifyd/internal/monitoring"
	"github.com/studytrack/notifyd/internal/realtime"
	"github.com/studytrack/notifyd/internal/services"
)

// Dependencies carries the services the HTTP surface is built on. They are constructed
// once during bootstrap and shared with background jobs.
type Dependencies struct {
	JWT           *iauth.JWTService
	Notifications *services.NotificationService
	Templates     *services.TemplateService
	Preferences   *services.PreferencesService
	Subscriptions *services.PushSubscriptionService
	Hub           *realtime.Hub
	Health        *monitoring.HealthManager
	RateStore     middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies, cfg *app.Config) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	registerHealthRoutes(r, cfg, deps.Health)
	registerMetricsRoutes(r, cfg)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))
	if limit := cfg.Server.RateLimit; limit.Enabled && deps.RateStore != nil {
		api.Use(middleware.RateLimit(deps.RateStore, limit.Requests, limit.Window))
	}

	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications, deps.Templates)
	if err != nil {
		return nil, err
	}
	preferencesHandler, err := handlers.NewPreferencesHandler(deps.Preferences)
	if err != nil {
		return nil, err
	}
	registerNotificationRoutes(api, notificationHandler, preferencesHandler)

	publicKey := ""
	if cfg.Notifications.Push.Enabled {
		publicKey = strings.TrimSpace(cfg.Notifications.Push.VAPIDPublicKey)
	}
	pushHandler, err := handlers.NewPushHandler(deps.Subscriptions, publicKey)
	if err != nil {
		return nil, err
	}
	registerPushRoutes(api, pushHandler)
	if publicKey != "" {
		if err := registerServiceWorkerRoute(r); err != nil {
			return nil, err
		}
	}

	registerRealtimeRoutes(api, handlers.NewRealtimeHandler(deps.Hub, realtime.StreamNotifications))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
