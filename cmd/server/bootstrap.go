package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/api"
	"github.com/studytrack/notifyd/internal/app"
	"github.com/studytrack/notifyd/internal/app/maintenance"
	iauth "github.com/studytrack/notifyd/internal/auth"
	"github.com/studytrack/notifyd/internal/cache"
	"github.com/studytrack/notifyd/internal/database"
	"github.com/studytrack/notifyd/internal/eligibility"
	"github.com/studytrack/notifyd/internal/middleware"
	"github.com/studytrack/notifyd/internal/monitoring"
	"github.com/studytrack/notifyd/internal/monitoring/checks"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/push"
	"github.com/studytrack/notifyd/internal/realtime"
	"github.com/studytrack/notifyd/internal/services"
	"github.com/studytrack/notifyd/pkg/logger"
	"github.com/studytrack/notifyd/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB            *gorm.DB
	Redis         *cache.RedisStore
	Hub           *realtime.Hub
	Notifications *services.NotificationService
	Cleaner       *maintenance.Cleaner
	Health        *monitoring.HealthManager
	Router        *gin.Engine
}

// bootstrapRuntime initialises the database, cache, delivery services, background jobs
// and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, generated map[string]bool, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup", zap.Error(shutdownErr))
			}
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	// Another replica may have stored generated secrets first; adopt those.
	if err := app.PersistRuntimeDefaults(ctx, stack.DB, cfg, generated); err != nil {
		return nil, fmt.Errorf("persist runtime defaults: %w", err)
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	var store cache.Store = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Hub = realtime.NewHub(realtime.WithAllowedOrigins(cfg.Server.AllowedOrigins...))

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	prefsSvc, err := services.NewPreferencesService(stack.DB,
		services.WithPreferencesCache(store, cfg.Notifications.PreferencesCacheTTL),
		services.WithPreferencesPublisher(stack.Hub),
		services.WithPreferencesAudit(auditSvc),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise preferences service: %w", err)
	}

	subscriptionSvc, err := services.NewPushSubscriptionService(stack.DB, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise push subscription service: %w", err)
	}

	location, err := cfg.Notifications.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve default timezone: %w", err)
	}

	notificationOpts := []services.NotificationOption{
		services.WithNotificationConfig(cfg.Notifications.ServiceConfig()),
		services.WithNotificationPublisher(stack.Hub),
		services.WithNotificationPreferences(prefsSvc),
		services.WithEligibility(eligibility.New(eligibility.WithLocation(location))),
		services.WithNotificationAudit(auditSvc),
	}

	if cfg.Notifications.Push.Enabled {
		sender, err := push.NewSender(cfg.Notifications.Push.SenderConfig(), subscriptionSvc)
		if err != nil {
			return nil, fmt.Errorf("initialise push sender: %w", err)
		}
		notificationOpts = append(notificationOpts, services.WithDispatcher(notify.ChannelPush, services.NewPushDispatcher(sender)))
		log.Info("web push enabled")
	}

	if cfg.Email.SMTP.Enabled {
		mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		notificationOpts = append(notificationOpts, services.WithDispatcher(notify.ChannelEmail, services.NewEmailDispatcher(mailer, cfg.Notifications.BaseURL)))
		log.Info("email delivery enabled", zap.String("host", cfg.Email.SMTP.Host))
	}

	stack.Notifications, err = services.NewNotificationService(stack.DB, notificationOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	templateSvc, err := services.NewTemplateService(stack.DB, stack.Notifications)
	if err != nil {
		return nil, fmt.Errorf("initialise template service: %w", err)
	}

	tracker := monitoring.NewMaintenanceTracker()
	maint := cfg.Notifications.Maintenance
	stack.Cleaner = maintenance.NewCleaner(
		maintenance.Targets{
			Notifications: stack.Notifications,
			Audit:         auditSvc,
			Push:          subscriptionSvc,
			Cache:         dbStore,
		},
		maintenance.WithTracker(tracker),
		maintenance.WithAuditRetentionDays(maint.AuditRetentionDays),
		maintenance.WithPushRetention(maint.InactivePushRetention),
		maintenance.WithSchedules(maint.ExpirySchedule, maint.AuditSchedule, maint.PushSchedule, maint.CacheSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterLiveness(checks.Realtime(stack.Hub))
	stack.Health.RegisterReadiness(checks.Database(stack.DB, cfg.Monitoring.Health.Timeout))
	stack.Health.RegisterReadiness(checks.Maintenance(tracker, 0, time.Now))
	if stack.Redis != nil {
		stack.Health.RegisterReadiness(checks.Cache(stack.Redis, cfg.Monitoring.Health.Timeout))
	} else {
		stack.Health.RegisterReadiness(checks.Cache(nil, 0))
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		JWT:           jwtSvc,
		Notifications: stack.Notifications,
		Templates:     templateSvc,
		Preferences:   prefsSvc,
		Subscriptions: subscriptionSvc,
		Hub:           stack.Hub,
		Health:        stack.Health,
		RateStore:     middleware.NewCacheRateStore(store),
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, runs a final cleanup pass and releases connections.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		if done := s.Cleaner.Stop().Done(); done != nil {
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
		if _, err := s.Cleaner.RunOnce(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("maintenance cleanup: %w", err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if s.DB != nil {
		errs = multierr.Append(errs, closeDatabase(s.DB))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql db: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
