package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/app"
	"github.com/studytrack/notifyd/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled || manager == nil {
		r.GET("/health", disabledHealthHandler)
		r.GET("/health/live", disabledHealthHandler)
		r.GET("/health/ready", disabledHealthHandler)
		return
	}

	timeout := cfg.Monitoring.Health.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	registerHealthEndpoints(r, manager, timeout)
}

func registerHealthEndpoints(router gin.IRouter, manager *monitoring.HealthManager, timeout time.Duration) {
	router.GET("/health", func(c *gin.Context) {
		report := evaluate(c, timeout, manager.EvaluateReadiness)
		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": time.Now().UTC(),
		})
	})

	router.GET("/health/live", func(c *gin.Context) {
		writeHealthReport(c, evaluate(c, timeout, manager.EvaluateLiveness))
	})

	router.GET("/health/ready", func(c *gin.Context) {
		writeHealthReport(c, evaluate(c, timeout, manager.EvaluateReadiness))
	})
}

func evaluate(c *gin.Context, timeout time.Duration, probe func(ctx context.Context) monitoring.HealthReport) monitoring.HealthReport {
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()
	return probe(ctx)
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	status := http.StatusOK
	if !report.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}
