package checks

import (
	"context"
	"time"

	"github.com/studytrack/notifyd/internal/monitoring"
)

const defaultCacheTimeout = 2 * time.Second

// Pinger is implemented by cache backends that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache returns a readiness probe for the preference cache. A nil pinger means the
// database-backed cache is in use, which the database probe already covers. A failing
// Redis only degrades readiness because preference reads fall back to the store.
func Cache(pinger Pinger, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		if pinger == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "database cache"}
		}

		start := time.Now()
		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultCacheTimeout))
		defer cancel()

		if err := pinger.Ping(probeCtx); err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis", Duration: time.Since(start)}
	})
}
