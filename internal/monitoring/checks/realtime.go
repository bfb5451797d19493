package checks

import (
	"context"
	"fmt"

	"github.com/studytrack/notifyd/internal/monitoring"
)

// RealtimeObserver exposes the live subscription count of the realtime hub.
type RealtimeObserver interface {
	ActiveSubscriptions() int
}

// Realtime reports the number of live sessions attached to the hub.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(context.Context) monitoring.ProbeResult {
		if observer == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime hub unavailable"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d active subscriptions", observer.ActiveSubscriptions()),
		}
	})
}
