package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/studytrack/notifyd/internal/monitoring"
	"github.com/studytrack/notifyd/pkg/logger"
	"github.com/studytrack/notifyd/pkg/metrics"
)

// Job names, also used as metric labels.
const (
	JobNotificationExpiry = "notification_expiry"
	JobAuditRetention     = "audit_retention"
	JobPushPrune          = "push_prune"
	JobCachePurge         = "cache_purge"
)

const (
	defaultAuditRetentionDays = 90
	defaultPushRetention      = 30 * 24 * time.Hour
	defaultExpirySpec         = "@every 15m"
	defaultAuditSpec          = "@daily"
	defaultPushSpec           = "@daily"
	defaultCacheSpec          = "@hourly"
)

// NotificationExpirer deletes notifications past their expiry.
type NotificationExpirer interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// AuditPruner removes audit entries older than the retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// PushPruner removes push subscriptions that stayed inactive for too long.
type PushPruner interface {
	PruneInactive(ctx context.Context, retention time.Duration) (int64, error)
}

// CachePurger drops expired rows of the database-backed cache.
type CachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Targets lists what the Cleaner maintains. Nil targets are skipped.
type Targets struct {
	Notifications NotificationExpirer
	Audit         AuditPruner
	Push          PushPruner
	Cache         CachePurger
}

// Cleaner runs the periodic housekeeping of the notification store on a cron schedule.
type Cleaner struct {
	targets       Targets
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	tracker       *monitoring.MaintenanceTracker
	retention     int
	pushRetention time.Duration

	expirySchedule string
	auditSchedule  string
	pushSchedule   string
	cacheSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTracker records every run so health probes can report on it.
func WithTracker(tracker *monitoring.MaintenanceTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithPushRetention adjusts how long inactive push subscriptions are kept.
func WithPushRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.pushRetention = retention
		}
	}
}

// WithSchedules overrides cron specifications. Empty values keep the defaults.
func WithSchedules(expiry, audit, push, cache string) Option {
	return func(cleaner *Cleaner) {
		if expiry != "" {
			cleaner.expirySchedule = expiry
		}
		if audit != "" {
			cleaner.auditSchedule = audit
		}
		if push != "" {
			cleaner.pushSchedule = push
		}
		if cache != "" {
			cleaner.cacheSchedule = cache
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(targets Targets, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		targets:        targets,
		now:            time.Now,
		retention:      defaultAuditRetentionDays,
		pushRetention:  defaultPushRetention,
		expirySchedule: defaultExpirySpec,
		auditSchedule:  defaultAuditSpec,
		pushSchedule:   defaultPushSpec,
		cacheSchedule:  defaultCacheSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.targets.Notifications != nil {
		jobs = append(jobs, job{JobNotificationExpiry, c.expirySchedule, c.targets.Notifications.CleanupExpired})
	}
	if c.targets.Audit != nil {
		jobs = append(jobs, job{JobAuditRetention, c.auditSchedule, func(ctx context.Context) (int64, error) {
			return c.targets.Audit.CleanupOlderThan(ctx, c.retention)
		}})
	}
	if c.targets.Push != nil {
		jobs = append(jobs, job{JobPushPrune, c.pushSchedule, func(ctx context.Context) (int64, error) {
			return c.targets.Push.PruneInactive(ctx, c.pushRetention)
		}})
	}
	if c.targets.Cache != nil {
		jobs = append(jobs, job{JobCachePurge, c.cacheSchedule, func(ctx context.Context) (int64, error) {
			return c.targets.Cache.PurgeExpired(ctx, c.now().UTC())
		}})
	}
	return jobs
}

// Start registers cleanup jobs with the cron scheduler and launches it when at least one
// job is configured.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		if c.tracker != nil {
			c.tracker.Register(j.name)
		}
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_, _ = c.execute(context.Background(), j)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially and returns the rows
// removed per job.
func (c *Cleaner) RunOnce(ctx context.Context) (map[string]int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	removed := make(map[string]int64)
	var errs error
	for _, j := range c.jobs() {
		n, err := c.execute(ctx, j)
		removed[j.name] = n
		errs = multierr.Append(errs, err)
	}
	return removed, errs
}

func (c *Cleaner) execute(ctx context.Context, j job) (int64, error) {
	removed, err := j.run(ctx)
	if c.tracker != nil {
		c.tracker.Record(j.name, c.now(), removed, err)
	}
	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		return removed, err
	}
	if removed > 0 {
		metrics.MaintenanceRemoved.WithLabelValues(j.name).Add(float64(removed))
		c.log.Debug("maintenance job completed", zap.String("job", j.name), zap.Int64("removed", removed))
	}
	return removed, nil
}
