package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/gigbook/internal/monitoring"
	"github.com/charlesng35/gigbook/pkg/logger"
)

// Job names recorded in the tracker and the maintenance metrics.
const (
	JobEventRedelivery     = "event_redelivery"
	JobNotificationPrune   = "notification_prune"
	JobCacheExpiry         = "cache_expiry"
	defaultRedeliverySpec  = "@every 1m"
	defaultPruneSpec       = "@daily"
	defaultCacheSpec       = "@hourly"
	defaultBatchSize       = 100
	defaultNotificationTTL = 90 * 24 * time.Hour
	defaultEventTTL        = 30 * 24 * time.Hour
)

// EventOutbox is the subset of the event dispatcher the cleaner drives.
type EventOutbox interface {
	DeliverPending(ctx context.Context, limit int) (int, error)
	PruneDelivered(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationPruner removes read notifications older than a cutoff.
type NotificationPruner interface {
	PruneRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// CachePurger sweeps expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: redelivering outbox events that
// failed after commit, pruning read notifications and delivered events, and
// purging expired cache rows.
type Cleaner struct {
	outbox        EventOutbox
	notifications NotificationPruner
	cache         CachePurger
	tracker       *monitoring.JobTracker
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger

	batchSize             int
	notificationRetention time.Duration
	eventRetention        time.Duration

	redeliverySchedule string
	pruneSchedule      string
	cacheSchedule      string
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

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTracker records every job run in tracker.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// WithNotificationPruner enables pruning of read notifications.
func WithNotificationPruner(p NotificationPruner) Option {
	return func(cleaner *Cleaner) {
		cleaner.notifications = p
	}
}

// WithCachePurger enables the cache expiry sweep.
func WithCachePurger(p CachePurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = p
	}
}

// WithBatchSize bounds how many pending events one redelivery run handles.
func WithBatchSize(n int) Option {
	return func(cleaner *Cleaner) {
		if n > 0 {
			cleaner.batchSize = n
		}
	}
}

// WithRetention sets how long read notifications and delivered events are kept.
func WithRetention(notifications, events time.Duration) Option {
	return func(cleaner *Cleaner) {
		if notifications > 0 {
			cleaner.notificationRetention = notifications
		}
		if events > 0 {
			cleaner.eventRetention = events
		}
	}
}

// WithSchedules overrides the cron specifications. Empty values keep the defaults.
func WithSchedules(redelivery, prune, cache string) Option {
	return func(cleaner *Cleaner) {
		if redelivery != "" {
			cleaner.redeliverySchedule = redelivery
		}
		if prune != "" {
			cleaner.pruneSchedule = prune
		}
		if cache != "" {
			cleaner.cacheSchedule = cache
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil outbox
// disables redelivery and event pruning.
func NewCleaner(outbox EventOutbox, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		outbox:                outbox,
		now:                   time.Now,
		log:                   logger.WithModule("maintenance"),
		batchSize:             defaultBatchSize,
		notificationRetention: defaultNotificationTTL,
		eventRetention:        defaultEventTTL,
		redeliverySchedule:    defaultRedeliverySpec,
		pruneSchedule:         defaultPruneSpec,
		cacheSchedule:         defaultCacheSpec,
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	for _, job := range cleaner.jobs() {
		cleaner.tracker.Register(job.name)
	}

	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.outbox != nil {
		jobs = append(jobs, job{JobEventRedelivery, c.redeliverySchedule, c.redeliver})
	}
	if c.outbox != nil || c.notifications != nil {
		jobs = append(jobs, job{JobNotificationPrune, c.pruneSchedule, c.prune})
	}
	if c.cache != nil {
		jobs = append(jobs, job{JobCacheExpiry, c.cacheSchedule, c.purgeCache})
	}
	return jobs
}

// Start registers the maintenance jobs with the cron scheduler and launches it
// when at least one job is enabled.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			if err := c.runJob(context.Background(), j); err != nil {
				c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
			}
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

// RunOnce executes all configured jobs sequentially and combines their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.runJob(ctx, j))
	}
	return errs
}

func (c *Cleaner) runJob(ctx context.Context, j job) error {
	started := time.Now()
	err := j.run(ctx)
	c.tracker.Record(j.name, err, time.Since(started))
	return err
}

func (c *Cleaner) redeliver(ctx context.Context) error {
	delivered, err := c.outbox.DeliverPending(ctx, c.batchSize)
	if delivered > 0 {
		c.log.Info("redelivered pending events", zap.Int("count", delivered))
	}
	return err
}

func (c *Cleaner) prune(ctx context.Context) error {
	now := c.now()
	var errs error

	if c.notifications != nil {
		removed, err := c.notifications.PruneRead(ctx, now.Add(-c.notificationRetention))
		errs = multierr.Append(errs, err)
		if removed > 0 {
			c.log.Info("pruned read notifications", zap.Int64("count", removed))
		}
	}

	if c.outbox != nil {
		removed, err := c.outbox.PruneDelivered(ctx, now.Add(-c.eventRetention))
		errs = multierr.Append(errs, err)
		if removed > 0 {
			c.log.Info("pruned delivered events", zap.Int64("count", removed))
		}
	}

	return errs
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	_, err := c.cache.PurgeExpired(ctx, c.now())
	return err
}
