package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/pkg/logger"
	"github.com/charlesng35/gigbook/pkg/metrics"
)

// Handler processes one delivered event. Handlers must be idempotent: an
// event is redelivered to every subscriber when any of them fails.
type Handler func(ctx context.Context, event Event) error

type subscription struct {
	name    string
	types   map[string]struct{}
	handler Handler
}

func (s subscription) wants(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// Dispatcher default settings.
const (
	DefaultMaxAttempts = 8
	DefaultBaseBackoff = 30 * time.Second
	DefaultMaxBackoff  = time.Hour
	DefaultBatchSize   = 100
	DefaultLease       = 5 * time.Minute
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithMaxAttempts sets how many failed deliveries mark an event failed.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithBackoff sets the base and maximum retry delay.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(d *Dispatcher) {
		if base > 0 {
			d.baseBackoff = base
		}
		if maxDelay > 0 {
			d.maxBackoff = maxDelay
		}
	}
}

// WithLease sets how long a claimed event is hidden from other deliveries.
func WithLease(lease time.Duration) Option {
	return func(d *Dispatcher) {
		if lease > 0 {
			d.lease = lease
		}
	}
}

// Dispatcher delivers outbox events to in-process subscribers.
type Dispatcher struct {
	db          *gorm.DB
	now         func() time.Time
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	lease       time.Duration
	log         *zap.Logger

	mu   sync.RWMutex
	subs []subscription
}

// NewDispatcher constructs a dispatcher over the outbox table.
func NewDispatcher(db *gorm.DB, opts ...Option) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("events: db is required")
	}
	d := &Dispatcher{
		db:          db,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
		lease:       DefaultLease,
		log:         logger.WithModule("events"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Subscribe registers handler for the given event types, or all types when none are given.
func (d *Dispatcher) Subscribe(name string, handler Handler, types ...string) {
	if handler == nil {
		return
	}
	sub := subscription{name: name, handler: handler}
	if len(types) > 0 {
		sub.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	d.mu.Lock()
	d.subs = append(d.subs, sub)
	d.mu.Unlock()
}

// Deliver dispatches the given pending events right after their transaction
// commits. Failures are logged and left for DeliverPending; they are never
// returned to the caller of the state transition.
func (d *Dispatcher) Deliver(ctx context.Context, ids ...string) {
	if d == nil || len(ids) == 0 {
		return
	}
	ctx = ensureContext(ctx)
	log := logger.WithContext(ctx, d.log)

	var rows []models.DomainEvent
	err := d.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, models.EventStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		log.Warn("load events for delivery", zap.Strings("ids", ids), zap.Error(err))
		return
	}

	for _, row := range rows {
		if _, err := d.deliver(ctx, row); err != nil {
			log.Warn("event delivery failed",
				zap.String("event_id", row.ID),
				zap.String("type", row.Type),
				zap.Error(err),
			)
		}
	}
}

// DeliverPending retries due events and returns how many were delivered.
func (d *Dispatcher) DeliverPending(ctx context.Context, limit int) (int, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	var rows []models.DomainEvent
	err := d.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.EventStatusPending, d.now().UTC()).
		Order("next_attempt_at ASC").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("events: list pending: %w", err)
	}

	delivered := 0
	var errs error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return delivered, multierr.Append(errs, err)
		}
		ok, err := d.deliver(ctx, row)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event %s: %w", row.ID, err))
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered, errs
}

// PruneDelivered removes delivered events older than cutoff.
func (d *Dispatcher) PruneDelivered(ctx context.Context, cutoff time.Time) (int64, error) {
	res := d.db.WithContext(ensureContext(ctx)).
		Where("status = ? AND delivered_at < ?", models.EventStatusDelivered, cutoff.UTC()).
		Delete(&models.DomainEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("events: prune delivered: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Backlog summarises the outbox for health reporting.
type Backlog struct {
	// Pending counts undelivered events still being retried.
	Pending int64 `json:"pending"`
	// Overdue counts pending events created before the lag cutoff.
	Overdue int64 `json:"overdue"`
	// Failed counts events that exhausted their attempts.
	Failed int64 `json:"failed"`
}

// Backlog counts pending, overdue and failed events. Events created before
// now-maxLag that are still pending count as overdue.
func (d *Dispatcher) Backlog(ctx context.Context, maxLag time.Duration) (Backlog, error) {
	ctx = ensureContext(ctx)
	var (
		out  Backlog
		errs error
	)
	cutoff := d.now().UTC().Add(-maxLag)

	errs = multierr.Append(errs, d.db.WithContext(ctx).Model(&models.DomainEvent{}).
		Where("status = ?", models.EventStatusPending).Count(&out.Pending).Error)
	errs = multierr.Append(errs, d.db.WithContext(ctx).Model(&models.DomainEvent{}).
		Where("status = ? AND created_at < ?", models.EventStatusPending, cutoff).Count(&out.Overdue).Error)
	errs = multierr.Append(errs, d.db.WithContext(ctx).Model(&models.DomainEvent{}).
		Where("status = ?", models.EventStatusFailed).Count(&out.Failed).Error)
	if errs != nil {
		return Backlog{}, fmt.Errorf("events: backlog: %w", errs)
	}
	return out, nil
}

// claim leases a due pending row to this delivery by pushing next_attempt_at
// past now. It reports false when another delivery already holds the row.
func (d *Dispatcher) claim(ctx context.Context, row models.DomainEvent) (bool, error) {
	now := d.now().UTC()
	res := d.db.WithContext(ctx).Model(&models.DomainEvent{}).
		Where("id = ? AND status = ? AND next_attempt_at <= ?", row.ID, models.EventStatusPending, now).
		Update("next_attempt_at", now.Add(d.lease))
	if res.Error != nil {
		return false, fmt.Errorf("claim: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// deliver hands a claimed row to its subscribers and reports whether every
// subscriber accepted it.
func (d *Dispatcher) deliver(ctx context.Context, row models.DomainEvent) (bool, error) {
	claimed, err := d.claim(ctx, row)
	if err != nil || !claimed {
		return false, err
	}
	event := toEvent(row)

	var errs error
	for _, sub := range d.subscriptions(row.Type) {
		if err := d.invoke(ctx, sub, event); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}

	now := d.now().UTC()
	if errs == nil {
		metrics.EventDeliveries.WithLabelValues(row.Type, "delivered").Inc()
		err := d.db.WithContext(ctx).Model(&models.DomainEvent{}).
			Where("id = ? AND status = ?", row.ID, models.EventStatusPending).
			Updates(map[string]any{
				"status":       models.EventStatusDelivered,
				"attempts":     row.Attempts + 1,
				"delivered_at": now,
				"last_error":   "",
			}).Error
		return err == nil, err
	}

	attempts := row.Attempts + 1
	updates := map[string]any{
		"attempts":        attempts,
		"last_error":      errs.Error(),
		"next_attempt_at": now.Add(d.backoff(attempts)),
	}
	result := "failed"
	if attempts >= d.maxAttempts {
		updates["status"] = models.EventStatusFailed
		result = "dead"
	}
	metrics.EventDeliveries.WithLabelValues(row.Type, result).Inc()

	if err := d.db.WithContext(ctx).Model(&models.DomainEvent{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		errs = multierr.Append(errs, fmt.Errorf("record failure: %w", err))
	}
	return false, errs
}

func (d *Dispatcher) invoke(ctx context.Context, sub subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, event)
}

func (d *Dispatcher) subscriptions(eventType string) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]subscription, 0, len(d.subs))
	for _, sub := range d.subs {
		if sub.wants(eventType) {
			out = append(out, sub)
		}
	}
	return out
}

// backoff doubles the base delay per failed attempt, capped at maxBackoff.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.maxBackoff {
			return d.maxBackoff
		}
	}
	return delay
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
