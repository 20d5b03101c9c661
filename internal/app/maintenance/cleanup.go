package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/voltgrid/voltgrid/internal/access"
	"github.com/voltgrid/voltgrid/internal/services"
	"github.com/voltgrid/voltgrid/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultSweepSpec          = "@every 1m"
	defaultOverrideSpec       = "@daily"
	defaultAuditSpec          = "@daily"

	defaultStaleDeviceThreshold = 5 * time.Minute
)

// Cleaner coordinates background maintenance: sweeping expired permission
// cache entries, pruning expired overrides, enforcing audit retention,
// marking silent devices offline, and optionally trimming old telemetry.
type Cleaner struct {
	engine    *access.Engine
	audit     *services.AuditService
	devices   *services.DeviceService
	telemetry *services.TelemetryService

	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	retention          int
	telemetryRetention time.Duration
	staleThreshold     time.Duration

	sweepSchedule    string
	overrideSchedule string
	auditSchedule    string
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

// WithAuditRetentionDays adjusts how long audit logs are retained.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithTelemetryRetention enables telemetry pruning with the given window.
// Zero leaves telemetry untouched.
func WithTelemetryRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.telemetryRetention = retention
		}
	}
}

// WithStaleDeviceThreshold adjusts how long a device may stay silent before
// being marked offline.
func WithStaleDeviceThreshold(threshold time.Duration) Option {
	return func(cleaner *Cleaner) {
		if threshold > 0 {
			cleaner.staleThreshold = threshold
		}
	}
}

// WithSweepSchedule overrides the cron specification for cache sweeps and
// stale device detection.
func WithSweepSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sweepSchedule = spec
		}
	}
}

// WithOverrideSchedule overrides the cron specification for override pruning.
func WithOverrideSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.overrideSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// results in the corresponding job being skipped.
func NewCleaner(engine *access.Engine, audit *services.AuditService, devices *services.DeviceService, telemetry *services.TelemetryService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		engine:           engine,
		audit:            audit,
		devices:          devices,
		telemetry:        telemetry,
		now:              time.Now,
		retention:        defaultAuditRetentionDays,
		staleThreshold:   defaultStaleDeviceThreshold,
		sweepSchedule:    defaultSweepSpec,
		overrideSchedule: defaultOverrideSpec,
		auditSchedule:    defaultAuditSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.engine != nil {
		if _, err := c.cron.AddFunc(c.sweepSchedule, func() {
			if removed := c.engine.Cache.Sweep(); removed > 0 {
				c.log.Debug("cache sweep", zap.Int("removed", removed))
			}
		}); err != nil {
			return err
		}

		if _, err := c.cron.AddFunc(c.overrideSchedule, func() {
			ctx := context.Background()
			if _, err := c.engine.Overrides.PruneExpired(ctx, c.now()); err != nil {
				c.log.Warn("override prune failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.devices != nil && c.staleThreshold > 0 {
		if _, err := c.cron.AddFunc(c.sweepSchedule, func() {
			ctx := context.Background()
			if _, err := c.devices.MarkStaleOffline(ctx, c.staleThreshold); err != nil {
				c.log.Warn("stale device sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.telemetry != nil && c.telemetryRetention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.telemetry.PruneOlderThan(ctx, c.telemetryRetention); err != nil {
				c.log.Warn("telemetry prune failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for running jobs to finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in
// tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.engine != nil {
		c.engine.Cache.Sweep()
		if _, err := c.engine.Overrides.PruneExpired(ctx, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.devices != nil && c.staleThreshold > 0 {
		if _, err := c.devices.MarkStaleOffline(ctx, c.staleThreshold); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.telemetry != nil && c.telemetryRetention > 0 {
		if _, err := c.telemetry.PruneOlderThan(ctx, c.telemetryRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
