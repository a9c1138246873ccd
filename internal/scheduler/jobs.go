package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/config"
	"github.com/HerbHall/netvault/pkg/models"
)

// Job ids.
const (
	JobPollAll        = "poll_all_devices"
	JobScheduledAudit = "scheduled_audit"
	JobCacheCleanup   = "cache_cleanup"
)

// Poller is the device manager side of the jobs.
type Poller interface {
	PollAll(ctx context.Context, maxConcurrent int) (map[int64]models.DeviceStatus, error)
	CleanupCache(maxAge time.Duration) int
}

// Auditor is the audit engine side of the jobs.
type Auditor interface {
	RunNetworkAudit(ctx context.Context) (*models.AuditResult, error)
}

// RegisterJobs adds the polling, daily audit and cache cleanup jobs.
func RegisterJobs(s *Scheduler, cfg *config.Config, poller Poller, auditor Auditor, logger *zap.Logger) error {
	maxConcurrent := cfg.Polling.MaxConcurrent
	err := s.Add(JobPollAll, "Poll all devices", Every(cfg.Polling.Interval()), func(ctx context.Context) error {
		statuses, err := poller.PollAll(ctx, maxConcurrent)
		logger.Debug("scheduled poll finished", zap.Int("devices", len(statuses)))
		return err
	})
	if err != nil {
		return err
	}

	hour, minute := cfg.Audit.DailyAt(logger)
	err = s.Add(JobScheduledAudit, "Daily network audit", DailyAt(hour, minute), func(ctx context.Context) error {
		_, err := auditor.RunNetworkAudit(ctx)
		return err
	})
	if err != nil {
		return err
	}

	interval, maxAge := cfg.Scheduler.CacheCleanupInterval, cfg.Scheduler.CacheMaxAge
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return s.Add(JobCacheCleanup, "Poll cache cleanup", Every(interval), func(context.Context) error {
		poller.CleanupCache(maxAge)
		return nil
	})
}
