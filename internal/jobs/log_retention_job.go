// Package jobs holds the scheduled maintenance tasks run by the push worker.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRetentionSchedule runs the purge daily at 03:00 (seconds field first).
const DefaultRetentionSchedule = "0 0 3 * * *"

// LogPurger deletes delivery log rows created before a cutoff.
type LogPurger interface {
	PurgeDeliveryLogs(ctx context.Context, before time.Time) (int64, error)
}

// LogRetentionJob trims notification_logs to a rolling retention window.
type LogRetentionJob struct {
	purger    LogPurger
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *zap.Logger
	now       func() time.Time
}

func NewLogRetentionJob(purger LogPurger, retention time.Duration, schedule string, logger *zap.Logger) *LogRetentionJob {
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRetentionJob{
		purger:    purger,
		retention: retention,
		schedule:  schedule,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger.With(zap.String("component", "log_retention_job")),
		now:       time.Now,
	}
}

// Start registers the purge on the schedule. A non-positive retention disables it.
func (j *LogRetentionJob) Start() error {
	if j.retention <= 0 {
		j.logger.Info("log retention disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = j.RunOnce(ctx)
	}); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("log retention job started",
		zap.String("schedule", j.schedule),
		zap.Duration("retention", j.retention))
	return nil
}

// RunOnce purges everything older than the retention window.
func (j *LogRetentionJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	n, err := j.purger.PurgeDeliveryLogs(ctx, cutoff)
	if err != nil {
		j.logger.Error("log retention purge failed", zap.Error(err))
		return 0, err
	}
	j.logger.Info("delivery logs purged", zap.Int64("rows", n), zap.Time("before", cutoff))
	return n, nil
}

// Stop waits for a running purge to finish.
func (j *LogRetentionJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("log retention job stopped")
}
