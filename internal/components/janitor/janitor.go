// Package janitor runs periodic cleanup: expired sessions and old read
// notifications.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JCampos05/Backend-Taskeer/internal/platform/logutil"
)

// SessionPurger removes expired sessions.
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// NotificationPurger removes read notifications older than a cutoff.
type NotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor schedules the cleanup jobs.
type Janitor struct {
	cron          *cron.Cron
	sessions      SessionPurger
	notifications NotificationPurger
	retention     time.Duration
	logger        *slog.Logger
}

// New creates a Janitor. retention bounds how long read notifications
// are kept.
func New(sessions SessionPurger, notifications NotificationPurger, retention time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		cron:          cron.New(),
		sessions:      sessions,
		notifications: notifications,
		retention:     retention,
		logger:        logutil.Component(logger, "janitor"),
	}
}

// Start registers the cleanup job on the given cron schedule and starts
// the scheduler.
func (j *Janitor) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, j.runOnce)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("janitor started", "schedule", schedule)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs one cleanup pass immediately. Exposed for startup
// sweeps and tests.
func (j *Janitor) RunOnce(ctx context.Context) {
	if j.sessions != nil {
		if n, err := j.sessions.DeleteExpired(ctx); err != nil {
			j.logger.Error("session purge failed", "error", err)
		} else if n > 0 {
			j.logger.Info("purged expired sessions", "count", n)
		}
	}
	if j.notifications != nil {
		cutoff := time.Now().Add(-j.retention)
		if n, err := j.notifications.DeleteReadBefore(ctx, cutoff); err != nil {
			j.logger.Error("notification purge failed", "error", err)
		} else if n > 0 {
			j.logger.Info("purged read notifications", "count", n)
		}
	}
}

func (j *Janitor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	j.RunOnce(ctx)
}
