package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultCleanupSchedule = "@hourly"

	// How long an expired verification is kept before the sweep drops it
	verificationGrace = time.Hour
	cleanupTimeout    = time.Minute
)

type ExpiredSessionStore interface {
	DeleteExpired(ctx context.Context, t time.Time) (int64, error)
}

type ExpiredVerificationStore interface {
	DeleteExpired(ctx context.Context, t time.Time) (int64, error)
}

// Cleanup periodically removes session tokens and verifications that can
// never be used again
type Cleanup struct {
	sessions      ExpiredSessionStore
	verifications ExpiredVerificationStore
	now           func() time.Time

	cron *cron.Cron
}

func NewCleanup(s ExpiredSessionStore, v ExpiredVerificationStore, now func() time.Time) *Cleanup {
	if now == nil {
		now = time.Now
	}

	return &Cleanup{sessions: s, verifications: v, now: now}
}

// Start schedules the sweep. schedule is a cron expression, an empty one runs
// the sweep hourly.
func (c *Cleanup) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}

	c.cron = cron.New()

	_, err := c.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		c.Run(ctx)
	})
	if err != nil {
		return err
	}

	zap.L().Debug("Cleanup attached", zap.String("schedule", schedule))

	c.cron.Start()
	return nil
}

// Stop unschedules the sweep and waits for a running one to return
func (c *Cleanup) Stop() {
	if c.cron == nil {
		return
	}

	<-c.cron.Stop().Done()
}

// Run performs a single sweep
func (c *Cleanup) Run(ctx context.Context) {
	now := c.now()

	n, err := c.sessions.DeleteExpired(ctx, now)
	if err != nil {
		zap.L().Error("Failed to clean up expired session tokens", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("Cleaned up expired session tokens", zap.Int64("count", n))
	}

	n, err = c.verifications.DeleteExpired(ctx, now.Add(-verificationGrace))
	if err != nil {
		zap.L().Error("Failed to clean up expired verifications", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("Cleaned up expired verifications", zap.Int64("count", n))
	}
}
