// File: internal/jobs/request_expiry.go
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"lifelink_backend/internal/config"
)

// Expirer closes requests that have stayed pending for longer than olderThan
// and reports how many it closed.
type Expirer interface {
	ExpireStaleRequests(ctx context.Context, olderThan time.Duration) (int, error)
}

// RequestExpiryJob periodically expires stale pending requests.
type RequestExpiryJob struct {
	expirer       Expirer
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewRequestExpiryJob creates a new RequestExpiryJob. Overlapping runs are
// skipped.
func NewRequestExpiryJob(expirer Expirer, logger *zap.Logger, cfg *config.Config) *RequestExpiryJob {
	cl := NewCronLogger(logger.Named("cron"))
	scheduler := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &RequestExpiryJob{
		expirer:       expirer,
		logger:        logger.Named("RequestExpiryJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *RequestExpiryJob) SetupAndStart() error {
	jobSpec := j.cfg.RequestExpiryJobSchedule
	if jobSpec == "" {
		j.logger.Warn("Request expiry job schedule not defined (REQUEST_EXPIRY_JOB_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.Run)
	if err != nil {
		j.logger.Error("Failed to schedule request expiry job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Request expiry job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID), zap.Duration("olderThan", j.cfg.RequestExpiry()))
	j.cronScheduler.Start()
	return nil
}

// Run performs one expiry pass.
func (j *RequestExpiryJob) Run() {
	j.logger.Info("Starting request expiry job run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := j.expirer.ExpireStaleRequests(ctx, j.cfg.RequestExpiry())
	if err != nil {
		j.logger.Error("Request expiry job run failed", zap.Int("requests_expired", expired), zap.Error(err))
		return
	}
	j.logger.Info("Request expiry job run completed", zap.Int("requests_expired", expired))
}

// Stop gracefully stops the cron scheduler.
func (j *RequestExpiryJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	j.logger.Info("Stopping request expiry job scheduler...")
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Request expiry job scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Request expiry job scheduler stop timed out.")
	}
}
