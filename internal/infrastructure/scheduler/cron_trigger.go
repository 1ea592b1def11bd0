package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronTrigger submits jobs to the scheduler on their cron schedules
type CronTrigger struct {
	scheduler *Scheduler
	cron      *cron.Cron
	logger    *zap.Logger

	mu        sync.Mutex
	isRunning bool
}

// NewCronTrigger creates a trigger for every registered job that has a schedule.
// An invalid schedule is reported here rather than at start.
func NewCronTrigger(scheduler *Scheduler, logger *zap.Logger) (*CronTrigger, error) {
	c := &CronTrigger{
		scheduler: scheduler,
		cron:      cron.New(cron.WithLogger(cronLogger{logger: logger})),
		logger:    logger,
	}

	for _, job := range scheduler.Jobs() {
		if job.Schedule == "" {
			continue
		}
		name := job.Name
		if _, err := c.cron.AddFunc(job.Schedule, func() { c.trigger(name) }); err != nil {
			return nil, fmt.Errorf("%w: schedule %q of job %s: %v", ErrInvalidConfig, job.Schedule, name, err)
		}
		logger.Info("Job scheduled", zap.String("job", name), zap.String("schedule", job.Schedule))
	}
	return c, nil
}

// Start starts the cron loop
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}
	c.isRunning = true
	c.cron.Start()
	c.logger.Info("Cron trigger started", zap.Int("entries", len(c.cron.Entries())))
	return nil
}

// Stop stops the cron loop. Runs already submitted keep going in the scheduler.
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	select {
	case <-c.cron.Stop().Done():
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) trigger(name string) {
	if err := c.scheduler.Submit(name); err != nil {
		c.logger.Warn("Failed to submit scheduled job", zap.String("job", name), zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
