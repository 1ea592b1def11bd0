package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tffhost/backend/internal/infrastructure/cache"
	"github.com/tffhost/backend/internal/infrastructure/logger"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Recorder receives the duration and result of each job run
type Recorder interface {
	RecordJob(ctx context.Context, job string, d time.Duration, err error)
}

// Config holds scheduler configuration
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	// LockTTL bounds how long a crashed instance keeps a job locked
	LockTTL time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     2,
		RetryDelay:        time.Minute,
		LockTTL:           15 * time.Minute,
	}
}

// Scheduler runs registered jobs on a worker pool. A job runs on one instance at a
// time: each run holds a lock named after the job.
type Scheduler struct {
	config   Config
	jobs     map[string]Job
	locker   cache.Locker
	recorder Recorder
	logger   *zap.Logger

	queue     chan *Run
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRecorder reports job durations and results to r
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// NewScheduler creates a new scheduler
func NewScheduler(config Config, locker cache.Locker, logger *zap.Logger, opts ...Option) *Scheduler {
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}
	s := &Scheduler{
		config: config,
		jobs:   make(map[string]Job),
		locker: locker,
		logger: logger,
		queue:  make(chan *Run, 32),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds jobs. Registering a name twice is a configuration error.
func (s *Scheduler) Register(jobs ...Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range jobs {
		if j.Name == "" || j.Run == nil {
			return fmt.Errorf("%w: job needs a name and a body", ErrInvalidConfig)
		}
		if _, ok := s.jobs[j.Name]; ok {
			return fmt.Errorf("%w: job %q registered twice", ErrInvalidConfig, j.Name)
		}
		s.jobs[j.Name] = j
	}
	return nil
}

// Jobs returns the registered jobs
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	return jobs
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Job scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Job scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Job scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a run of the named job without waiting for it
func (s *Scheduler) Submit(name string) error {
	s.mu.Lock()
	_, known := s.jobs[name]
	running := s.isRunning
	s.mu.Unlock()

	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !running {
		return ErrSchedulerNotRunning
	}

	run := NewRun(name, time.Now(), s.config.RetryAttempts)
	select {
	case s.queue <- run:
		s.logger.Debug("Job submitted", zap.String("job", name), zap.String("run_id", run.ID.String()))
		return nil
	default:
		return ErrJobQueueFull
	}
}

// RunNow runs the named job in the caller's goroutine, retries included
func (s *Scheduler) RunNow(ctx context.Context, name string) (*Run, error) {
	s.mu.Lock()
	_, known := s.jobs[name]
	s.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	run := NewRun(name, time.Now(), s.config.RetryAttempts)
	err := s.process(ctx, run)
	return run, err
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case run := <-s.queue:
			if err := s.process(ctx, run); err != nil && !errors.Is(err, ErrJobLocked) {
				s.logger.Error("Job run failed",
					zap.Int("worker_id", workerID),
					zap.String("job", run.Job),
					zap.String("run_id", run.ID.String()),
					zap.Int("retry_count", run.RetryCount),
					zap.Error(err),
				)
			}
		}
	}
}

// process holds the job lock for the whole run, retries included
func (s *Scheduler) process(ctx context.Context, run *Run) error {
	s.mu.Lock()
	job := s.jobs[run.Job]
	s.mu.Unlock()

	ctx = logger.WithJob(ctx, run.Job)
	log := logger.Enrich(ctx, s.logger).With(zap.String("run_id", run.ID.String()))

	lock, ok, err := s.locker.TryLock(ctx, "job:"+run.Job, s.lockTTL())
	if err != nil {
		run.Fail(err)
		return fmt.Errorf("lock job %s: %w", run.Job, err)
	}
	if !ok {
		run.Skip()
		log.Info("Job already running elsewhere, skipped")
		return ErrJobLocked
	}
	defer func() {
		// Release on a fresh context so a canceled run still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			log.Warn("Failed to release job lock", zap.Error(err))
		}
	}()

	for {
		err := s.attempt(ctx, job, run)
		if err == nil {
			log.Info("Job completed", zap.Duration("duration", run.CompletedAt.Sub(*run.StartedAt)))
			return nil
		}
		if !run.ShouldRetry() || ctx.Err() != nil {
			return err
		}
		log.Warn("Job failed, retrying",
			zap.Int("retry_count", run.RetryCount+1),
			zap.Int("max_retries", run.MaxRetries),
			zap.Error(err),
		)
		run.Retry()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.RetryDelay):
		}
	}
}

func (s *Scheduler) attempt(ctx context.Context, job Job, run *Run) (err error) {
	run.Start()
	start := time.Now()

	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}
	ctx, span := telemetry.StartSpan(ctx, "job."+job.Name,
		attribute.String("job.run_id", run.ID.String()),
		attribute.Int("job.attempt", run.RetryCount+1),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
		if err != nil {
			run.Fail(err)
		} else {
			run.Complete()
		}
		telemetry.End(span, err)
		if s.recorder != nil {
			s.recorder.RecordJob(ctx, job.Name, time.Since(start), err)
		}
	}()

	return job.Run(ctx, run.TriggeredAt)
}

func (s *Scheduler) lockTTL() time.Duration {
	if s.config.LockTTL > 0 {
		return s.config.LockTTL
	}
	return DefaultConfig().LockTTL
}
