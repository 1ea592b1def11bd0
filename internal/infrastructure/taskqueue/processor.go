package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/infrastructure/logger"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcomes reported to the metrics recorder
const (
	OutcomeDone    = "done"
	OutcomeRearmed = "rearmed"
	OutcomeRetry   = "retry"
	OutcomeDead    = "dead"
)

// ErrNoExecutor is recorded on tasks whose effect type has no registered executor
var ErrNoExecutor = errors.New("no executor registered for effect type")

// Recorder receives the outcome of each execution
type Recorder interface {
	RecordEffect(ctx context.Context, effectType, outcome string, d time.Duration)
}

// ProcessorConfig holds configuration for the task processor
type ProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	Concurrency      int
	ExecuteTimeout   time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		Concurrency:      4,
		ExecuteTimeout:   2 * time.Minute,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Processor executes queued side effects in the background
type Processor struct {
	repo      effect.Repository
	executors map[effect.Type]effect.Executor
	config    ProcessorConfig
	recorder  Recorder
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithRecorder reports execution outcomes to r
func WithRecorder(r Recorder) ProcessorOption {
	return func(p *Processor) {
		p.recorder = r
	}
}

// NewProcessor creates a new task processor
func NewProcessor(repo effect.Repository, config ProcessorConfig, logger *zap.Logger, opts ...ProcessorOption) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	p := &Processor{
		repo:      repo,
		executors: make(map[effect.Type]effect.Executor),
		config:    config,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds executors keyed by effect type. A later registration for the same
// type replaces the earlier one.
func (p *Processor) Register(executors map[effect.Type]effect.Executor) {
	for t, e := range executors {
		p.executors[t] = e
	}
}

// Types returns the effect types with a registered executor
func (p *Processor) Types() []effect.Type {
	types := make([]effect.Type, 0, len(p.executors))
	for t := range p.executors {
		types = append(types, t)
	}
	return types
}

// Start starts the background processing
func (p *Processor) Start(ctx context.Context) error {
	if p.config.PollInterval <= 0 {
		return fmt.Errorf("taskqueue: poll interval must be positive, got %s", p.config.PollInterval)
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	if p.config.CleanupEnabled && p.config.CleanupInterval > 0 {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("task processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("concurrency", p.config.Concurrency),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("executors", len(p.executors)),
	)
	return nil
}

// Stop cancels processing and waits for running executions to return
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("task processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to claim due tasks", zap.Error(err))
			}
		}
	}
}

// RunOnce claims one batch of due tasks and executes it. It returns the number of
// tasks claimed.
func (p *Processor) RunOnce(ctx context.Context) (int, error) {
	tasks, err := p.repo.ClaimDue(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	// Execution failures are recorded on the task; the group only bounds concurrency.
	var g errgroup.Group
	g.SetLimit(p.config.Concurrency)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			p.execute(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return len(tasks), nil
}

// Drain runs batches until no task is due or ctx ends
func (p *Processor) Drain(ctx context.Context) (int, error) {
	total := 0
	for ctx.Err() == nil {
		n, err := p.RunOnce(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
	return total, ctx.Err()
}

func (p *Processor) execute(ctx context.Context, task *effect.Task) {
	start := time.Now()
	claimed := task.Generation
	log := logger.Enrich(ctx, p.logger).With(
		zap.String("task_id", task.ID.String()),
		zap.String("effect_type", string(task.EffectType)),
		zap.String("entity_id", task.EntityID),
		zap.Int("generation", claimed),
	)

	err := p.run(ctx, task)
	if err == nil {
		if cerr := p.repo.Complete(ctx, task, claimed); cerr != nil {
			log.Error("failed to complete task", zap.Error(cerr))
			return
		}
		outcome := OutcomeDone
		if task.Status == effect.StatusPending {
			outcome = OutcomeRearmed
		}
		p.record(ctx, task, outcome, time.Since(start))
		log.Debug("task executed", zap.String("outcome", outcome))
		return
	}

	log.Warn("task execution failed", zap.Int("retry_count", task.RetryCount), zap.Error(err))
	if ferr := p.repo.Fail(ctx, task, err); ferr != nil {
		log.Error("failed to record task failure", zap.Error(ferr))
		return
	}
	if task.IsDead() {
		p.record(ctx, task, OutcomeDead, time.Since(start))
		log.Warn("task moved to dead letter queue",
			zap.Int("retry_count", task.RetryCount),
			zap.String("last_error", task.LastError),
		)
		return
	}
	p.record(ctx, task, OutcomeRetry, time.Since(start))
}

func (p *Processor) run(ctx context.Context, task *effect.Task) (err error) {
	exec, ok := p.executors[task.EffectType]
	if !ok {
		return effect.Permanent(fmt.Errorf("%w: %s", ErrNoExecutor, task.EffectType))
	}

	if p.config.ExecuteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ExecuteTimeout)
		defer cancel()
	}
	ctx, span := telemetry.StartSpan(ctx, "effect."+string(task.EffectType),
		attribute.String("effect.entity_id", task.EntityID),
		attribute.Int("effect.generation", task.Generation),
	)
	defer func() { telemetry.End(span, err) }()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return exec.Execute(ctx, task)
}

func (p *Processor) record(ctx context.Context, task *effect.Task, outcome string, d time.Duration) {
	if p.recorder != nil {
		p.recorder.RecordEffect(ctx, string(task.EffectType), outcome, d)
	}
}

func (p *Processor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanup(ctx)
		}
	}
}

// cleanup removes done tasks older than the retention
func (p *Processor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteDoneBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to cleanup done tasks", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up done tasks",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
