package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when metrics are created without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// BacklogFunc reports the number of side effect tasks per status
type BacklogFunc func(ctx context.Context) (map[string]int64, error)

// BusinessMetrics tracks node notifications, order transitions, background jobs
// and side effect execution.
type BusinessMetrics struct {
	logger *zap.Logger

	nodeNotifications *Counter
	orderTransitions  *Counter
	jobRuns           *Counter
	jobDuration       *Histogram
	effectRuns        *Counter
	effectDuration    *Histogram

	backlog metric.Int64ObservableGauge
}

// BusinessMetricsConfig holds the dependencies of BusinessMetrics
type BusinessMetricsConfig struct {
	Meter   metric.Meter
	Logger  *zap.Logger
	Backlog BacklogFunc // optional; observed on each collection
}

// NewBusinessMetrics creates the business instruments
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bm := &BusinessMetrics{logger: logger}

	var err error
	if bm.nodeNotifications, err = NewCounter(cfg.Meter,
		"hosting_node_notifications_total", "Node status changes notified to owners", "{notifications}"); err != nil {
		return nil, err
	}
	if bm.orderTransitions, err = NewCounter(cfg.Meter,
		"hosting_order_transitions_total", "Node order status transitions", "{transitions}"); err != nil {
		return nil, err
	}
	if bm.jobRuns, err = NewCounter(cfg.Meter,
		"hosting_job_runs_total", "Background job runs", "{runs}"); err != nil {
		return nil, err
	}
	if bm.jobDuration, err = NewHistogram(cfg.Meter,
		"hosting_job_duration_seconds", "Background job duration", JobDurationBuckets); err != nil {
		return nil, err
	}
	if bm.effectRuns, err = NewCounter(cfg.Meter,
		"hosting_effect_executions_total", "Side effect executions", "{executions}"); err != nil {
		return nil, err
	}
	if bm.effectDuration, err = NewHistogram(cfg.Meter,
		"hosting_effect_duration_seconds", "Side effect execution duration", HTTPDurationBuckets); err != nil {
		return nil, err
	}

	if cfg.Backlog != nil {
		bm.backlog, err = cfg.Meter.Int64ObservableGauge("hosting_effect_tasks",
			metric.WithDescription("Side effect tasks by status"),
			metric.WithUnit("{tasks}"),
		)
		if err != nil {
			return nil, err
		}
		_, err = cfg.Meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			counts, err := cfg.Backlog(ctx)
			if err != nil {
				bm.logger.Warn("Failed to collect effect backlog", zap.Error(err))
				return nil
			}
			for status, n := range counts {
				o.ObserveInt64(bm.backlog, n, metric.WithAttributes(AttrTaskStatus.String(status)))
			}
			return nil
		}, bm.backlog)
		if err != nil {
			return nil, err
		}
	}
	return bm, nil
}

// RecordNodeNotification counts a node status notification
func (bm *BusinessMetrics) RecordNodeNotification(ctx context.Context, status string) {
	bm.nodeNotifications.Inc(ctx, AttrNodeStatus.String(status))
}

// RecordOrderStatus counts a node order entering status
func (bm *BusinessMetrics) RecordOrderStatus(ctx context.Context, status string) {
	bm.orderTransitions.Inc(ctx, AttrOrderStatus.String(status))
}

// RecordJob records one run of a scheduled job
func (bm *BusinessMetrics) RecordJob(ctx context.Context, job string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	bm.jobRuns.Inc(ctx, AttrJob.String(job), AttrOutcome.String(outcome))
	bm.jobDuration.RecordDuration(ctx, d, AttrJob.String(job))
}

// RecordEffect records one execution of a side effect. outcome is done, retry,
// dead or rearmed.
func (bm *BusinessMetrics) RecordEffect(ctx context.Context, effectType, outcome string, d time.Duration) {
	bm.effectRuns.Inc(ctx, AttrEffectType.String(effectType), AttrOutcome.String(outcome))
	bm.effectDuration.RecordDuration(ctx, d, AttrEffectType.String(effectType))
}
