package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const queryStartKey contextKey = "db_query_start"

// DBTracingConfig holds the database tracing settings
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables in spans; development only
	SlowQueryThresh time.Duration
}

// RegisterDBTracing installs the otelgorm plugin plus callbacks that mark slow
// and failed statements on their spans.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerAround(db, "otel_timing", markQueryStart, func(tx *gorm.DB) {
		annotateSpan(tx, cfg.SlowQueryThresh)
	}); err != nil {
		return err
	}

	logger.Info("Database tracing enabled", zap.Duration("slow_query_threshold", cfg.SlowQueryThresh))
	return nil
}

func markQueryStart(tx *gorm.DB) {
	if tx.Statement.Context != nil {
		tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey, time.Now())
	}
}

func queryElapsed(tx *gorm.DB) (time.Duration, bool) {
	if tx.Statement.Context == nil {
		return 0, false
	}
	start, ok := tx.Statement.Context.Value(queryStartKey).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

func annotateSpan(tx *gorm.DB, slow time.Duration) {
	if tx.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(tx.Statement.Context)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}
	if elapsed, ok := queryElapsed(tx); ok && elapsed > slow {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", slow.Milliseconds()),
		))
	}
}

// registerAround registers before and after callbacks for every GORM processor
func registerAround(db *gorm.DB, name string, before, after func(*gorm.DB)) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register(name+":before_create", before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register(name+":after_create", after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register(name+":before_query", before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register(name+":after_query", after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register(name+":before_update", before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register(name+":after_update", after); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register(name+":before_delete", before); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register(name+":after_delete", after); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register(name+":before_row", before); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register(name+":after_row", after); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register(name+":before_raw", before); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register(name+":after_raw", after)
}
