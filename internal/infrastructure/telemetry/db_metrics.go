package telemetry

import (
	"context"
	"database/sql"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

// RegisterDBMetrics records query counts and durations per operation and table,
// and observes the connection pool of sqlDB on each collection.
func RegisterDBMetrics(db *gorm.DB, sqlDB *sql.DB, meter metric.Meter) error {
	queries, err := NewCounter(meter, "db_query_total", "Database queries by operation", "{queries}")
	if err != nil {
		return err
	}
	duration, err := NewHistogram(meter, "db_query_duration_seconds", "Database query latency", DBDurationBuckets)
	if err != nil {
		return err
	}

	record := func(tx *gorm.DB) {
		elapsed, ok := queryElapsed(tx)
		if !ok {
			return
		}
		attrs := []attribute.KeyValue{
			AttrDBOperation.String(sqlVerb(tx.Statement.SQL.String())),
			AttrDBTable.String(tx.Statement.Table),
		}
		queries.Inc(tx.Statement.Context, attrs...)
		duration.RecordDuration(tx.Statement.Context, elapsed, attrs...)
	}
	if err := registerAround(db, "metrics", markQueryStart, record); err != nil {
		return err
	}

	if sqlDB == nil {
		return nil
	}
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"), metric.WithUnit("{connections}"))
	if err != nil {
		return err
	}
	waits, err := meter.Float64ObservableCounter("db_pool_wait_seconds",
		metric.WithDescription("Total time blocked waiting for a connection"), metric.WithUnit("s"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(attribute.String("state", "in_use")))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(attribute.String("state", "idle")))
		o.ObserveInt64(conns, int64(stats.MaxOpenConnections), metric.WithAttributes(attribute.String("state", "max")))
		o.ObserveFloat64(waits, stats.WaitDuration.Seconds())
		return nil
	}, conns, waits)
	return err
}

func sqlVerb(sql string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	if verb == "" {
		return "unknown"
	}
	return strings.ToLower(verb)
}
