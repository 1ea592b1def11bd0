// Package influx stores node telemetry in InfluxDB
package influx

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/infrastructure/config"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	measurementInfo  = "node-info"
	measurementStats = "node-stats"
)

var _ integration.NodeStatsStore = (*NodeStatsStore)(nil)

// NodeStatsStore implements integration.NodeStatsStore on an InfluxDB 2 bucket
type NodeStatsStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
	logger   *zap.Logger
}

// NewNodeStatsStore connects to the configured bucket
func NewNodeStatsStore(cfg config.InfluxConfig, logger *zap.Logger) (*NodeStatsStore, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" {
		return nil, integration.ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &NodeStatsStore{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		logger:   logger,
	}, nil
}

// Close releases the client
func (s *NodeStatsStore) Close() {
	s.client.Close()
}

// WriteSnapshots writes one node-info point per node and one node-stats point per stat
// sample of running nodes
func (s *NodeStatsStore) WriteSnapshots(ctx context.Context, snapshots []node.Snapshot, at time.Time) (_ int, err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "influxdb", "WriteSnapshots")
	defer func() { telemetry.End(span, err) }()

	points := SnapshotPoints(snapshots, at)
	if len(points) == 0 {
		return 0, nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("%w: write node stats: %v", integration.ErrRequestFailed, err)
	}
	s.logger.Info("Wrote node stats", zap.Int("points", len(points)), zap.Int("nodes", len(snapshots)))
	return len(points), nil
}

// SnapshotPoints converts snapshots to points. Stat types in node.SkippedStatKeys are
// left out.
func SnapshotPoints(snapshots []node.Snapshot, at time.Time) []*write.Point {
	var points []*write.Point
	for _, snap := range snapshots {
		fields := map[string]any{"id": snap.ID}
		if snap.Info != nil {
			fields["procs"] = snap.Info.Procs
		}
		points = append(points, influxdb2.NewPoint(measurementInfo,
			map[string]string{"status": snap.Status.String()}, fields, at))

		if snap.Status != node.StatusRunning {
			continue
		}
		keys := make([]string, 0, len(snap.Stats))
		for key := range snap.Stats {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			statType, subtype := node.SplitStatKey(key)
			if node.SkippedStatKeys[statType] {
				continue
			}
			tags := map[string]string{"id": snap.ID, "type": statType}
			if subtype != "" {
				tags["subtype"] = subtype
			}
			for _, sample := range snap.Stats[key] {
				points = append(points, influxdb2.NewPoint(measurementStats, tags,
					map[string]any{"max": sample.Max, "avg": sample.Avg},
					time.Unix(sample.Start, 0).UTC()))
			}
		}
	}
	return points
}

// QuerySeries returns the mean of the avg field per node and stat type, windowed by
// q.Every over the last q.Range. Every requested node gets a series per type, empty
// when nothing was recorded.
func (s *NodeStatsStore) QuerySeries(ctx context.Context, q integration.StatsQuery) (_ map[string][]node.Series, err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "influxdb", "QuerySeries")
	defer func() { telemetry.End(span, err) }()

	out := make(map[string][]node.Series, len(q.NodeIDs))
	index := make(map[string]map[string]int, len(q.NodeIDs))
	for _, id := range q.NodeIDs {
		series := make([]node.Series, len(q.Types))
		index[id] = make(map[string]int, len(q.Types))
		for i, t := range q.Types {
			series[i] = node.Series{Type: t, Points: []node.SeriesPoint{}}
			index[id][t] = i
		}
		out[id] = series
	}
	if len(q.NodeIDs) == 0 || len(q.Types) == 0 {
		return out, nil
	}

	result, err := s.queryAPI.Query(ctx, SeriesQuery(s.bucket, q))
	if err != nil {
		return nil, fmt.Errorf("%w: query node stats: %v", integration.ErrRequestFailed, err)
	}
	defer result.Close()

	for result.Next() {
		record := result.Record()
		id, _ := record.ValueByKey("id").(string)
		statType, _ := record.ValueByKey("type").(string)
		i, ok := index[id][statType]
		if !ok {
			continue
		}
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		out[id][i].Points = append(out[id][i].Points, node.SeriesPoint{Time: record.Time(), Value: value})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("%w: read node stats: %v", integration.ErrInvalidResponse, result.Err())
	}
	return out, nil
}

// SeriesQuery builds the Flux query of QuerySeries
func SeriesQuery(bucket string, q integration.StatsQuery) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: -%s)
  |> filter(fn: (r) => r._measurement == %q and r._field == "avg")
  |> filter(fn: (r) => contains(value: r.id, set: %s))
  |> filter(fn: (r) => contains(value: r.type, set: %s))
  |> group(columns: ["id", "type"])
  |> aggregateWindow(every: %s, fn: mean, createEmpty: false)`,
		strconv.Quote(bucket), fluxDuration(q.Range), measurementStats,
		fluxSet(q.NodeIDs), fluxSet(q.Types), fluxDuration(q.Every))
}

func fluxSet(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// fluxDuration renders whole minutes, e.g. 6h0m0s becomes 360m
func fluxDuration(d time.Duration) string {
	if d < time.Minute {
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
}

// NopStatsStore is used when no InfluxDB is configured. Writes are counted and
// dropped; queries return empty series.
type NopStatsStore struct {
	Logger *zap.Logger
}

var _ integration.NodeStatsStore = NopStatsStore{}

// WriteSnapshots returns the number of points that would have been written
func (s NopStatsStore) WriteSnapshots(_ context.Context, snapshots []node.Snapshot, at time.Time) (int, error) {
	n := len(SnapshotPoints(snapshots, at))
	if s.Logger != nil {
		s.Logger.Debug("Node stats store not configured, dropping points", zap.Int("points", n))
	}
	return n, nil
}

// QuerySeries returns no data
func (NopStatsStore) QuerySeries(_ context.Context, q integration.StatsQuery) (map[string][]node.Series, error) {
	out := make(map[string][]node.Series, len(q.NodeIDs))
	for _, id := range q.NodeIDs {
		out[id] = []node.Series{}
	}
	return out, nil
}
