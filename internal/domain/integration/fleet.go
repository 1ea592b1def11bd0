package integration

import (
	"context"
	"time"

	"github.com/tffhost/backend/internal/domain/node"
)

// Fleet is the node orchestrator
type Fleet interface {
	// NodeStatuses asks nodes for their info and maps every node that answered to its
	// status. An empty ids slice queries the whole fleet.
	NodeStatuses(ctx context.Context, ids []string) (map[string]node.Status, error)
	// Snapshots collects info and stats of the given nodes. Nodes that fail to answer
	// keep their known status without stats.
	Snapshots(ctx context.Context, statuses map[string]node.Status) ([]node.Snapshot, error)
}

// StatsQuery selects aggregated stat series
type StatsQuery struct {
	NodeIDs []string
	Types   []string
	Range   time.Duration
	Every   time.Duration
}

// NodeStatsStore is the time-series store of node telemetry
type NodeStatsStore interface {
	// WriteSnapshots writes node info and stats points and returns the number of points
	WriteSnapshots(ctx context.Context, snapshots []node.Snapshot, at time.Time) (int, error)
	// QuerySeries returns the series per node id
	QuerySeries(ctx context.Context, q StatsQuery) (map[string][]node.Series, error)
}
