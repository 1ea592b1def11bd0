package node

import (
	"strings"
	"time"
)

// SkippedStatKeys are stat types never written to the metrics store
var SkippedStatKeys = map[string]bool{
	"disk.size.total": true,
}

// DashboardStatTypes are the stat types shown on the node dashboard
var DashboardStatTypes = []string{
	"machine.CPU.percent",
	"machine.memory.ram.available",
	"network.throughput.incoming",
	"network.throughput.outgoing",
}

// StatSample is one aggregated stat window as reported by a node
type StatSample struct {
	Start int64   `json:"start"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// Info is the static information a node reports
type Info struct {
	Procs int `json:"procs"`
}

// Snapshot is the telemetry of one node at a point in time. Stats are keyed by
// "<type>" or "<type>/<subtype>", e.g. "network.throughput.incoming/eth0".
type Snapshot struct {
	ID     string                  `json:"id"`
	Status Status                  `json:"status"`
	Info   *Info                   `json:"info,omitempty"`
	Stats  map[string][]StatSample `json:"stats,omitempty"`
}

// SplitStatKey splits a stat key into its type and optional subtype
func SplitStatKey(key string) (statType, subtype string) {
	statType, subtype, _ = strings.Cut(key, "/")
	return statType, subtype
}

// SeriesPoint is one value of a queried stat series
type SeriesPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is a queried stat series of a node
type Series struct {
	Type   string        `json:"type"`
	Points []SeriesPoint `json:"data"`
}

// StatsView is a node together with its dashboard series
type StatsView struct {
	ID           string     `json:"id"`
	SerialNumber string     `json:"serial_number"`
	Status       Status     `json:"status"`
	StatusDate   *time.Time `json:"status_date,omitempty"`
	Stats        []Series   `json:"stats"`
}
