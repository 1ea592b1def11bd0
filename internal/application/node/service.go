// Package node runs the node fleet jobs: status checks with debounced owner
// notifications, telemetry collection and node assignment.
package node

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	statsRange = 6 * time.Hour
	statsEvery = 15 * time.Minute
)

// Service handles node fleet operations
type Service struct {
	nodes           node.Repository
	profiles        profile.Repository
	fleet           integration.Fleet
	stats           integration.NodeStatsStore
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewService creates a new node service
func NewService(
	nodes node.Repository,
	profiles profile.Repository,
	fleet integration.Fleet,
	stats integration.NodeStatsStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		nodes:    nodes,
		profiles: profiles,
		fleet:    fleet,
		stats:    stats,
		logger:   logger,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *Service) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// CheckNodeStatuses observes the fleet status of every owned node, persists each node
// with its effects, registers unknown nodes and writes the fleet telemetry.
func (s *Service) CheckNodeStatuses(ctx context.Context, now time.Time) (*CheckResult, error) {
	statuses, err := s.fleet.NodeStatuses(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch fleet statuses: %w", err)
	}

	owned, err := s.nodes.FindWithOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owned nodes: %w", err)
	}

	result := &CheckResult{}
	for _, n := range owned {
		status, ok := statuses[n.ID]
		if !ok {
			// never online yet, or unreachable
			s.logger.Warn("Node missing from fleet response",
				zap.String("node_id", n.ID),
				zap.String("username", n.Username),
			)
			status = node.StatusHalted
		}

		notify, err := s.observe(ctx, n, status, now)
		if err != nil {
			result.Failed++
			s.logger.Error("Failed to check node status",
				zap.String("node_id", n.ID),
				zap.Error(err),
			)
			continue
		}
		result.Checked++
		if notify {
			result.Notifications++
			if s.businessMetrics != nil {
				s.businessMetrics.RecordNodeNotification(ctx, status.String())
			}
		}
	}

	// owned nodes are already persisted; failing here would let a retry observe them again
	ids, err := s.registerUnknown(ctx, statuses, now, result)
	if err != nil {
		result.Failed++
		s.logger.Error("Failed to register fleet nodes", zap.Error(err))
	}

	points, err := s.writeStats(ctx, ids, statuses, now)
	if err != nil {
		// telemetry is best effort; statuses are already persisted
		s.logger.Error("Failed to write node stats", zap.Error(err))
	}
	result.StatPoints = points

	s.logger.Info("Node status check finished",
		zap.Int("checked", result.Checked),
		zap.Int("notifications", result.Notifications),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) observe(ctx context.Context, n *node.Node, status node.Status, now time.Time) (bool, error) {
	notify, err := n.Observe(status, now)
	if err != nil {
		return false, err
	}
	tasks, err := PlanEffects(n.GetDomainEvents())
	if err != nil {
		return false, err
	}
	if err := s.nodes.SaveAllWithEffects(ctx, []*node.Node{n}, tasks); err != nil {
		return false, err
	}
	n.ClearDomainEvents()
	return notify, nil
}

// registerUnknown creates nodes reported by the fleet that are not stored yet and
// returns the ids of every known node
func (s *Service) registerUnknown(ctx context.Context, statuses map[string]node.Status, now time.Time, result *CheckResult) ([]string, error) {
	ids, err := s.nodes.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list node ids: %w", err)
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	var created []*node.Node
	for id, status := range statuses {
		if known[id] {
			continue
		}
		n, err := node.New(id, "", status, now)
		if err != nil {
			s.logger.Warn("Skipping invalid fleet node", zap.String("node_id", id), zap.Error(err))
			continue
		}
		created = append(created, n)
		ids = append(ids, id)
	}
	if len(created) == 0 {
		return ids, nil
	}
	if err := s.nodes.SaveAll(ctx, created...); err != nil {
		return nil, fmt.Errorf("save new nodes: %w", err)
	}
	result.Created = len(created)
	return ids, nil
}

func (s *Service) writeStats(ctx context.Context, ids []string, statuses map[string]node.Status, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	wanted := make(map[string]node.Status, len(ids))
	for _, id := range ids {
		status, ok := statuses[id]
		if !ok {
			status = node.StatusHalted
		}
		wanted[id] = status
	}
	snapshots, err := s.fleet.Snapshots(ctx, wanted)
	if err != nil {
		return 0, fmt.Errorf("collect node stats: %w", err)
	}
	return s.stats.WriteSnapshots(ctx, snapshots, now)
}

// AssignNodes upserts the nodes of a user and refreshes the nodes in the user data
func (s *Service) AssignNodes(ctx context.Context, username string, inputs []AssignNodeInput) ([]NodeResponse, error) {
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if len(inputs) == 0 {
		return []NodeResponse{}, nil
	}

	ids := make([]string, len(inputs))
	for i, in := range inputs {
		ids[i] = in.ID
	}
	existing, err := s.nodes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*node.Node, len(existing))
	for _, n := range existing {
		byID[n.ID] = n
	}

	now := time.Now()
	nodes := make([]*node.Node, 0, len(inputs))
	for _, in := range inputs {
		status := in.Status
		if status == "" {
			status = node.StatusHalted
		}
		n, ok := byID[in.ID]
		if !ok {
			if n, err = node.New(in.ID, in.SerialNumber, status, now); err != nil {
				return nil, err
			}
		} else if n.Status() != status {
			if _, err := n.Observe(status, now); err != nil {
				return nil, err
			}
		}
		if err := n.Assign(username, in.SerialNumber, now); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	tasks, err := PlanEffects(collectEvents(nodes))
	if err != nil {
		return nil, err
	}
	if err := s.nodes.SaveAllWithEffects(ctx, nodes, tasks); err != nil {
		return nil, err
	}

	s.logger.Info("Nodes assigned",
		zap.String("username", username),
		zap.Strings("node_ids", ids),
	)
	out := make([]NodeResponse, len(nodes))
	for i, n := range nodes {
		n.ClearDomainEvents()
		out[i] = ToNodeResponse(n)
	}
	return out, nil
}

// ListByStatus lists nodes with their owner, sorted by owner name and node id.
// An empty status lists every node.
func (s *Service) ListByStatus(ctx context.Context, status node.Status) ([]NodeStatusResponse, error) {
	if status != "" && !status.IsValid() {
		return nil, shared.ErrInvalidInput.WithDetails(map[string]any{"status": string(status)})
	}
	nodes, err := s.nodes.FindByStatus(ctx, status)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]*OwnerResponse)
	results := make([]NodeStatusResponse, 0, len(nodes))
	for _, n := range nodes {
		item := NodeStatusResponse{Node: ToNodeResponse(n)}
		if n.HasOwner() {
			owner, ok := owners[n.Username]
			if !ok {
				owner, err = s.owner(ctx, n.Username)
				if err != nil {
					return nil, err
				}
				owners[n.Username] = owner
			}
			item.Profile = owner
		}
		results = append(results, item)
	}

	sort.SliceStable(results, func(i, j int) bool {
		ni, nj := ownerName(results[i]), ownerName(results[j])
		if ni != nj {
			return ni < nj
		}
		return results[i].Node.ID < results[j].Node.ID
	})
	return results, nil
}

func (s *Service) owner(ctx context.Context, username string) (*OwnerResponse, error) {
	p, err := s.profiles.FindByUsername(ctx, username)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &OwnerResponse{Username: p.Username, Name: p.Name, Email: p.Email}, nil
}

func ownerName(r NodeStatusResponse) string {
	if r.Profile == nil {
		return ""
	}
	return r.Profile.Name
}

// ListForUser returns the nodes of a user
func (s *Service) ListForUser(ctx context.Context, username string) ([]NodeResponse, error) {
	nodes, err := s.nodes.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	out := make([]NodeResponse, len(nodes))
	for i, n := range nodes {
		out[i] = ToNodeResponse(n)
	}
	return out, nil
}

// StatsForUser returns the dashboard series of the nodes of a user
func (s *Service) StatsForUser(ctx context.Context, username string) ([]node.StatsView, error) {
	nodes, err := s.nodes.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.QueryStats(ctx, nodes)
}

// QueryStats returns the mean of the stat averages of the last 6 hours in 15 minute
// windows for the dashboard stat types
func (s *Service) QueryStats(ctx context.Context, nodes []*node.Node) ([]node.StatsView, error) {
	if len(nodes) == 0 {
		return []node.StatsView{}, nil
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	series, err := s.stats.QuerySeries(ctx, integration.StatsQuery{
		NodeIDs: ids,
		Types:   node.DashboardStatTypes,
		Range:   statsRange,
		Every:   statsEvery,
	})
	if err != nil {
		return nil, fmt.Errorf("query node stats: %w", err)
	}

	views := make([]node.StatsView, len(nodes))
	for i, n := range nodes {
		stats := series[n.ID]
		if stats == nil {
			stats = []node.Series{}
		}
		views[i] = node.StatsView{
			ID:           n.ID,
			SerialNumber: n.SerialNumber,
			Status:       n.Status(),
			StatusDate:   n.StatusDate,
			Stats:        stats,
		}
	}
	return views, nil
}

func collectEvents(nodes []*node.Node) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, n := range nodes {
		events = append(events, n.GetDomainEvents()...)
	}
	return events
}

// PlanEffects maps node events to their side effects. The node status notification
// is keyed by node and change time so each stable transition is announced once.
func PlanEffects(events []shared.DomainEvent) ([]*effect.Task, error) {
	plan := effect.NewPlan()
	for _, e := range events {
		switch ev := e.(type) {
		case *node.NodeStatusChangedEvent:
			if ev.Username != "" {
				plan.Add(ev.Username, effect.TypeUserDataNodes, effect.UserRef{Username: ev.Username})
			}
		case *node.NodeAssignedEvent:
			plan.Add(ev.Username, effect.TypeUserDataNodes, effect.UserRef{Username: ev.Username})
		case *node.NodeStatusNotificationDueEvent:
			if ev.Username == "" {
				continue
			}
			plan.Add(
				fmt.Sprintf("%s@%d", ev.NodeID, ev.Since.Unix()),
				effect.TypeNodeStatusMessage,
				effect.NodeStatusMessage{
					NodeID:       ev.NodeID,
					SerialNumber: ev.SerialNumber,
					Username:     ev.Username,
					Status:       string(ev.Status),
					Since:        ev.Since,
				},
			)
		}
	}
	return plan.Tasks()
}
