package node

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/tests/testutil"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	nodes    *testutil.NodeRepository
	profiles *testutil.ProfileRepository
	fleet    *testutil.MockFleet
	stats    *testutil.MockStatsStore
	service  *Service
}

func newFixture(t *testing.T, nodes ...*node.Node) *fixture {
	t.Helper()
	f := &fixture{
		nodes:    testutil.NewNodeRepository(nodes...),
		profiles: testutil.NewProfileRepository(),
		fleet:    new(testutil.MockFleet),
		stats:    new(testutil.MockStatsStore),
	}
	f.service = NewService(f.nodes, f.profiles, f.fleet, f.stats, zap.NewNop())
	return f
}

func ownedNode(t *testing.T, id string, history ...node.Status) *node.Node {
	t.Helper()
	n, err := node.New(id, "SN-"+id, history[0], t0.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, n.Assign("alice", "SN-"+id, t0.Add(-time.Hour)))
	for i, s := range history[1:] {
		_, err := n.Observe(s, t0.Add(-time.Hour+time.Duration(i+1)*5*time.Minute))
		require.NoError(t, err)
	}
	n.ClearDomainEvents()
	return n
}

func (f *fixture) expectStats() {
	f.fleet.On("Snapshots", mock.Anything, mock.Anything).Return([]node.Snapshot{}, nil)
	f.stats.On("WriteSnapshots", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
}

func TestCheckNodeStatuses_NotifiesStableTransition(t *testing.T) {
	// three running samples followed by two halted ones: the next halted sample
	// completes the debounce window
	n := ownedNode(t, "n1",
		node.StatusRunning, node.StatusRunning, node.StatusRunning,
		node.StatusHalted, node.StatusHalted)
	f := newFixture(t, n)
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).
		Return(map[string]node.Status{"n1": node.StatusHalted}, nil)
	f.expectStats()

	result, err := f.service.CheckNodeStatuses(context.Background(), t0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 1, result.Notifications)
	assert.Equal(t, []effect.Type{effect.TypeNodeStatusMessage}, f.nodes.Types())

	task := f.nodes.Find(effect.TypeNodeStatusMessage)
	var msg effect.NodeStatusMessage
	require.NoError(t, task.DecodePayload(&msg))
	since := n.Samples[3].Date
	assert.Equal(t, "n1@"+strconv.FormatInt(since.Unix(), 10), task.EntityID)
	assert.Equal(t, "halted", msg.Status)
	assert.Equal(t, "SN-n1", msg.SerialNumber)
	assert.True(t, since.Equal(msg.Since))
	assert.Equal(t, since, *n.StatusDate)
}

func TestCheckNodeStatuses_ChangeRefreshesUserData(t *testing.T) {
	n := ownedNode(t, "n1", node.StatusRunning)
	f := newFixture(t, n)
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).
		Return(map[string]node.Status{"n1": node.StatusHalted}, nil)
	f.expectStats()

	result, err := f.service.CheckNodeStatuses(context.Background(), t0)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Notifications)
	assert.Equal(t, []effect.Type{effect.TypeUserDataNodes}, f.nodes.Types())
	assert.Equal(t, "alice", f.nodes.Find(effect.TypeUserDataNodes).EntityID)
	assert.Equal(t, t0, *n.LastCheck)
}

func TestCheckNodeStatuses_MissingNodeIsHalted(t *testing.T) {
	n := ownedNode(t, "n1", node.StatusRunning)
	f := newFixture(t, n)
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).Return(map[string]node.Status{}, nil)
	f.expectStats()

	_, err := f.service.CheckNodeStatuses(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, node.StatusHalted, n.Status())
}

func TestCheckNodeStatuses_RegistersUnknownNodesAndWritesStats(t *testing.T) {
	f := newFixture(t, ownedNode(t, "n1", node.StatusRunning))
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).
		Return(map[string]node.Status{"n1": node.StatusRunning, "n2": node.StatusRunning}, nil)
	snapshots := []node.Snapshot{{ID: "n1", Status: node.StatusRunning}, {ID: "n2", Status: node.StatusRunning}}
	f.fleet.On("Snapshots", mock.Anything, map[string]node.Status{"n1": node.StatusRunning, "n2": node.StatusRunning}).
		Return(snapshots, nil)
	f.stats.On("WriteSnapshots", mock.Anything, snapshots, t0).Return(7, nil)

	result, err := f.service.CheckNodeStatuses(context.Background(), t0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 7, result.StatPoints)
	created := f.nodes.Nodes["n2"]
	require.NotNil(t, created)
	assert.False(t, created.HasOwner())
	f.fleet.AssertExpectations(t)
	f.stats.AssertExpectations(t)
}

func TestCheckNodeStatuses_StatsFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, ownedNode(t, "n1", node.StatusRunning))
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).
		Return(map[string]node.Status{"n1": node.StatusRunning}, nil)
	f.fleet.On("Snapshots", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	result, err := f.service.CheckNodeStatuses(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 0, result.StatPoints)
}

func TestCheckNodeStatuses_FleetError(t *testing.T) {
	f := newFixture(t)
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).Return(nil, errors.New("unauthorized"))

	_, err := f.service.CheckNodeStatuses(context.Background(), t0)
	assert.Error(t, err)
}

func TestCheckNodeStatuses_SaveFailureCountsNode(t *testing.T) {
	f := newFixture(t, ownedNode(t, "n1", node.StatusRunning))
	f.nodes.SaveErr = errors.New("deadlock")
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).
		Return(map[string]node.Status{"n1": node.StatusRunning}, nil)
	f.expectStats()

	result, err := f.service.CheckNodeStatuses(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Checked)
}

func TestCheckNodeStatuses_RegisterFailureIsNotFatal(t *testing.T) {
	n := ownedNode(t, "n1",
		node.StatusRunning, node.StatusRunning, node.StatusRunning,
		node.StatusRunning, node.StatusRunning, node.StatusRunning)
	f := newFixture(t, n)
	f.nodes.ListErr = errors.New("db hiccup")
	f.fleet.On("NodeStatuses", mock.Anything, []string(nil)).
		Return(map[string]node.Status{"n1": node.StatusHalted}, nil)

	// a retried run of the same tick must not add samples
	for i := 0; i < 3; i++ {
		result, err := f.service.CheckNodeStatuses(context.Background(), t0)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Notifications)
		assert.Equal(t, 1, result.Failed)
	}

	halted := 0
	for _, s := range n.Samples {
		if s.Status == node.StatusHalted {
			halted++
		}
	}
	assert.Equal(t, 1, halted)
	assert.Equal(t, []effect.Type{effect.TypeUserDataNodes}, f.nodes.Types())
	f.fleet.AssertNotCalled(t, "Snapshots", mock.Anything, mock.Anything)
}

func TestAssignNodes(t *testing.T) {
	existing, err := node.New("n1", "", node.StatusHalted, t0)
	require.NoError(t, err)
	f := newFixture(t, existing)

	out, err := f.service.AssignNodes(context.Background(), "bob", []AssignNodeInput{
		{ID: "n1", SerialNumber: "SN-1", Status: node.StatusRunning},
		{ID: "n2", SerialNumber: "SN-2"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "bob", f.nodes.Nodes["n1"].Username)
	assert.Equal(t, "SN-1", f.nodes.Nodes["n1"].SerialNumber)
	assert.Equal(t, node.StatusRunning, f.nodes.Nodes["n1"].Status())
	assert.Equal(t, node.StatusHalted, f.nodes.Nodes["n2"].Status())
	assert.Equal(t, []effect.Type{effect.TypeUserDataNodes}, f.nodes.Types())

	_, err = f.service.AssignNodes(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestListByStatus_SortsByOwnerThenID(t *testing.T) {
	a := ownedNode(t, "b-node", node.StatusRunning)
	b := ownedNode(t, "a-node", node.StatusRunning)
	b.Username = "zed"
	orphan, err := node.New("c-node", "", node.StatusRunning, t0)
	require.NoError(t, err)
	halted := ownedNode(t, "d-node", node.StatusHalted)

	f := newFixture(t, a, b, orphan, halted)
	alice, _ := profile.New("alice", "Alice", "alice@example.com", "app", t0)
	zed, _ := profile.New("zed", "Zed", "zed@example.com", "app", t0)
	f.profiles.Profiles["alice"] = alice
	f.profiles.Profiles["zed"] = zed

	out, err := f.service.ListByStatus(context.Background(), node.StatusRunning)
	require.NoError(t, err)

	ids := make([]string, len(out))
	for i, r := range out {
		ids[i] = r.Node.ID
	}
	assert.Equal(t, []string{"c-node", "b-node", "a-node"}, ids)
	assert.Nil(t, out[0].Profile)
	assert.Equal(t, "Alice", out[1].Profile.Name)

	all, err := f.service.ListByStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = f.service.ListByStatus(context.Background(), "exploded")
	assert.Error(t, err)
}

func TestQueryStats(t *testing.T) {
	n := ownedNode(t, "n1", node.StatusRunning)
	f := newFixture(t, n)
	series := []node.Series{{Type: "machine.CPU.percent", Points: []node.SeriesPoint{{Time: t0, Value: 12.5}}}}
	f.stats.On("QuerySeries", mock.Anything, integration.StatsQuery{
		NodeIDs: []string{"n1"},
		Types:   node.DashboardStatTypes,
		Range:   6 * time.Hour,
		Every:   15 * time.Minute,
	}).Return(map[string][]node.Series{"n1": series}, nil)

	views, err := f.service.StatsForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, series, views[0].Stats)
	assert.Equal(t, "SN-n1", views[0].SerialNumber)

	empty, err := f.service.StatsForUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
