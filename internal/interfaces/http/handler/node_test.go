package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	nodeapp "github.com/tffhost/backend/internal/application/node"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
	"github.com/tffhost/backend/tests/testutil"
)

func assignedNode(t *testing.T, id string, status node.Status, username string) *node.Node {
	t.Helper()
	n, err := node.New(id, "SN-"+id, status, time.Now())
	require.NoError(t, err)
	if username != "" {
		require.NoError(t, n.Assign(username, "", time.Now()))
	}
	n.ClearDomainEvents()
	return n
}

func newNodeHandler(nodes *testutil.NodeRepository, stats *testutil.MockStatsStore, profiles ...*profile.Profile) *NodeHandler {
	service := nodeapp.NewService(nodes, testutil.NewProfileRepository(profiles...), new(testutil.MockFleet), stats, zap.NewNop())
	return NewNodeHandler(service)
}

func TestNodeHandler_ListNodes(t *testing.T) {
	owner, err := profile.New(testutil.TestUsername, "Alice", "alice@example.com", "app", time.Now())
	require.NoError(t, err)
	nodes := testutil.NewNodeRepository(
		assignedNode(t, "n1", node.StatusRunning, testutil.TestUsername),
		assignedNode(t, "n2", node.StatusHalted, testutil.TestUsername),
		assignedNode(t, "n3", node.StatusHalted, ""),
	)
	h := newNodeHandler(nodes, nil, owner)

	testutil.RunHTTPTestCases(t, h.ListNodes, []testutil.HTTPTestCase{
		{
			Name:           "every node",
			Path:           "/nodes",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				items := testutil.JSONResponse(t, tc)["data"].([]any)
				require.Len(t, items, 3)
				// nodes without owner sort first
				first := items[0].(map[string]any)
				assert.Equal(t, "n3", first["node"].(map[string]any)["id"])
				assert.Nil(t, first["profile"])
			},
		},
		{
			Name:           "halted nodes with their owner",
			Path:           "/nodes?status=halted",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				items := testutil.JSONResponse(t, tc)["data"].([]any)
				require.Len(t, items, 2)
				owned := items[1].(map[string]any)
				assert.Equal(t, "n2", owned["node"].(map[string]any)["id"])
				assert.Equal(t, "Alice", owned["profile"].(map[string]any)["name"])
			},
		},
		{
			Name:           "unknown status",
			Path:           "/nodes?status=rebooting",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
	})
}

func TestNodeHandler_AssignNodes(t *testing.T) {
	nodes := testutil.NewNodeRepository(assignedNode(t, "n1", node.StatusHalted, ""))
	h := newNodeHandler(nodes, nil)

	testutil.RunHTTPTestCases(t, h.AssignNodes, []testutil.HTTPTestCase{
		{
			Name:           "empty node list",
			Method:         http.MethodPost,
			Body:           map[string]any{"username": testutil.TestUsername, "nodes": []any{}},
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:   "assigns known and new nodes",
			Method: http.MethodPost,
			Body: nodeapp.AssignNodesRequest{
				Username: testutil.TestUsername,
				Nodes: []nodeapp.AssignNodeInput{
					{ID: "n1", SerialNumber: "SN-A", Status: node.StatusRunning},
					{ID: "n9", SerialNumber: "SN-B"},
				},
			},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				items := testutil.JSONResponse(t, tc)["data"].([]any)
				require.Len(t, items, 2)
				assert.Equal(t, "running", items[0].(map[string]any)["status"])
				assert.Equal(t, "halted", items[1].(map[string]any)["status"])
				assert.Equal(t, testutil.TestUsername, nodes.Nodes["n9"].Username)
				assert.Equal(t, "SN-A", nodes.Nodes["n1"].SerialNumber)
			},
		},
	})
}

func TestNodeHandler_ListMyNodes(t *testing.T) {
	nodes := testutil.NewNodeRepository(
		assignedNode(t, "n1", node.StatusRunning, testutil.TestUsername),
		assignedNode(t, "n2", node.StatusRunning, "someone.else"),
	)

	testutil.RunHTTPTestCase(t, newNodeHandler(nodes, nil).ListMyNodes, testutil.HTTPTestCase{
		Username:       testutil.TestUsername,
		ExpectedStatus: http.StatusOK,
		Validate: func(t *testing.T, tc *testutil.TestContext) {
			items := testutil.JSONResponse(t, tc)["data"].([]any)
			require.Len(t, items, 1)
			assert.Equal(t, "n1", items[0].(map[string]any)["id"])
		},
	})
}

func TestNodeHandler_NodeStats(t *testing.T) {
	nodes := testutil.NewNodeRepository(assignedNode(t, "n1", node.StatusRunning, testutil.TestUsername))
	series := map[string][]node.Series{
		"n1": {{Type: "cpu", Points: []node.SeriesPoint{{Time: time.Now(), Value: 0.5}}}},
	}

	t.Run("series of the signed-in user", func(t *testing.T) {
		stats := new(testutil.MockStatsStore)
		stats.On("QuerySeries", mock.Anything, mock.MatchedBy(func(q integration.StatsQuery) bool {
			return len(q.NodeIDs) == 1 && q.NodeIDs[0] == "n1"
		})).Return(series, nil)

		testutil.RunHTTPTestCase(t, newNodeHandler(nodes, stats).GetMyNodeStats, testutil.HTTPTestCase{
			Username:       testutil.TestUsername,
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				items := testutil.JSONResponse(t, tc)["data"].([]any)
				require.Len(t, items, 1)
				view := items[0].(map[string]any)
				assert.Equal(t, "n1", view["id"])
				assert.Len(t, view["stats"], 1)
			},
		})
		stats.AssertExpectations(t)
	})

	t.Run("user without nodes skips the stats store", func(t *testing.T) {
		stats := new(testutil.MockStatsStore)
		testutil.RunHTTPTestCase(t, newNodeHandler(nodes, stats).GetUserNodeStats, testutil.HTTPTestCase{
			Params:         map[string]string{"username": "nobody"},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				assert.Empty(t, testutil.JSONResponse(t, tc)["data"])
			},
		})
		stats.AssertNotCalled(t, "QuerySeries", mock.Anything, mock.Anything)
	})

	t.Run("stats store down", func(t *testing.T) {
		stats := new(testutil.MockStatsStore)
		stats.On("QuerySeries", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("influx: %w", integration.ErrRequestFailed))

		testutil.RunHTTPTestCase(t, newNodeHandler(nodes, stats).GetUserNodeStats, testutil.HTTPTestCase{
			Params:         map[string]string{"username": testutil.TestUsername},
			ExpectedStatus: http.StatusBadGateway,
			ExpectedCode:   dto.ErrCodeUnavailable,
		})
	})

	t.Run("unexpected failure", func(t *testing.T) {
		stats := new(testutil.MockStatsStore)
		stats.On("QuerySeries", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		testutil.RunHTTPTestCase(t, newNodeHandler(nodes, stats).GetMyNodeStats, testutil.HTTPTestCase{
			Username:       testutil.TestUsername,
			ExpectedStatus: http.StatusInternalServerError,
			ExpectedCode:   dto.ErrCodeInternal,
		})
	})
}
