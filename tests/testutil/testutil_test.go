package testutil

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tffhost/backend/internal/domain/effect"
)

func TestTestContext_SetIdentity(t *testing.T) {
	tc := NewTestContext(t, http.MethodGet, "/", nil)

	tc.SetIdentity(TestUsername, "admin")

	username, exists := tc.Context.Get("username")
	assert.True(t, exists)
	assert.Equal(t, TestUsername, username)
	assert.Equal(t, []string{"admin"}, tc.Context.GetStringSlice("roles"))
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("test-seed"), NewTestUUID("test-seed"))
	assert.NotEqual(t, NewTestUUID("test-seed"), NewTestUUID("different-seed"))
}

func TestRunHTTPTestCases(t *testing.T) {
	handler := func(c *gin.Context) {
		if c.Param("id") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": "ERR_VALIDATION"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
			"id":       c.Param("id"),
			"username": c.GetString("username"),
		}})
	}

	RunHTTPTestCases(t, handler, []HTTPTestCase{
		{
			Name:           "params and identity reach the handler",
			Params:         map[string]string{"id": "42"},
			Username:       TestUsername,
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *TestContext) {
				data := ResponseData(t, tc)
				assert.Equal(t, "42", data["id"])
				assert.Equal(t, TestUsername, data["username"])
			},
		},
		{
			Name:           "error envelope",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "ERR_VALIDATION",
		},
	})
}

func TestTaskRepository_EnqueueRearms(t *testing.T) {
	repo := NewTaskRepository()
	ctx := context.Background()

	task := effect.MustNewTask("node-1", effect.TypeNodeStatusMessage, nil)
	require.NoError(t, repo.Enqueue(ctx, task))
	claimed, err := repo.ClaimDue(ctx, task.CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	generation := claimed[0].Generation

	require.NoError(t, repo.Enqueue(ctx, effect.MustNewTask("node-1", effect.TypeNodeStatusMessage, nil)))
	require.NoError(t, repo.Complete(ctx, claimed[0], generation))

	stored, err := repo.FindByKey(ctx, "node-1", effect.TypeNodeStatusMessage)
	require.NoError(t, err)
	assert.Equal(t, effect.StatusPending, stored.Status)

	repo.Err = errors.New("db down")
	_, err = repo.CountByStatus(ctx)
	assert.Error(t, err)
}
