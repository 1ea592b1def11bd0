// Package testutil provides the shared test helpers of the backend: gin test
// contexts, in-memory repositories and testify mocks of the integration ports.
package testutil

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestContext wraps a Gin test context with HTTP recorder.
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
}

// NewTestContext creates a Gin test context for a request.
func NewTestContext(t *testing.T, method, path string, body io.Reader) *TestContext {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, body)

	return &TestContext{Context: c, Recorder: w}
}

// SetIdentity sets the caller the identity middleware would have resolved.
func (tc *TestContext) SetIdentity(username string, roles ...string) {
	if username != "" {
		tc.Context.Set("username", username)
	}
	tc.Context.Set("roles", roles)
}

// ResponseBody returns the response body as bytes.
func (tc *TestContext) ResponseBody() []byte {
	return tc.Recorder.Body.Bytes()
}

// ResponseCode returns the HTTP status code.
func (tc *TestContext) ResponseCode() int {
	return tc.Recorder.Code
}

// NewTestUUID generates a deterministic UUID for testing.
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestUsername is the identity provider username used across tests.
const TestUsername = "alice@tffhost.test"
