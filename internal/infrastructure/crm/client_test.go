package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/infrastructure/config"
)

type request struct {
	Path string
	Body map[string]any
}

type fakeCRM struct {
	mu           sync.Mutex
	requests     []request
	unsubscribed bool
	tagStatus    int
}

func (f *fakeCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.requests = append(f.requests, request{Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	switch r.URL.Path {
	case "/users":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type": "user", "id": "crm-1", "email": body["email"],
			"unsubscribed_from_emails": f.unsubscribed,
		})
	case "/tags":
		if f.tagStatus != 0 {
			w.WriteHeader(f.tagStatus)
			_, _ = w.Write([]byte(`{"errors":[{"code":"parameter_invalid","message":"bad tag"}]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "tag", "name": body["name"]})
	case "/messages":
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "admin_message", "id": "m1"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCRM) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Path
	}
	return out
}

func newTestClient(t *testing.T, f *fakeCRM, adminID string) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.CRMConfig{URL: srv.URL, APIKey: "key", AdminID: adminID})
	require.NoError(t, err)
	return c
}

func TestClient_TagUser(t *testing.T) {
	f := &fakeCRM{}
	c := newTestClient(t, f, "")

	err := c.TagUser(context.Background(), "alice", "alice@example.com", []string{"Hoster", "ITO Investor"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/users", "/tags", "/tags"}, f.paths())
	assert.Equal(t, "alice", f.requests[0].Body["user_id"])
	assert.Equal(t, "ITO Investor", f.requests[2].Body["name"])
	assert.Equal(t, []any{map[string]any{"user_id": "alice"}}, f.requests[2].Body["users"])
}

func TestClient_TagUser_Rejected(t *testing.T) {
	c := newTestClient(t, &fakeCRM{tagStatus: http.StatusBadRequest}, "")

	err := c.TagUser(context.Background(), "alice", "alice@example.com", []string{"Hoster"})
	require.ErrorIs(t, err, integration.ErrRequestFailed)
	assert.Contains(t, err.Error(), "bad tag")
}

func TestClient_SendEmail(t *testing.T) {
	f := &fakeCRM{}
	c := newTestClient(t, f, "admin-7")

	require.NoError(t, c.SendEmail(context.Background(), "alice@example.com", "Hi", "Body"))
	assert.Equal(t, []string{"/users", "/messages"}, f.paths())
	msg := f.requests[1].Body
	assert.Equal(t, "email", msg["message_type"])
	assert.Equal(t, map[string]any{"type": "admin", "id": "admin-7"}, msg["from"])
	assert.Equal(t, map[string]any{"type": "user", "id": "crm-1"}, msg["to"])
}

func TestClient_SendEmail_Unsubscribed(t *testing.T) {
	f := &fakeCRM{unsubscribed: true}
	c := newTestClient(t, f, "admin-7")

	require.NoError(t, c.SendEmail(context.Background(), "alice@example.com", "Hi", "Body"))
	assert.Equal(t, []string{"/users"}, f.paths())
}

func TestClient_SendEmail_NoAdmin(t *testing.T) {
	c := newTestClient(t, &fakeCRM{}, "")
	err := c.SendEmail(context.Background(), "alice@example.com", "Hi", "Body")
	assert.ErrorIs(t, err, integration.ErrNotConfigured)
}

func TestClient_AuthFailed(t *testing.T) {
	srv := httptest.NewServer(&fakeCRM{})
	defer srv.Close()
	c, err := NewClient(config.CRMConfig{URL: srv.URL, APIKey: "wrong"})
	require.NoError(t, err)

	err = c.TagUser(context.Background(), "alice", "alice@example.com", []string{"Hoster"})
	assert.ErrorIs(t, err, integration.ErrAuthFailed)
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient(config.CRMConfig{URL: "https://api.intercom.io"})
	assert.ErrorIs(t, err, integration.ErrNotConfigured)
}
