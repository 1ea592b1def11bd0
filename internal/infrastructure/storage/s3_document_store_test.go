package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/infrastructure/config"
)

// fakeS3 serves path style object requests for a single bucket
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/documents/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) contentType(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types[key]
}

func newTestStore(t *testing.T, endpoint string) *S3DocumentStore {
	t.Helper()
	store, err := NewS3DocumentStore(&config.StorageConfig{
		Endpoint:       endpoint,
		Region:         "eu-central-1",
		Bucket:         "documents",
		AccessKey:      "key",
		SecretKey:      "secret",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return store
}

func TestNewS3DocumentStore_Validation(t *testing.T) {
	_, err := NewS3DocumentStore(nil)
	assert.ErrorContains(t, err, "configuration is required")

	_, err = NewS3DocumentStore(&config.StorageConfig{AccessKey: "k", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3DocumentStore(&config.StorageConfig{Bucket: "documents"})
	assert.ErrorContains(t, err, "credentials are required")
}

func TestS3DocumentStore_PutGet(t *testing.T) {
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	store := newTestStore(t, srv.URL)
	ctx := context.Background()

	pdf := []byte("%PDF-1.7 agreement")
	require.NoError(t, store.Put(ctx, "node-orders/abc.pdf", pdf, "application/pdf"))
	assert.Equal(t, "application/pdf", fake.contentType("node-orders/abc.pdf"))

	got, err := store.Get(ctx, "node-orders/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, pdf, got)
}

func TestS3DocumentStore_GetMissing(t *testing.T) {
	srv := httptest.NewServer(newFakeS3())
	defer srv.Close()
	store := newTestStore(t, srv.URL)

	_, err := store.Get(context.Background(), "node-orders/missing.pdf")
	assert.ErrorIs(t, err, integration.ErrDocumentNotFound)
}

func TestS3DocumentStore_URL(t *testing.T) {
	store := newTestStore(t, "http://localhost:9000")

	link, err := store.URL(context.Background(), "purchase-agreements/xyz.pdf", 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, link, "/documents/purchase-agreements/xyz.pdf")
	assert.Contains(t, link, "X-Amz-Expires=600")

	_, err = store.URL(context.Background(), "", time.Minute)
	assert.Error(t, err)
}

func TestMemoryDocumentStore(t *testing.T) {
	store := NewMemoryDocumentStore("http://localhost/docs")
	ctx := context.Background()

	content := []byte("pdf")
	require.NoError(t, store.Put(ctx, "a.pdf", content, "application/pdf"))
	content[0] = 'x'

	got, err := store.Get(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), got)

	_, err = store.Get(ctx, "b.pdf")
	assert.ErrorIs(t, err, integration.ErrDocumentNotFound)

	link, err := store.URL(ctx, "a.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://localhost/docs/a.pdf?expires="))

	assert.Error(t, store.Put(ctx, "", nil, ""))
}
