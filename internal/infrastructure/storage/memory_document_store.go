package storage

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/tffhost/backend/internal/domain/integration"
)

var _ integration.DocumentStore = (*MemoryDocumentStore)(nil)

// MemoryDocumentStore keeps documents in process. It serves development setups
// without object storage; documents are lost on restart.
type MemoryDocumentStore struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	baseURL string
}

// NewMemoryDocumentStore creates an empty store whose links start with baseURL
func NewMemoryDocumentStore(baseURL string) *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string][]byte), baseURL: baseURL}
}

func (s *MemoryDocumentStore) Put(_ context.Context, key string, content []byte, _ string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryDocumentStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[key]
	if !ok {
		return nil, integration.ErrDocumentNotFound
	}
	return append([]byte(nil), content...), nil
}

func (s *MemoryDocumentStore) URL(_ context.Context, key string, expires time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	q := url.Values{"expires": {time.Now().Add(expires).UTC().Format(time.RFC3339)}}
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}
