package blob

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// MemoryStorage is an in-process [Storage] backend. Writes are serialized
// per store; readers operate on immutable snapshots.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStorage creates an empty in-memory blob store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// Write implements [Storage].
func (s *MemoryStorage) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, shared.Internalf("failed to read blob %q: %v", key, err)
	}

	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return int64(len(data)), nil
}

// Read implements [Storage].
func (s *MemoryStorage) Read(ctx context.Context, key string, rng Range) (io.ReadCloser, error) {
	if rng.Offset < 0 {
		return nil, shared.Invalidf("negative blob range offset %d", rng.Offset)
	}

	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, shared.NotFoundf("blob %q", key)
	}

	if rng.Offset > int64(len(data)) {
		data = nil
	} else {
		data = data[rng.Offset:]
	}
	if rng.Length > 0 && rng.Length < int64(len(data)) {
		data = data[:rng.Length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements [Storage].
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}
