// Package memory is an in-process Storage for tests and local development.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/vidtube/backend/internal/storage"
)

// BaseURL prefixes every URL produced by Storage.
const BaseURL = "memory://media"

// Storage keeps uploaded objects in a map.
type Storage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{objects: make(map[string][]byte)}
}

func (s *Storage) Upload(ctx context.Context, in *storage.UploadInput) (*storage.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}

	key := storage.NewKey(in.Folder, in.FileName)

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return &storage.UploadResult{Key: key, URL: BaseURL + "/" + key}, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *Storage) KeyFromURL(url string) string {
	return storage.KeyFromBase(BaseURL, url)
}

// Object returns the stored bytes for key.
func (s *Storage) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Deleted returns the keys passed to Delete, in call order.
func (s *Storage) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
