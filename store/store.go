// Package store keeps document text snapshots between editing sessions.
// Operation history is never stored; a reloaded document starts again at version 0.
package store

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Load for paths that were never saved.
	ErrNotFound = errors.New("document not found")
)

// Store loads and saves the text of documents, keyed by path.
type Store interface {
	// Load returns the saved text of path, or ErrNotFound.
	Load(ctx context.Context, path string) (string, error)

	// Save replaces the saved text of path.
	Save(ctx context.Context, path, text string) error
}

// MemoryStore is a Store that lives as long as the process.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]string)}
}

// Load returns the saved text of path, or ErrNotFound.
func (s *MemoryStore) Load(_ context.Context, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.docs[path]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

// Save replaces the saved text of path.
func (s *MemoryStore) Save(_ context.Context, path, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[path] = text
	return nil
}
