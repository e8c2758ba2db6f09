// Package localstore is a small file-backed key-value store holding a
// device's local player data (identity, volume, play count mirror,
// player state, layout preference). Values are JSON documents keyed by
// name, persisted together in one file.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys.
const (
	KeyDeviceID        = "deviceId"
	KeyVolume          = "volume"
	KeyPlayCounts      = "playCounts"
	KeyPlayerState     = "musicPlayerState"
	KeyPreferredLayout = "preferredLayout"
)

// Store is a persistent string-keyed JSON value store.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// Open loads the store at path, creating an empty one if absent.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]json.RawMessage)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local store: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.values); err != nil {
			return nil, fmt.Errorf("parse local store: %w", err)
		}
	}
	return s, nil
}

// Get unmarshals the value for key into out and reports whether the key
// was present.
func (s *Store) Get(key string, out interface{}) bool {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Set stores the value for key and rewrites the backing file.
func (s *Store) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.flush()
}

// Delete removes key and rewrites the backing file.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

func (s *Store) flush() error {
	raw, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create local store dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}
	return nil
}
