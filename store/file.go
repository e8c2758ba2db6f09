package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"LanFM/model"
)

// FileCountStore keeps the play count map in a single JSON file. A mutex
// serializes every read-modify-write so concurrent requests cannot drop
// updates against each other.
type FileCountStore struct {
	mu   sync.Mutex
	path string
}

// NewFileCountStore creates the store and the backing file if absent.
func NewFileCountStore(path string) (*FileCountStore, error) {
	if err := ensureJSONFile(path); err != nil {
		return nil, err
	}
	return &FileCountStore{path: path}, nil
}

func (s *FileCountStore) Increment(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return 0, ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := readJSONMap[int64](s.path)
	if err != nil {
		return 0, err
	}
	counts[id]++
	if err := writeJSONMap(s.path, counts); err != nil {
		return 0, err
	}
	return counts[id], nil
}

func (s *FileCountStore) Top(ctx context.Context) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := readJSONMap[int64](s.path)
	if err != nil {
		return "", 0, err
	}
	if len(counts) == 0 {
		return "", 0, nil
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return counts[ids[i]] > counts[ids[j]]
	})
	top := ids[0]
	return top, counts[top], nil
}

// FileDeviceStore keeps the device registry in a single JSON file keyed by
// device ID. Expiry is lazy: ListActive filters stale entries without
// removing them.
type FileDeviceStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileDeviceStore creates the store and the backing file if absent.
func NewFileDeviceStore(path string) (*FileDeviceStore, error) {
	if err := ensureJSONFile(path); err != nil {
		return nil, err
	}
	return &FileDeviceStore{path: path, now: time.Now}, nil
}

// SetClock overrides the time source. Test hook.
func (s *FileDeviceStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *FileDeviceStore) Upsert(ctx context.Context, status model.DeviceStatus) error {
	if status.DeviceID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := readJSONMap[model.DeviceStatus](s.path)
	if err != nil {
		return err
	}
	if status.UpdatedAt == 0 {
		status.UpdatedAt = s.now().UnixMilli()
	}
	devices[status.DeviceID] = status
	return writeJSONMap(s.path, devices)
}

func (s *FileDeviceStore) ListActive(ctx context.Context, ttl time.Duration) ([]model.DeviceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := readJSONMap[model.DeviceStatus](s.path)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().UnixMilli() - ttl.Milliseconds()
	active := make([]model.DeviceStatus, 0, len(devices))
	for _, d := range devices {
		if d.UpdatedAt > cutoff {
			active = append(active, d)
		}
	}
	// Stable output order for clients rendering the roster.
	sort.Slice(active, func(i, j int) bool { return active[i].DeviceID < active[j].DeviceID })
	return active, nil
}

func (s *FileDeviceStore) Compact(ctx context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := readJSONMap[model.DeviceStatus](s.path)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UnixMilli() - ttl.Milliseconds()
	dropped := 0
	for id, d := range devices {
		if d.UpdatedAt <= cutoff {
			delete(devices, id)
			dropped++
		}
	}
	if dropped == 0 {
		return 0, nil
	}
	return dropped, writeJSONMap(s.path, devices)
}

func ensureJSONFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		return fmt.Errorf("init %s: %w", path, err)
	}
	return nil
}

func readJSONMap[V any](path string) (map[string]V, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m := make(map[string]V)
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

func writeJSONMap[V any](path string, m map[string]V) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
