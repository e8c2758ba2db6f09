// Package catalog loads the immutable song list from a static JSON
// document and keeps an in-memory snapshot that hot-reloads when the
// document changes on disk.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"LanFM/logger"
	"LanFM/model"

	"github.com/fsnotify/fsnotify"
)

// Catalog holds the current song snapshot. Songs returns a shared slice
// that callers must treat as read-only; a reload swaps the whole slice.
type Catalog struct {
	mu    sync.RWMutex
	path  string
	songs []model.Song
	byID  map[string]model.Song

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Load reads the catalog document at path. A missing document yields an
// empty catalog rather than an error, matching the original player's
// behavior when songs.json cannot be fetched. A document that exists but
// cannot be read or parsed is an error.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path, done: make(chan struct{})}
	if err := c.reload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		logger.Warn("catalog missing, starting empty", logger.String("path", path))
		c.setSongs(nil)
	}
	return c, nil
}

// Watch starts reloading the catalog whenever the document changes.
// Stops when Close is called.
func (c *Catalog) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch catalog dir: %w", err)
	}
	c.watcher = watcher

	go func() {
		base := filepath.Base(c.path)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := c.reload(); err != nil {
					logger.Warn("catalog reload failed", logger.ErrorField(err))
					continue
				}
				logger.Info("catalog reloaded",
					logger.String("path", c.path), logger.Int("songs", c.Len()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher error", logger.ErrorField(err))
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (c *Catalog) Close() {
	close(c.done)
	if c.watcher != nil {
		c.watcher.Close()
	}
}

func (c *Catalog) reload() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var songs []model.Song
	if err := json.Unmarshal(raw, &songs); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	c.setSongs(songs)
	return nil
}

func (c *Catalog) setSongs(songs []model.Song) {
	byID := make(map[string]model.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}
	c.mu.Lock()
	c.songs = songs
	c.byID = byID
	c.mu.Unlock()
}

// Songs returns the current snapshot.
func (c *Catalog) Songs() []model.Song {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.songs
}

// Get looks a song up by ID.
func (c *Catalog) Get(id string) (model.Song, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	return s, ok
}

// Len returns the number of songs in the current snapshot.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.songs)
}

// MarshalJSON serves the snapshot as the catalog document.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.songs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.songs)
}
