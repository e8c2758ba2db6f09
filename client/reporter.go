// Package client is the network side of the player agent: status and
// heartbeat reporting, play count sync, layout preference sync and
// device roster polling against the status service.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"LanFM/logger"
	"LanFM/model"
)

// Reporter keeps the service's view of this device fresh. Every POST is
// fire-and-forget: failures are logged and dropped, never retried, and
// never block the caller.
type Reporter struct {
	baseURL  string
	deviceID string
	interval time.Duration
	http     *http.Client

	mu          sync.Mutex
	lastSong    *model.Song
	lastPlaying bool
	stopping    bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReporter creates a reporter for the service at baseURL.
func NewReporter(baseURL, deviceID string, interval time.Duration) *Reporter {
	return &Reporter{
		baseURL:  baseURL,
		deviceID: deviceID,
		interval: interval,
		http:     &http.Client{Timeout: 5 * time.Second},
		stop:     make(chan struct{}),
	}
}

// Start begins the heartbeat: an immediate ping, then an unconditional
// re-send of the current status every interval. The heartbeat is the
// liveness signal that keeps the device visible without playback changes.
func (r *Reporter) Start() {
	r.async(func() {
		r.postCurrent()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.postCurrent()
			case <-r.stop:
				return
			}
		}
	})
}

// Stop halts the heartbeat and sends the final "gone" status. Posts
// requested after Stop are dropped.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopping = true
		r.mu.Unlock()

		close(r.stop)
		r.wg.Wait()
		// Unload signal: not playing, no song.
		r.post(nil, false)
	})
}

// async runs fn on a tracked goroutine, unless the reporter is stopping.
// The stopping flag and the WaitGroup add share the mutex so Stop never
// waits concurrently with a new add.
func (r *Reporter) async(fn func()) {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// SetStatus records the new playback state and reports it immediately.
// Called on every play/pause transition.
func (r *Reporter) SetStatus(song *model.Song, isPlaying bool) {
	r.mu.Lock()
	r.lastSong = song
	r.lastPlaying = isPlaying
	r.mu.Unlock()

	r.async(func() {
		r.post(song, isPlaying)
	})
}

func (r *Reporter) postCurrent() {
	r.mu.Lock()
	song, playing := r.lastSong, r.lastPlaying
	r.mu.Unlock()
	r.post(song, playing)
}

func (r *Reporter) post(song *model.Song, isPlaying bool) {
	report := model.StatusReport{
		DeviceID:  r.deviceID,
		IsPlaying: isPlaying,
	}
	if song != nil {
		report.SongID = song.ID
		report.Title = song.Title
		report.Artist = song.Artist
	}

	if err := r.postJSON("/api/status", report, nil); err != nil {
		logger.Warn("status post failed", logger.ErrorField(err))
	}
}

// RecordPlay reports one play of a song. Fire-and-forget.
func (r *Reporter) RecordPlay(id string) {
	r.async(func() {
		body := struct {
			ID string `json:"id"`
		}{ID: id}
		if err := r.postJSON("/api/play", body, nil); err != nil {
			logger.Warn("play count sync failed", logger.String("id", id), logger.ErrorField(err))
		}
	})
}

// SetLayout reports the layout preference. Fire-and-forget.
func (r *Reporter) SetLayout(layout model.Layout) {
	r.async(func() {
		body := struct {
			Layout model.Layout `json:"layout"`
		}{Layout: layout}
		if err := r.postJSON("/api/layout", body, nil); err != nil {
			logger.Warn("layout sync failed", logger.ErrorField(err))
		}
	})
}

func (r *Reporter) postJSON(path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}

	resp, err := r.http.Post(r.baseURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: HTTP %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
