package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"LanFM/logger"
	"LanFM/model"
)

// RosterDiff describes how the device roster changed between two polls,
// keyed by device identity, so consumers can update rows in place
// instead of rebuilding the whole view.
type RosterDiff struct {
	Added   []model.DeviceStatus
	Updated []model.DeviceStatus
	Removed []string // device IDs no longer present
}

// RosterPoller polls the registry endpoint while the roster view is
// active: once immediately on activation, then at a fixed interval.
type RosterPoller struct {
	baseURL  string
	interval time.Duration
	http     *http.Client
	onDiff   func(devices []model.DeviceStatus, diff RosterDiff)

	mu   sync.Mutex
	prev map[string]model.DeviceStatus
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewRosterPoller creates a poller. onDiff receives the full roster plus
// the identity diff after every successful poll.
func NewRosterPoller(baseURL string, interval time.Duration, onDiff func([]model.DeviceStatus, RosterDiff)) *RosterPoller {
	return &RosterPoller{
		baseURL:  baseURL,
		interval: interval,
		http:     &http.Client{Timeout: 5 * time.Second},
		onDiff:   onDiff,
	}
}

// Start activates polling. No-op when already active.
func (p *RosterPoller) Start() {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.poll()
			case <-stop:
				return
			}
		}
	}()
}

// Stop deactivates polling. No-op when not active.
func (p *RosterPoller) Stop() {
	p.mu.Lock()
	if p.stop == nil {
		p.mu.Unlock()
		return
	}
	close(p.stop)
	p.stop = nil
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *RosterPoller) poll() {
	devices, err := p.fetch()
	if err != nil {
		logger.Warn("device poll failed", logger.ErrorField(err))
		return
	}

	diff := p.diff(devices)
	if p.onDiff != nil {
		p.onDiff(devices, diff)
	}
}

func (p *RosterPoller) fetch() ([]model.DeviceStatus, error) {
	resp, err := p.http.Get(p.baseURL + "/api/devices")
	if err != nil {
		return nil, fmt.Errorf("get devices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get devices: HTTP %d", resp.StatusCode)
	}

	var devices []model.DeviceStatus
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		return nil, fmt.Errorf("decode devices: %w", err)
	}
	return devices, nil
}

// diff compares the latest roster with the previous one by device ID.
func (p *RosterPoller) diff(devices []model.DeviceStatus) RosterDiff {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]model.DeviceStatus, len(devices))
	var d RosterDiff
	for _, dev := range devices {
		next[dev.DeviceID] = dev
		if _, ok := p.prev[dev.DeviceID]; ok {
			d.Updated = append(d.Updated, dev)
		} else {
			d.Added = append(d.Added, dev)
		}
	}
	for id := range p.prev {
		if _, ok := next[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	p.prev = next
	return d
}
