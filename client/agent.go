package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"LanFM/localstore"
	"LanFM/logger"
	"LanFM/model"
	"LanFM/player"
)

// AgentConfig configures a headless player agent.
type AgentConfig struct {
	ServerURL      string
	LocalStatePath string
	Layout         model.Layout
	Caps           player.Capabilities
	Heartbeat      time.Duration
	RosterPoll     time.Duration
}

// Agent is one device: a playback controller wired to the status
// service. It stands in for the browser player on machines without one.
type Agent struct {
	ctrl     *player.Controller
	reporter *Reporter
	poller   *RosterPoller
	local    *localstore.Store
	deviceID string
}

// NewAgent builds the agent: local state, device identity, catalog
// fetch, controller and reporting wiring.
func NewAgent(cfg AgentConfig, out player.Output) (*Agent, error) {
	local, err := localstore.Open(cfg.LocalStatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	deviceID := EnsureDeviceID(local)

	songs, err := FetchCatalog(cfg.ServerURL)
	if err != nil {
		// Same stance as the original player when songs.json cannot be
		// fetched: start with an empty catalog.
		logger.Warn("catalog fetch failed, starting empty", logger.ErrorField(err))
		songs = nil
	}

	reporter := NewReporter(cfg.ServerURL, deviceID, cfg.Heartbeat)
	hooks := player.Hooks{
		OnStatus:      reporter.SetStatus,
		OnPlayCounted: reporter.RecordPlay,
	}
	ctrl := player.NewController(songs, out, cfg.Caps, hooks, local)

	a := &Agent{
		ctrl:     ctrl,
		reporter: reporter,
		local:    local,
		deviceID: deviceID,
	}

	if cfg.Caps.DeviceRoster {
		a.poller = NewRosterPoller(cfg.ServerURL, cfg.RosterPoll, func(devices []model.DeviceStatus, diff RosterDiff) {
			for _, d := range diff.Added {
				logger.Info("device appeared",
					logger.String("deviceId", d.DeviceID),
					logger.String("ip", d.IP),
					logger.Bool("playing", d.IsPlaying))
			}
			for _, id := range diff.Removed {
				logger.Info("device gone", logger.String("deviceId", id))
			}
		})
	}

	a.syncLayout(cfg.Layout)
	return a, nil
}

// syncLayout persists the preferred layout and reports it when it
// changed since the last run.
func (a *Agent) syncLayout(layout model.Layout) {
	if !layout.Valid() {
		return
	}
	var stored model.Layout
	a.local.Get(localstore.KeyPreferredLayout, &stored)
	if stored == layout {
		return
	}
	if err := a.local.Set(localstore.KeyPreferredLayout, layout); err != nil {
		logger.Warn("layout persist failed", logger.ErrorField(err))
	}
	a.reporter.SetLayout(layout)
}

// Controller exposes the playback controller for interactive frontends.
func (a *Agent) Controller() *player.Controller {
	return a.ctrl
}

// DeviceID returns this agent's stable identity.
func (a *Agent) DeviceID() string {
	return a.deviceID
}

// Run starts heartbeat, roster polling and the progress timer, then
// blocks until ctx is done. On shutdown the final "gone" status is sent.
func (a *Agent) Run(ctx context.Context) {
	a.reporter.Start()
	if a.poller != nil {
		a.poller.Start()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.ctrl.Tick()
		case <-ctx.Done():
			if a.poller != nil {
				a.poller.Stop()
			}
			a.reporter.Stop()
			return
		}
	}
}

// FetchCatalog loads the song catalog from the status service.
func FetchCatalog(baseURL string) ([]model.Song, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/songs")
	if err != nil {
		return nil, fmt.Errorf("get catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get catalog: HTTP %d", resp.StatusCode)
	}

	var songs []model.Song
	if err := json.NewDecoder(resp.Body).Decode(&songs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return songs, nil
}
