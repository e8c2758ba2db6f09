package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"LanFM/localstore"
	"LanFM/model"
	"LanFM/player"
)

// recordingServer captures API posts from the reporter.
type recordingServer struct {
	*httptest.Server

	mu       sync.Mutex
	statuses []model.StatusReport
	plays    []string
	layouts  []model.Layout
}

func newRecordingServer(t *testing.T) *recordingServer {
	t.Helper()
	rs := &recordingServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		var report model.StatusReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		rs.mu.Lock()
		rs.statuses = append(rs.statuses, report)
		rs.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/play", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID string `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		rs.mu.Lock()
		rs.plays = append(rs.plays, body.ID)
		rs.mu.Unlock()
		w.Write([]byte(`{"ok":true,"id":"` + body.ID + `","count":1}`))
	})
	mux.HandleFunc("/api/layout", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Layout model.Layout `json:"layout"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		rs.mu.Lock()
		rs.layouts = append(rs.layouts, body.Layout)
		rs.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) statusCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.statuses)
}

func TestReporterSetStatusPostsImmediately(t *testing.T) {
	rs := newRecordingServer(t)
	r := NewReporter(rs.URL, "dev-test", time.Hour)

	song := &model.Song{ID: "s1", Title: "One", Artist: "A"}
	r.SetStatus(song, true)
	r.Stop() // flushes in-flight posts, then sends the gone status

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.statuses) != 2 {
		t.Fatalf("got %d status posts, want 2 (transition + gone)", len(rs.statuses))
	}
	first := rs.statuses[0]
	if first.DeviceID != "dev-test" || !first.IsPlaying || first.SongID != "s1" || first.Title != "One" {
		t.Errorf("transition post = %+v", first)
	}
	gone := rs.statuses[1]
	if gone.IsPlaying || gone.SongID != "" {
		t.Errorf("gone post = %+v, want stopped with no song", gone)
	}
}

func TestReporterHeartbeatRepeatsCurrentStatus(t *testing.T) {
	rs := newRecordingServer(t)
	r := NewReporter(rs.URL, "dev-test", 25*time.Millisecond)

	r.Start()

	deadline := time.Now().Add(2 * time.Second)
	for rs.statusCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	r.Stop()

	if got := rs.statusCount(); got < 3 {
		t.Fatalf("got %d heartbeat posts, want at least 3", got)
	}
}

func TestReporterSwallowsNetworkFailure(t *testing.T) {
	// Nothing listens here; every post must fail silently.
	r := NewReporter("http://127.0.0.1:1", "dev-test", time.Hour)

	r.SetStatus(&model.Song{ID: "s1"}, true)
	r.RecordPlay("s1")
	r.Stop()
	// Reaching this point without a panic or block is the assertion.
}

func TestHeartbeatReportsPlayingAcrossRepeatOneRestart(t *testing.T) {
	rs := newRecordingServer(t)
	r := NewReporter(rs.URL, "dev-test", time.Hour)

	catalog := []model.Song{
		{ID: "s1", Title: "One", Artist: "A", Duration: 20, URL: "/media/one.mp3"},
	}
	ctrl := player.NewController(catalog, player.NullOutput{}, player.Capabilities{}, player.Hooks{
		OnStatus:      r.SetStatus,
		OnPlayCounted: r.RecordPlay,
	}, nil)
	ctrl.SetRepeat(player.RepeatOne)

	ctrl.Play(0)
	ctrl.OnTrackEnd()
	if !ctrl.IsPlaying() {
		t.Fatal("expected playback to resume after repeat-one end")
	}
	r.Stop() // flush the transition posts

	// Drive one heartbeat by hand: what it replays must match the
	// controller, which is still playing.
	r.postCurrent()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.statuses) == 0 {
		t.Fatal("no status posts recorded")
	}
	beat := rs.statuses[len(rs.statuses)-1]
	if !beat.IsPlaying || beat.SongID != "s1" {
		t.Errorf("heartbeat status = %+v, want playing s1", beat)
	}
}

func TestReporterDropsPostsAfterStop(t *testing.T) {
	rs := newRecordingServer(t)
	r := NewReporter(rs.URL, "dev-test", time.Hour)

	r.Stop() // sends only the gone status
	r.SetStatus(&model.Song{ID: "s1"}, true)
	r.RecordPlay("s1")
	r.SetLayout(model.LayoutTV)

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.statuses) != 1 {
		t.Errorf("got %d status posts, want only the gone status", len(rs.statuses))
	}
	if len(rs.plays) != 0 || len(rs.layouts) != 0 {
		t.Errorf("posts after Stop were sent: plays=%v layouts=%v", rs.plays, rs.layouts)
	}
}

func TestReporterRecordPlayAndLayout(t *testing.T) {
	rs := newRecordingServer(t)
	r := NewReporter(rs.URL, "dev-test", time.Hour)

	r.RecordPlay("s2")
	r.SetLayout(model.LayoutTV)
	r.Stop()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.plays) != 1 || rs.plays[0] != "s2" {
		t.Errorf("plays = %v, want [s2]", rs.plays)
	}
	if len(rs.layouts) != 1 || rs.layouts[0] != model.LayoutTV {
		t.Errorf("layouts = %v, want [tv]", rs.layouts)
	}
}

func TestRosterDiff(t *testing.T) {
	p := NewRosterPoller("http://unused", time.Hour, nil)

	first := p.diff([]model.DeviceStatus{
		{DeviceID: "a", IsPlaying: true},
		{DeviceID: "b"},
	})
	if len(first.Added) != 2 || len(first.Updated) != 0 || len(first.Removed) != 0 {
		t.Fatalf("first diff = %+v", first)
	}

	second := p.diff([]model.DeviceStatus{
		{DeviceID: "b", IsPlaying: true}, // still present, state changed
		{DeviceID: "c"},                  // new
	})
	if len(second.Added) != 1 || second.Added[0].DeviceID != "c" {
		t.Errorf("added = %+v, want [c]", second.Added)
	}
	if len(second.Updated) != 1 || second.Updated[0].DeviceID != "b" {
		t.Errorf("updated = %+v, want [b]", second.Updated)
	}
	if len(second.Removed) != 1 || second.Removed[0] != "a" {
		t.Errorf("removed = %+v, want [a]", second.Removed)
	}
}

func TestRosterPollerPollsImmediately(t *testing.T) {
	polled := make(chan []model.DeviceStatus, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"deviceId":"dev1","ip":"192.168.1.20","isPlaying":true,"song":null,"updatedAt":1,"ua":""}]`))
	}))
	defer srv.Close()

	p := NewRosterPoller(srv.URL, time.Hour, func(devices []model.DeviceStatus, diff RosterDiff) {
		select {
		case polled <- devices:
		default:
		}
	})
	p.Start()
	defer p.Stop()

	select {
	case devices := <-polled:
		if len(devices) != 1 || devices[0].DeviceID != "dev1" {
			t.Errorf("devices = %+v", devices)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no poll within the activation window")
	}
}

func TestEnsureDeviceIDIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")

	local, err := localstore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id := EnsureDeviceID(local)
	if id == "" {
		t.Fatal("empty device id")
	}

	// Same identity across a simulated restart.
	reopened, err := localstore.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again := EnsureDeviceID(reopened); again != id {
		t.Errorf("device id changed across restart: %q then %q", id, again)
	}
}
