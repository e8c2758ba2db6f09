package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"LanFM/catalog"
	"LanFM/config"
	"LanFM/model"
	"LanFM/store"
)

type testEnv struct {
	handler *APIHandler
	devices *store.FileDeviceStore
	clock   *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		DeviceTTL: 10 * time.Minute,
	}

	counts, err := store.NewFileCountStore(filepath.Join(dir, "playcounts.server.json"))
	if err != nil {
		t.Fatalf("NewFileCountStore: %v", err)
	}
	devices, err := store.NewFileDeviceStore(filepath.Join(dir, "devices.server.json"))
	if err != nil {
		t.Fatalf("NewFileDeviceStore: %v", err)
	}

	catalogPath := filepath.Join(dir, "songs.json")
	if err := os.WriteFile(catalogPath, []byte(`[{"id":"s1","title":"One","artist":"A","duration":60,"url":"/media/one.mp3"}]`), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{devices: devices, clock: &clock}
	now := func() time.Time { return *env.clock }
	devices.SetClock(now)

	h := NewAPIHandler(counts, devices, cat, nil, cfg)
	h.now = now
	env.handler = h
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRecordPlay(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing id is a client error", func(t *testing.T) {
		w := doJSON(t, env.handler.RecordPlayHandler, http.MethodPost, "/api/play", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("increments and returns the new count", func(t *testing.T) {
		w := doJSON(t, env.handler.RecordPlayHandler, http.MethodPost, "/api/play", `{"id":"X"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp struct {
			OK    bool   `json:"ok"`
			ID    string `json:"id"`
			Count int64  `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.OK || resp.ID != "X" || resp.Count != 1 {
			t.Errorf("resp = %+v", resp)
		}
	})
}

func TestTopPlayed(t *testing.T) {
	env := newTestEnv(t)

	t.Run("empty store yields null sentinel", func(t *testing.T) {
		w := doJSON(t, env.handler.TopPlayedHandler, http.MethodGet, "/api/top", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := strings.TrimSpace(w.Body.String())
		if body != `{"id":null,"count":0}` {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("two plays of X surface as top", func(t *testing.T) {
		doJSON(t, env.handler.RecordPlayHandler, http.MethodPost, "/api/play", `{"id":"X"}`)
		doJSON(t, env.handler.RecordPlayHandler, http.MethodPost, "/api/play", `{"id":"X"}`)

		w := doJSON(t, env.handler.TopPlayedHandler, http.MethodGet, "/api/top", "")
		var resp struct {
			ID    *string `json:"id"`
			Count int64   `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ID == nil || *resp.ID != "X" || resp.Count != 2 {
			t.Errorf("top = %+v", resp)
		}
	})
}

func TestReportStatus(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing deviceId is a client error", func(t *testing.T) {
		w := doJSON(t, env.handler.ReportStatusHandler, http.MethodPost, "/api/status", `{"isPlaying":true}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("report then list includes the device", func(t *testing.T) {
		body := `{"deviceId":"dev1","songId":"s1","isPlaying":true,"title":"One","artist":"A"}`
		w := doJSON(t, env.handler.ReportStatusHandler, http.MethodPost, "/api/status", body)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}

		devices := listDevices(t, env)
		if len(devices) != 1 {
			t.Fatalf("got %d devices, want 1", len(devices))
		}
		d := devices[0]
		if d.DeviceID != "dev1" || !d.IsPlaying {
			t.Errorf("device = %+v", d)
		}
		if d.Song == nil || d.Song.ID != "s1" || d.Song.Title != "One" {
			t.Errorf("song = %+v", d.Song)
		}
	})

	t.Run("device expires after the TTL", func(t *testing.T) {
		env.advance(10*time.Minute + time.Second)
		if devices := listDevices(t, env); len(devices) != 0 {
			t.Errorf("stale device still listed: %+v", devices)
		}
	})
}

func TestReportStatusCapturesClientIP(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"socket address", "192.168.1.20:51234", "", "192.168.1.20"},
		{"forwarded chain keeps first hop", "10.0.0.1:80", "192.168.1.30, 10.0.0.1", "192.168.1.30"},
		{"ipv6-mapped ipv4 normalized", "[::ffff:192.168.1.40]:9999", "", "192.168.1.40"},
		{"loopback normalized", "", "::1", "127.0.0.1"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deviceID := "ip-dev-" + string(rune('a'+i))
			req := httptest.NewRequest(http.MethodPost, "/api/status",
				strings.NewReader(`{"deviceId":"`+deviceID+`","isPlaying":false}`))
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			w := httptest.NewRecorder()
			env.handler.ReportStatusHandler(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}

			for _, d := range listDevices(t, env) {
				if d.DeviceID == deviceID {
					if d.IP != tt.want {
						t.Errorf("ip = %q, want %q", d.IP, tt.want)
					}
					return
				}
			}
			t.Fatalf("device %s not listed", deviceID)
		})
	}
}

func listDevices(t *testing.T, env *testEnv) []model.DeviceStatus {
	t.Helper()
	w := doJSON(t, env.handler.ListDevicesHandler, http.MethodGet, "/api/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	var devices []model.DeviceStatus
	if err := json.Unmarshal(w.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode devices: %v", err)
	}
	return devices
}

func TestSetLayout(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid layout sets the cookie", func(t *testing.T) {
		w := doJSON(t, env.handler.SetLayoutHandler, http.MethodPost, "/api/layout", `{"layout":"desktop"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("got %d cookies, want 1", len(cookies))
		}
		c := cookies[0]
		if c.Name != "layout" || c.Value != "desktop" {
			t.Errorf("cookie = %s=%s", c.Name, c.Value)
		}
		if c.MaxAge != layoutCookieMaxAge {
			t.Errorf("cookie MaxAge = %d, want %d", c.MaxAge, layoutCookieMaxAge)
		}
	})

	t.Run("unknown layout is rejected without a cookie", func(t *testing.T) {
		w := doJSON(t, env.handler.SetLayoutHandler, http.MethodPost, "/api/layout", `{"layout":"watch"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if got := len(w.Result().Cookies()); got != 0 {
			t.Errorf("got %d cookies, want 0", got)
		}
	})
}

func TestClearLayout(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/clear-layout", nil)
	w := httptest.NewRecorder()
	env.handler.ClearLayoutHandler(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected expiring layout cookie, got %+v", cookies)
	}
}

func TestSongsHandler(t *testing.T) {
	env := newTestEnv(t)

	w := doJSON(t, env.handler.SongsHandler, http.MethodGet, "/api/songs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var songs []model.Song
	if err := json.Unmarshal(w.Body.Bytes(), &songs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(songs) != 1 || songs[0].ID != "s1" {
		t.Errorf("songs = %+v", songs)
	}
}
