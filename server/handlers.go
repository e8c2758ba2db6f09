package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"LanFM/catalog"
	"LanFM/config"
	"LanFM/logger"
	"LanFM/model"
	"LanFM/store"
)

// layoutCookieMaxAge is one year, matching the layout preference lifetime.
const layoutCookieMaxAge = 60 * 60 * 24 * 365

// APIHandler carries the dependencies of every API endpoint.
type APIHandler struct {
	counts  store.CountStore
	devices store.DeviceStore
	catalog *catalog.Catalog
	hub     *DeviceHub
	cfg     *config.Config
	now     func() time.Time
}

// NewAPIHandler creates the API handler. hub may be nil when the
// WebSocket roster feed is disabled.
func NewAPIHandler(
	counts store.CountStore,
	devices store.DeviceStore,
	cat *catalog.Catalog,
	hub *DeviceHub,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		counts:  counts,
		devices: devices,
		catalog: cat,
		hub:     hub,
		cfg:     cfg,
		now:     time.Now,
	}
}

type playRequest struct {
	ID string `json:"id"`
}

type playResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// RecordPlayHandler increments the persisted play count for one song.
func (h *APIHandler) RecordPlayHandler(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		respondError(w, http.StatusBadRequest, "missing id")
		return
	}

	count, err := h.counts.Increment(r.Context(), req.ID)
	if err != nil {
		logger.Error("record play failed", logger.String("id", req.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to record play")
		return
	}

	respondJSON(w, http.StatusOK, playResponse{OK: true, ID: req.ID, Count: count})
}

type topResponse struct {
	ID    *string `json:"id"`
	Count int64   `json:"count"`
}

// TopPlayedHandler returns the single highest-count song, or a null
// sentinel when nothing has been played.
func (h *APIHandler) TopPlayedHandler(w http.ResponseWriter, r *http.Request) {
	id, count, err := h.counts.Top(r.Context())
	if err != nil {
		logger.Error("top played lookup failed", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to read play counts")
		return
	}

	resp := topResponse{Count: count}
	if id != "" {
		resp.ID = &id
	}
	respondJSON(w, http.StatusOK, resp)
}

// ReportStatusHandler upserts a device's registry entry from a status or
// heartbeat report. The entry is a full overwrite with a fresh timestamp.
func (h *APIHandler) ReportStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req model.StatusReport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "missing deviceId")
		return
	}

	status := model.DeviceStatus{
		DeviceID:  req.DeviceID,
		IP:        clientIP(r),
		IsPlaying: req.IsPlaying,
		UpdatedAt: h.now().UnixMilli(),
		UserAgent: r.UserAgent(),
	}
	if req.SongID != "" {
		status.Song = &model.NowPlaying{ID: req.SongID, Title: req.Title, Artist: req.Artist}
	}

	if err := h.devices.Upsert(r.Context(), status); err != nil {
		logger.Error("status upsert failed", logger.String("deviceId", req.DeviceID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to store status")
		return
	}

	if h.hub != nil {
		h.hub.NotifyChanged()
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListDevicesHandler returns registry entries updated within the TTL
// window. Stale entries are hidden, not deleted.
func (h *APIHandler) ListDevicesHandler(w http.ResponseWriter, r *http.Request) {
	active, err := h.devices.ListActive(r.Context(), h.cfg.DeviceTTL)
	if err != nil {
		logger.Error("device listing failed", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to read device registry")
		return
	}
	if active == nil {
		active = []model.DeviceStatus{}
	}
	respondJSON(w, http.StatusOK, active)
}

type layoutRequest struct {
	Layout model.Layout `json:"layout"`
}

type layoutResponse struct {
	OK     bool         `json:"ok"`
	Layout model.Layout `json:"layout"`
}

// SetLayoutHandler validates the layout preference and sets the
// long-lived layout cookie. No server-side persistence beyond the cookie.
func (h *APIHandler) SetLayoutHandler(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Layout.Valid() {
		respondError(w, http.StatusBadRequest, "invalid layout")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "layout",
		Value:    string(req.Layout),
		Path:     "/",
		MaxAge:   layoutCookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, layoutResponse{OK: true, Layout: req.Layout})
}

// ClearLayoutHandler clears the layout cookie and sends the client back
// to the entry page to renegotiate.
func (h *APIHandler) ClearLayoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "layout",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// SongsHandler serves the current catalog snapshot.
func (h *APIHandler) SongsHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := h.catalog.MarshalJSON()
	if err != nil {
		logger.Error("catalog encode failed", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to encode catalog")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		logger.Warn("catalog write failed", logger.ErrorField(err))
	}
}

// clientIP derives the caller address from the forwarded header chain or
// the socket address, normalized to canonical dotted form.
func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	// First hop of a proxy chain.
	if idx := strings.Index(ip, ","); idx != -1 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ip = strings.TrimPrefix(ip, "::ffff:")
	if ip == "::1" {
		ip = "127.0.0.1"
	}
	return ip
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("response encode failed", logger.ErrorField(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
