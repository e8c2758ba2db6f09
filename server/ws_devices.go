package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"LanFM/logger"
	"LanFM/model"
	"LanFM/store"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DeviceHub pushes roster snapshots to connected WebSocket clients
// whenever a device reports status. It supplements the polling endpoint;
// clients that only poll never touch it.
type DeviceHub struct {
	devices store.DeviceStore
	ttl     time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	changed chan struct{}
	done    chan struct{}
}

// NewDeviceHub creates the hub and starts its broadcast loop.
func NewDeviceHub(devices store.DeviceStore, ttl time.Duration) *DeviceHub {
	h := &DeviceHub{
		devices: devices,
		ttl:     ttl,
		clients: make(map[*websocket.Conn]struct{}),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

// NotifyChanged schedules a roster broadcast. Coalesces bursts: a
// broadcast already pending absorbs further notifications.
func (h *DeviceHub) NotifyChanged() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Close stops the broadcast loop and drops all clients.
func (h *DeviceHub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

func (h *DeviceHub) run() {
	for {
		select {
		case <-h.changed:
			h.broadcast()
		case <-h.done:
			return
		}
	}
}

func (h *DeviceHub) broadcast() {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	active, err := h.snapshot()
	if err != nil {
		logger.Warn("roster broadcast skipped", logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(active); err != nil {
			logger.Debug("roster client dropped", logger.ErrorField(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *DeviceHub) snapshot() ([]model.DeviceStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	active, err := h.devices.ListActive(ctx, h.ttl)
	if err != nil {
		return nil, err
	}
	if active == nil {
		active = []model.DeviceStatus{}
	}
	return active, nil
}

// DevicesWebSocketHandler upgrades the connection and feeds it roster
// snapshots, starting with the current one.
func (h *APIHandler) DevicesWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "roster feed disabled", http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	active, err := h.hub.snapshot()
	if err != nil {
		logger.Warn("initial roster snapshot failed", logger.ErrorField(err))
		conn.Close()
		return
	}
	if err := conn.WriteJSON(active); err != nil {
		conn.Close()
		return
	}

	h.hub.mu.Lock()
	h.hub.clients[conn] = struct{}{}
	h.hub.mu.Unlock()

	// Reader goroutine: we never expect client messages, but reading
	// detects disconnects and services control frames.
	go func() {
		defer func() {
			h.hub.mu.Lock()
			delete(h.hub.clients, conn)
			h.hub.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
