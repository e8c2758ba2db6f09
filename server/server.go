package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LanFM/catalog"
	"LanFM/config"
	"LanFM/logger"
	"LanFM/storage"
	"LanFM/store"

	"github.com/gorilla/mux"
)

// Start initializes and runs the status service until SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	counts, devices, cleanup, err := buildStores(cfg)
	if err != nil {
		logger.Fatal("failed to initialize stores", logger.ErrorField(err))
	}
	defer cleanup()

	if cfg.MinioEndpoint != "" {
		if err := storage.InitMinio(cfg); err != nil {
			logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
		}
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load catalog", logger.ErrorField(err))
	}
	if err := cat.Watch(); err != nil {
		logger.Warn("catalog watch unavailable", logger.ErrorField(err))
	}
	defer cat.Close()

	hub := NewDeviceHub(devices, cfg.DeviceTTL)
	defer hub.Close()

	apiHandler := NewAPIHandler(counts, devices, cat, hub, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// API endpoints
	router.HandleFunc("/api/play", apiHandler.RecordPlayHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/top", apiHandler.TopPlayedHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/status", apiHandler.ReportStatusHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/devices", apiHandler.ListDevicesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/layout", apiHandler.SetLayoutHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/songs", apiHandler.SongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/clear-layout", apiHandler.ClearLayoutHandler).Methods(http.MethodGet)

	// Live roster feed
	router.HandleFunc("/ws/devices", apiHandler.DevicesWebSocketHandler)

	// Media files (MinIO bucket or local directory)
	router.PathPrefix("/media/").Handler(NewMediaHandler(cfg))

	// Frontend UI serving
	uiFileServer := http.FileServer(http.Dir(cfg.WebAppDir))
	router.PathPrefix("/").Handler(uiFileServer)

	server.Handler = router

	// Optional background compaction of the device registry. Off by
	// default; listings already filter stale entries.
	compactDone := make(chan struct{})
	if cfg.CompactInterval > 0 {
		go compactLoop(devices, cfg, compactDone)
	}
	defer close(compactDone)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("status service starting",
			logger.String("addr", cfg.ServerAddr),
			logger.String("backend", cfg.StoreBackend),
			logger.Duration("deviceTTL", cfg.DeviceTTL))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

// buildStores selects the persistence backend from configuration.
func buildStores(cfg *config.Config) (store.CountStore, store.DeviceStore, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		client, err := store.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return store.NewRedisCountStore(client),
			store.NewRedisDeviceStore(client, 2*cfg.DeviceTTL),
			func() { client.Close() },
			nil
	default:
		counts, err := store.NewFileCountStore(cfg.CountsFile)
		if err != nil {
			return nil, nil, nil, err
		}
		devices, err := store.NewFileDeviceStore(cfg.DevicesFile)
		if err != nil {
			return nil, nil, nil, err
		}
		return counts, devices, func() {}, nil
	}
}

func compactLoop(devices store.DeviceStore, cfg *config.Config, done <-chan struct{}) {
	ticker := time.NewTicker(cfg.CompactInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			dropped, err := devices.Compact(ctx, cfg.DeviceTTL)
			cancel()
			if err != nil {
				logger.Warn("registry compaction failed", logger.ErrorField(err))
				continue
			}
			if dropped > 0 {
				logger.Info("registry compacted", logger.Int("dropped", dropped))
			}
		case <-done:
			return
		}
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
