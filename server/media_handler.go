package server

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"LanFM/config"
	"LanFM/logger"
	"LanFM/storage"

	"github.com/minio/minio-go/v7"
)

// MediaHandler serves audio files and cover art under /media/. Objects
// come from the MinIO bucket when one is configured, otherwise from the
// local media directory.
type MediaHandler struct {
	cfg   *config.Config
	local http.Handler
}

// NewMediaHandler creates the media handler.
func NewMediaHandler(cfg *config.Config) *MediaHandler {
	return &MediaHandler{
		cfg:   cfg,
		local: http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))),
	}
}

// ServeHTTP implements http.Handler.
func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	client := storage.GetMinioClient()
	if client == nil {
		h.local.ServeHTTP(w, r)
		return
	}

	objectPath := strings.TrimPrefix(r.URL.Path, "/media/")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := client.GetObject(ctx, h.cfg.MinioBucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	// GetObject is lazy; a stat failure is the real not-found signal.
	if _, err := object.Stat(); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", detectContentType(objectPath))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Error("error serving media object", logger.String("object", objectPath), logger.ErrorField(err))
	}
}

// detectContentType maps a media object path to its content type.
func detectContentType(p string) string {
	switch path.Ext(p) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
