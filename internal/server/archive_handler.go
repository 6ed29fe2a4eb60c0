package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/MeKo-Tech/proctex/internal/store"
)

// ArchiveHandler serves textures from an archive database.
type ArchiveHandler struct {
	reader       *store.Reader
	logger       *slog.Logger
	cacheControl string
}

// ArchiveConfig configures the archive handler.
type ArchiveConfig struct {
	ArchivePath  string
	CacheControl string
}

// NewArchiveHandler opens the archive and creates a handler for it.
func NewArchiveHandler(cfg ArchiveConfig, logger *slog.Logger) (*ArchiveHandler, error) {
	reader, err := store.OpenReader(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	cacheControl := cfg.CacheControl
	if cacheControl == "" {
		cacheControl = "public, max-age=3600"
	}

	return &ArchiveHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cacheControl,
	}, nil
}

// Handler returns the HTTP handler function.
func (h *ArchiveHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveTexture(w, r)
	}
}

// IndexHandler lists the archived keys as JSON.
func (h *ArchiveHandler) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := h.reader.Keys()
		if err != nil {
			h.log().Error("Failed to list archive", "error", err)
			http.Error(w, "failed to list archive", http.StatusInternalServerError)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, h.log(), keys)
	}
}

// serveTexture serves a single texture from the archive.
func (h *ArchiveHandler) serveTexture(w http.ResponseWriter, r *http.Request) {
	key, ok := parseArchivePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	e, err := h.reader.Read(key)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Texture not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read texture", "key", key, "error", err)
		http.Error(w, "Failed to read texture", http.StatusInternalServerError)
		return
	}

	etag := etagFor(e.Hash)
	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")

	if _, err := w.Write(e.Data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// Close closes the archive reader.
func (h *ArchiveHandler) Close() error {
	return h.reader.Close()
}

func (h *ArchiveHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseArchivePath parses a path like /archive/clouds.png into its key.
func parseArchivePath(requestPath string) (string, bool) {
	if !strings.HasPrefix(requestPath, "/archive/") {
		return "", false
	}
	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".png") {
		return "", false
	}
	key := strings.TrimSuffix(base, ".png")
	if key == "" {
		return "", false
	}
	return key, true
}
