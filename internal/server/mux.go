// Package server exposes texture previews and archived textures over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// NewMux wires the preview routes. archive may be nil, in which case
// /archive/ answers 404.
func NewMux(od *OnDemandTextures, archive *ArchiveHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/textures/", od.Handler())
	mux.Handle("/status", od.StatusHandler())
	mux.Handle("/status/stream", od.StatusStreamHandler())

	if archive != nil {
		mux.Handle("/archive/", archive.Handler())
		mux.Handle("/archive", archive.IndexHandler())
	} else {
		mux.Handle("/archive/", http.NotFoundHandler())
	}

	return mux
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
