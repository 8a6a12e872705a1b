// Package web provides the HTTP surface: websocket upgrade, health and stats
// endpoints, and static delivery of the bundled client.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Stats is the payload of the /stats endpoint.
type Stats struct {
	// Connections counts live websocket connections, logged in or not.
	Connections int `json:"connections"`
	// Rooms counts rooms with at least one member.
	Rooms int `json:"rooms"`
	// Members counts logged-in sessions across all rooms.
	Members int `json:"members"`
}

// StatsFunc reports current occupancy for the /stats endpoint.
type StatsFunc func() Stats

// RouterConfig holds the dependencies of the HTTP router.
type RouterConfig struct {
	Logger    *zap.Logger
	WS        http.Handler
	StaticDir string
	Stats     StatsFunc
}

// NewRouter creates the HTTP router with all routes configured.
//
// Precondition: all RouterConfig fields must be non-nil/non-empty.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Handle("/ws", cfg.WS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", statsHandler(cfg.Logger, cfg.Stats)).Methods(http.MethodGet)

	// Static client assets; everything else is presentation.
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir))).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func statsHandler(logger *zap.Logger, stats StatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats()); err != nil {
			logger.Error("writing stats response", zap.Error(err))
		}
	}
}
