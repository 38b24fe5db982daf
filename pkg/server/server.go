// Package server is the aggregator's control panel: a small local HTTP
// API for reading and writing the settings files, inspecting the scrape
// log, and following scrape status live over a websocket. It reads the
// same database file the scheduled pipeline writes; WAL journaling keeps
// the two processes out of each other's way.
package server

import (
	"log/slog"
	"time"

	"github.com/gorilla/mux"

	"github.com/RG7on/data-aggregator/pkg/config"
	"github.com/RG7on/data-aggregator/pkg/store"
)

// Server hosts the control panel API.
type Server struct {
	cfgDir string
	store  *store.Store
	hub    *StatusHub
	log    *slog.Logger
	start  time.Time
}

// New creates a control panel server over the given store. cfgDir is the
// directory holding settings.yaml and credentials.yaml. logger may be nil.
func New(cfgDir string, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfgDir: cfgDir,
		store:  st,
		hub:    NewStatusHub(logger),
		log:    logger,
		start:  time.Now(),
	}
}

// Hub returns the websocket hub so the caller can run it and the
// broadcast task alongside the HTTP server.
func (s *Server) Hub() *StatusHub { return s.hub }

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handleSaveSettings).Methods("POST")
	api.HandleFunc("/credentials", s.handleGetCredentials).Methods("GET")
	api.HandleFunc("/credentials", s.handleSaveCredentials).Methods("POST")
	api.HandleFunc("/scrape-log", s.handleScrapeLog).Methods("GET")
	api.HandleFunc("/scrape-status", s.handleScrapeStatus).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	r.HandleFunc("/ws/status", s.handleWebSocket).Methods("GET")
	return r
}

// loadConfig re-reads the settings file on every request so a save from
// one browser tab is visible to the next poll without restarting.
func (s *Server) loadConfig() (config.Config, error) {
	return config.Load(s.cfgDir)
}
