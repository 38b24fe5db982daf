package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/RG7on/data-aggregator/pkg/config"
	"github.com/RG7on/data-aggregator/pkg/httpx"
)

// HealthResponse is the /api/health body.
type HealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	SnapshotRows  int    `json:"snapshot_rows"`
	ScrapeLogRows int    `json:"scrape_log_rows"`
	OldestDate    string `json:"oldest_date,omitempty"`
	NewestDate    string `json:"newest_date,omitempty"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Uptime:        time.Since(s.start).String(),
		SnapshotRows:  stats.SnapshotRows,
		ScrapeLogRows: stats.ScrapeLogRows,
		OldestDate:    stats.OldestDate,
		NewestDate:    stats.NewestDate,
		DBSizeBytes:   stats.SizeBytes,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.loadConfig()
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	// Start from the current file so fields the UI doesn't send survive.
	cfg, err := s.loadConfig()
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if err := cfg.Save(); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("settings saved via control panel")
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := config.LoadCredentials(s.cfgDir)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, creds)
}

func (s *Server) handleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	var creds config.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if err := config.SaveCredentials(s.cfgDir, creds); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("credentials saved via control panel")
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleScrapeLog(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.store.ScrapeLog(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.LatestScrapeStatus(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{
		"reports": entries,
		"count":   len(entries),
	})
}
