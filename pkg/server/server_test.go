package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RG7on/data-aggregator/pkg/config"
	"github.com/RG7on/data-aggregator/pkg/store"
	"github.com/RG7on/data-aggregator/pkg/worker"
)

func newTestServer(t *testing.T) (*Server, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(store.Config{Path: filepath.Join(dir, store.DBFilename)})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return New(dir, st, nil), st, dir
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, st, _ := newTestServer(t)

	require.NoError(t, st.UpsertMetrics(context.Background(), "erp",
		[]worker.Observation{{MetricTitle: "m", Value: "1"}}, "2026-08-20"))

	rec := doRequest(t, s, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.SnapshotRows)
	assert.Equal(t, "2026-08-20", body.NewestDate)
}

func TestSettingsRoundTripOverHTTP(t *testing.T) {
	s, _, dir := newTestServer(t)

	rec := doRequest(t, s, "GET", "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 90, cfg.Global.DataRetentionDays)

	// Save a change and read it back from disk.
	cfg.Global.DataRetentionDays = 45
	payload, err := json.Marshal(cfg)
	require.NoError(t, err)
	rec = doRequest(t, s, "POST", "/api/settings", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 45, saved.Global.DataRetentionDays)
}

func TestSettingsRejectsBadJSON(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, "POST", "/api/settings", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCredentialsRoundTripOverHTTP(t *testing.T) {
	s, _, _ := newTestServer(t)

	payload := []byte(`{"erp": {"username": "svc-kpi", "password": "hunter2"}}`)
	rec := doRequest(t, s, "POST", "/api/credentials", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, "GET", "/api/credentials", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var creds config.Credentials
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creds))
	assert.Equal(t, "svc-kpi", creds["erp"].Username)
}

func TestScrapeLogEndpoint(t *testing.T) {
	s, st, _ := newTestServer(t)
	ctx := context.Background()

	st.LogScrape(ctx, "erp", "daily", store.StatusSuccess, 10, time.Second, "")
	st.LogScrape(ctx, "crm", "", store.StatusError, 0, time.Second, "boom")

	rec := doRequest(t, s, "GET", "/api/scrape-log?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []store.ScrapeEntry `json:"entries"`
		Count   int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "crm", body.Entries[0].Source)

	rec = doRequest(t, s, "GET", "/api/scrape-log?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeStatusEndpoint(t *testing.T) {
	s, st, _ := newTestServer(t)
	ctx := context.Background()

	st.LogScrape(ctx, "erp", "daily", store.StatusError, 0, time.Second, "timeout")
	st.LogScrape(ctx, "erp", "daily", store.StatusSuccess, 12, time.Second, "")

	rec := doRequest(t, s, "GET", "/api/scrape-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reports []store.ScrapeEntry `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Reports, 1)
	assert.Equal(t, store.StatusSuccess, body.Reports[0].Status)
}
