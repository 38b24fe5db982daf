package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RG7on/data-aggregator/pkg/store"
	"github.com/RG7on/data-aggregator/pkg/worker"
)

func newStoreWithData(t *testing.T) *store.Store {
	t.Helper()
	ts, err := time.Parse(store.TimestampLayout, "2026-08-20 07:00:00")
	require.NoError(t, err)

	s, err := store.Open(store.Config{
		Path:  filepath.Join(t.TempDir(), store.DBFilename),
		Clock: clockwork.NewFakeClockAt(ts),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.UpsertMetrics(ctx, "erp", []worker.Observation{
		{MetricTitle: "total_items", Value: "42"},
		{MetricTitle: "pending_count", Value: "7"},
	}, "2026-08-20"))
	require.NoError(t, s.UpsertMetrics(ctx, "helpdesk", []worker.Observation{
		{MetricTitle: "tickets", Category: "open", SubCategory: "urgent", Value: "3"},
	}, "2026-08-19"))
	return s
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportRoundTrip(t *testing.T) {
	s := newStoreWithData(t)
	outDir := t.TempDir()

	res, err := New(s, nil).Export(context.Background(), outDir, "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowsExported)
	assert.False(t, res.SharedOK)

	records := readCSV(t, res.LocalPath)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"date", "timestamp", "source", "metric_title", "category", "sub_category", "value"}, records[0])
	assert.Equal(t, []string{"2026-08-19", "2026-08-20 07:00:00", "helpdesk", "tickets", "open", "urgent", "3"}, records[1])
	assert.Equal(t, []string{"2026-08-20", "2026-08-20 07:00:00", "erp", "pending_count", "", "", "7"}, records[2])
	assert.Equal(t, []string{"2026-08-20", "2026-08-20 07:00:00", "erp", "total_items", "", "", "42"}, records[3])

	// No temp file left behind.
	_, err = os.Stat(res.LocalPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestExportOverwritesPrevious(t *testing.T) {
	s := newStoreWithData(t)
	outDir := t.TempDir()
	exp := New(s, nil)
	ctx := context.Background()

	_, err := exp.Export(ctx, outDir, "")
	require.NoError(t, err)

	require.NoError(t, s.UpsertMetrics(ctx, "erp", []worker.Observation{
		{MetricTitle: "total_items", Value: "99"},
	}, "2026-08-21"))

	res, err := exp.Export(ctx, outDir, "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowsExported)

	records := readCSV(t, res.LocalPath)
	assert.Len(t, records, 5)
}

func TestExportSharedCopy(t *testing.T) {
	s := newStoreWithData(t)
	sharedPath := filepath.Join(t.TempDir(), "drive", "kpi", "kpi_snapshots.csv")

	res, err := New(s, nil).Export(context.Background(), t.TempDir(), sharedPath)
	require.NoError(t, err)
	assert.True(t, res.SharedOK)

	records := readCSV(t, sharedPath)
	assert.Len(t, records, 4)
}

func TestExportSharedFailureIsNotFatal(t *testing.T) {
	s := newStoreWithData(t)
	outDir := t.TempDir()

	// A file where the parent directory should be makes the shared write
	// fail while the local one succeeds.
	blocker := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	sharedPath := filepath.Join(blocker, "kpi_snapshots.csv")

	res, err := New(s, nil).Export(context.Background(), outDir, sharedPath)
	require.NoError(t, err)
	assert.False(t, res.SharedOK)
	assert.Equal(t, 3, res.RowsExported)
	assert.FileExists(t, res.LocalPath)
}

func TestExportEmptyStore(t *testing.T) {
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), store.DBFilename)})
	require.NoError(t, err)
	defer s.Close()

	res, err := New(s, nil).Export(context.Background(), t.TempDir(), "")
	require.NoError(t, err)
	assert.Zero(t, res.RowsExported)

	// Header row only.
	records := readCSV(t, res.LocalPath)
	assert.Len(t, records, 1)
}
