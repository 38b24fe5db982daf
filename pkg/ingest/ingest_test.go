package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RG7on/data-aggregator/pkg/docgen"
	"github.com/RG7on/data-aggregator/pkg/store"
	"github.com/RG7on/data-aggregator/pkg/worker"
)

func newTestAdapter(t *testing.T, maxIdentifiers int) (*Adapter, *store.Store, *docgen.Dictionary) {
	t.Helper()
	dir := t.TempDir()

	ts, err := time.Parse(store.TimestampLayout, "2026-08-20 07:00:00")
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(ts)

	st, err := store.Open(store.Config{
		Path:  filepath.Join(dir, store.DBFilename),
		Clock: clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	docs := docgen.New(filepath.Join(dir, docgen.Filename), clock, nil)
	a := New(Config{Store: st, Docs: docs, MaxIdentifiersPerSource: maxIdentifiers})
	return a, st, docs
}

func TestProcessWorkerResultLongFormat(t *testing.T) {
	a, st, _ := newTestAdapter(t, 0)
	ctx := context.Background()

	ok := a.ProcessWorkerResult(ctx, "helpdesk", worker.Result{
		Observations: []worker.Observation{
			{MetricTitle: "tickets", Category: "open", Value: "12"},
			{MetricTitle: "tickets", Category: "closed", Value: "88"},
			{MetricTitle: "handle_time", Value: ""},
		},
	}, "2026-08-20")
	require.True(t, ok)

	rows, err := st.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byKey := make(map[string]store.Row)
	for _, r := range rows {
		byKey[r.MetricTitle+"/"+r.Category] = r
	}
	assert.Equal(t, "12", byKey["tickets/open"].Value)
	assert.Equal(t, "88", byKey["tickets/closed"].Value)
	assert.Equal(t, "0", byKey["handle_time/"].Value, "missing value defaults to 0")
}

func TestProcessWorkerResultWideFormat(t *testing.T) {
	a, st, _ := newTestAdapter(t, 0)
	ctx := context.Background()

	ok := a.ProcessWorkerResult(ctx, "erp", worker.Result{
		Values: map[string]string{
			"total_items":   "42",
			"pending_count": "",
		},
	}, "2026-08-20")
	require.True(t, ok)

	rows, err := st.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Flattened: title from the key, empty category and sub_category.
	assert.Equal(t, "pending_count", rows[0].MetricTitle)
	assert.Equal(t, "0", rows[0].Value)
	assert.Empty(t, rows[0].Category)
	assert.Empty(t, rows[0].SubCategory)
	assert.Equal(t, "total_items", rows[1].MetricTitle)
	assert.Equal(t, "42", rows[1].Value)
}

func TestProcessWorkerResultEmptyIsSuccess(t *testing.T) {
	a, st, _ := newTestAdapter(t, 0)
	ctx := context.Background()

	assert.True(t, a.ProcessWorkerResult(ctx, "erp", worker.Result{}, ""))

	n, err := st.RowCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessWorkerResultDocumentsNewTitlesOnly(t *testing.T) {
	a, _, docs := newTestAdapter(t, 0)
	ctx := context.Background()

	require.True(t, a.ProcessWorkerResult(ctx, "erp", worker.Result{
		Values: map[string]string{"total_items": "42"},
	}, "2026-08-20"))

	// Second run with one old and one new title: only the new one gets a
	// dictionary row.
	require.True(t, a.ProcessWorkerResult(ctx, "erp", worker.Result{
		Values: map[string]string{"total_items": "43", "pending_count": "7"},
	}, "2026-08-21"))

	content := readFile(t, docs.Path())
	assert.Equal(t, 1, strings.Count(content, "| total_items |"))
	assert.Equal(t, 1, strings.Count(content, "| pending_count |"))
}

func TestProcessWorkerResultDuplicateTitlesInBatch(t *testing.T) {
	a, _, docs := newTestAdapter(t, 0)
	ctx := context.Background()

	require.True(t, a.ProcessWorkerResult(ctx, "helpdesk", worker.Result{
		Observations: []worker.Observation{
			{MetricTitle: "tickets", Category: "open", Value: "1"},
			{MetricTitle: "tickets", Category: "closed", Value: "2"},
		},
	}, "2026-08-20"))

	content := readFile(t, docs.Path())
	assert.Equal(t, 1, strings.Count(content, "| tickets |"))
}

func TestProcessWorkerResultCardinalityLimit(t *testing.T) {
	a, st, _ := newTestAdapter(t, 3)
	ctx := context.Background()

	require.True(t, a.ProcessWorkerResult(ctx, "erp", worker.Result{
		Values: map[string]string{"a": "1", "b": "2"},
	}, "2026-08-20"))

	// Two more new titles would exceed the limit of 3: whole batch rejected.
	ok := a.ProcessWorkerResult(ctx, "erp", worker.Result{
		Values: map[string]string{"c": "3", "d": "4"},
	}, "2026-08-20")
	assert.False(t, ok)

	n, err := st.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "rejected batch persists nothing")

	// Known titles still flow after a rejection.
	require.True(t, a.ProcessWorkerResult(ctx, "erp", worker.Result{
		Values: map[string]string{"a": "5"},
	}, "2026-08-21"))
}

func TestIdentifierGuard(t *testing.T) {
	g := newIdentifierGuard(5)

	assert.True(t, g.admit("erp", []string{"a", "b", "c"}))
	assert.Equal(t, 3, g.count("erp"))

	// Re-admitting known identifiers is free.
	assert.True(t, g.admit("erp", []string{"a", "b"}))
	assert.Equal(t, 3, g.count("erp"))

	// Over the limit: rejected and not recorded.
	assert.False(t, g.admit("erp", []string{"d", "e", "f"}))
	assert.Equal(t, 3, g.count("erp"))

	// Exactly at the limit is fine.
	assert.True(t, g.admit("erp", []string{"d", "e"}))
	assert.Equal(t, 5, g.count("erp"))

	// Limits are per source.
	assert.True(t, g.admit("crm", []string{"x", "y", "z"}))
	assert.Equal(t, 3, g.count("crm"))
}

func TestNormalizePrefersObservations(t *testing.T) {
	obs := normalize(worker.Result{
		Observations: []worker.Observation{{MetricTitle: "long", Value: "1"}},
		Values:       map[string]string{"wide": "2"},
	})
	require.Len(t, obs, 1)
	assert.Equal(t, "long", obs[0].MetricTitle)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}
