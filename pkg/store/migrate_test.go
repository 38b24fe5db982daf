package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), CSVFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMigrateFromCSV(t *testing.T) {
	s := newTestStore(t, fixedClock(t, "2026-08-20 09:00:00"))
	ctx := context.Background()

	path := writeCSV(t,
		"date,timestamp,source,metric_title,category,sub_category,value\n"+
			"2026-08-18,2026-08-18 07:00:00,erp,total_items,,,40\n"+
			"2026-08-19,2026-08-19 07:00:00,erp,total_items,,,41\n"+
			"2026-08-19,2026-08-19 07:00:00,helpdesk,tickets,open,,12\n")

	imported, err := s.MigrateFromCSV(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, imported)

	rows, err := s.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "open", rows[2].Category)
	assert.Equal(t, "2026-08-18 07:00:00", rows[0].Timestamp)

	// Re-running dedups to the same rows.
	_, err = s.MigrateFromCSV(ctx, path)
	require.NoError(t, err)
	n, err := s.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMigrateFromCSVMissingFile(t *testing.T) {
	s := newTestStore(t, fixedClock(t, "2026-08-20 09:00:00"))

	imported, err := s.MigrateFromCSV(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Zero(t, imported)
}

func TestMigrateFromCSVWrongColumns(t *testing.T) {
	s := newTestStore(t, fixedClock(t, "2026-08-20 09:00:00"))

	path := writeCSV(t, "when,who,how_much\n2026-08-18,erp,40\n")
	imported, err := s.MigrateFromCSV(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, imported)
}

func TestMigrateFromCSVSkipsBadRows(t *testing.T) {
	s := newTestStore(t, fixedClock(t, "2026-08-20 09:00:00"))
	ctx := context.Background()

	path := writeCSV(t,
		"date,timestamp,source,metric_title,category,sub_category,value\n"+
			"2026-08-18,2026-08-18 07:00:00,erp,good,,,1\n"+
			",2026-08-18 07:00:00,erp,missing_date,,,2\n"+
			"2026-08-18,2026-08-18 07:00:00,erp,,,,3\n"+
			"short,row\n"+
			"2026-08-19,2026-08-19 07:00:00,erp,also_good,,,4\n")

	imported, err := s.MigrateFromCSV(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	titles, err := s.DistinctMetricTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"good": {}, "also_good": {}}, titles)
}

func TestMigrateFromCSVEmptyFile(t *testing.T) {
	s := newTestStore(t, fixedClock(t, "2026-08-20 09:00:00"))

	path := writeCSV(t, "")
	imported, err := s.MigrateFromCSV(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, imported)
}
