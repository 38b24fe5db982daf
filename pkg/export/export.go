// Package export projects the metric store to the CSV snapshot that
// downstream consumers (BI tools) poll. Writes are atomic (a temp file in
// the destination directory renamed over the target) so a reader never
// observes a truncated or half-written file.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/RG7on/data-aggregator/pkg/store"
)

// csvHeader is the snapshot file's column contract.
var csvHeader = []string{"date", "timestamp", "source", "metric_title", "category", "sub_category", "value"}

// Exporter writes full-store CSV snapshots.
type Exporter struct {
	store *store.Store
	log   *slog.Logger
}

// New creates an exporter over the given store. logger may be nil.
func New(st *store.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: st, log: logger}
}

// Result describes one export run.
type Result struct {
	RowsExported int       `json:"rows_exported"`
	LocalPath    string    `json:"local_path"`
	SharedPath   string    `json:"shared_path,omitempty"`
	SharedOK     bool      `json:"shared_ok"`
	ExportedAt   time.Time `json:"exported_at"`
}

// Export dumps the entire store to localDir/kpi_snapshots.csv and, when
// sharedPath is non-empty, to that secondary location as well. The local
// copy is the durability guarantee: a failure writing the shared copy is
// logged and does not fail the export.
func (e *Exporter) Export(ctx context.Context, localDir, sharedPath string) (*Result, error) {
	rows, err := e.store.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store for export: %w", err)
	}

	localPath := filepath.Join(localDir, store.CSVFilename)
	if err := writeCSVAtomic(localPath, rows); err != nil {
		return nil, fmt.Errorf("write local csv: %w", err)
	}
	e.log.Info("exported snapshot CSV", "rows", len(rows), "path", localPath)

	res := &Result{
		RowsExported: len(rows),
		LocalPath:    localPath,
		SharedPath:   sharedPath,
		ExportedAt:   time.Now(),
	}

	if sharedPath != "" {
		if err := writeShared(sharedPath, rows); err != nil {
			e.log.Error("failed to write shared CSV, local copy is still up to date",
				"path", sharedPath, "error", err)
		} else {
			res.SharedOK = true
			e.log.Info("exported snapshot CSV to shared location", "rows", len(rows), "path", sharedPath)
		}
	}
	return res, nil
}

func writeShared(path string, rows []store.Row) error {
	// Shared drives often expose nested folders that don't exist yet.
	if parent := filepath.Dir(path); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create shared dir: %w", err)
		}
	}
	return writeCSVAtomic(path, rows)
}

// writeCSVAtomic writes rows to path via a temp file in the same
// directory followed by a rename, so concurrent readers see either the
// old file or the new one, never a partial write.
func writeCSVAtomic(path string, rows []store.Row) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	werr := w.Write(csvHeader)
	for _, r := range rows {
		if werr != nil {
			break
		}
		werr = w.Write([]string{r.Date, r.Timestamp, r.Source, r.MetricTitle, r.Category, r.SubCategory, r.Value})
	}
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp)
		return werr
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
