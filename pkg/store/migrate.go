package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Columns a legacy CSV must carry to be importable. category and
// sub_category are optional and default to "".
var requiredCSVColumns = []string{"date", "timestamp", "source", "metric_title", "value"}

// MigrateFromCSV imports an existing snapshot CSV into the database and
// returns the number of rows imported. Rows that already exist are
// deduplicated by the unique index, so re-running is a no-op. Individual
// rows that fail to parse are skipped rather than aborting the whole
// migration; a missing file or an unrecognized column set imports nothing
// and is not an error.
func (s *Store) MigrateFromCSV(ctx context.Context, csvPath string) (int, error) {
	f, err := os.Open(csvPath)
	if os.IsNotExist(err) {
		s.log.Info("no existing CSV to migrate", "path", csvPath)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows, they get skipped below

	header, err := r.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range requiredCSVColumns {
		if _, ok := col[name]; !ok {
			s.log.Warn("CSV columns don't match expected schema, skipping migration",
				"path", csvPath, "columns", header)
			return 0, nil
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare migration upsert: %w", err)
	}
	defer stmt.Close()

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	imported, skipped := 0, 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(record) < len(requiredCSVColumns) {
			skipped++
			continue
		}

		date := field(record, "date")
		title := field(record, "metric_title")
		if date == "" || title == "" {
			skipped++
			continue
		}

		_, err = stmt.ExecContext(ctx,
			date,
			field(record, "timestamp"),
			field(record, "source"),
			title,
			field(record, "category"),
			field(record, "sub_category"),
			field(record, "value"),
		)
		if err != nil {
			skipped++
			continue
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit migration: %w", err)
	}

	if imported > 0 || skipped > 0 {
		s.log.Info("migrated CSV into database", "path", csvPath, "imported", imported, "skipped", skipped)
	}
	return imported, nil
}
