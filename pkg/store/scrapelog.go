package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// Scrape attempt statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusNoData  = "no_data"
	StatusSkipped = "skipped"
)

// ScrapeEntry is one row of the scrape audit log. Entries are append-only;
// increasing ID is also chronological order.
type ScrapeEntry struct {
	ID          int64   `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Source      string  `json:"source"`
	ReportLabel string  `json:"report_label"`
	Status      string  `json:"status"`
	RowCount    int     `json:"row_count"`
	DurationS   float64 `json:"duration_s"`
	Message     string  `json:"message"`
}

// LogScrape appends one attempt record. The scrape log is diagnostic, not
// load-bearing: a failed write is debug-logged and swallowed so it can
// never abort the pipeline.
func (s *Store) LogScrape(ctx context.Context, source, reportLabel, status string, rowCount int, duration time.Duration, message string) {
	ts := s.clock.Now().Format(TimestampLayout)
	durS := math.Round(duration.Seconds()*100) / 100

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_log (timestamp, source, report_label, status, row_count, duration_s, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts, source, reportLabel, status, rowCount, durS, message)
	if err != nil {
		s.log.Debug("scrape log write failed", "source", source, "report", reportLabel, "error", err)
	}
}

// ScrapeLog returns the most recent entries, newest first. limit <= 0
// means the default of 100.
func (s *Store) ScrapeLog(ctx context.Context, limit int) ([]ScrapeEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryScrapeEntries(ctx,
		`SELECT id, timestamp, source, report_label, status, row_count, duration_s, message
		 FROM scrape_log ORDER BY id DESC LIMIT ?`, limit)
}

// ScrapeLogSince returns entries with an id greater than afterID, oldest
// first. The control panel's live feed tails the log with it.
func (s *Store) ScrapeLogSince(ctx context.Context, afterID int64) ([]ScrapeEntry, error) {
	return s.queryScrapeEntries(ctx,
		`SELECT id, timestamp, source, report_label, status, row_count, duration_s, message
		 FROM scrape_log WHERE id > ? ORDER BY id ASC`, afterID)
}

// LatestScrapeStatus returns, for every distinct (source, report_label)
// pair ever logged, only its most recent entry, newest first. The
// group-wise max runs inside SQLite as a self-join on max-id-per-group
// rather than scanning the table client-side.
func (s *Store) LatestScrapeStatus(ctx context.Context) ([]ScrapeEntry, error) {
	return s.queryScrapeEntries(ctx,
		`SELECT l.id, l.timestamp, l.source, l.report_label, l.status, l.row_count, l.duration_s, l.message
		 FROM scrape_log l
		 JOIN (
		     SELECT source, report_label, MAX(id) AS max_id
		     FROM scrape_log
		     GROUP BY source, report_label
		 ) latest ON l.id = latest.max_id
		 ORDER BY l.timestamp DESC`)
}

// HasHistoricalData reports whether a report's data is already captured
// and known good: snapshot rows exist for (source, metricTitle) AND the
// most recent scrape-log entry for that report is a success. Both legs are
// required: rows migrated from a legacy CSV carry no scrape-log evidence
// and must not count as already scraped. Workers use this to skip
// re-scraping reports whose underlying period is closed.
func (s *Store) HasHistoricalData(ctx context.Context, source, metricTitle string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kpi_snapshots WHERE source = ? AND metric_title = ?`,
		source, metricTitle).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("historical check: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM scrape_log WHERE source = ? AND report_label = ?
		 ORDER BY id DESC LIMIT 1`,
		source, metricTitle).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("historical check: %w", err)
	}
	return status == StatusSuccess, nil
}

func (s *Store) queryScrapeEntries(ctx context.Context, query string, args ...any) ([]ScrapeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scrape log: %w", err)
	}
	defer rows.Close()

	var out []ScrapeEntry
	for rows.Next() {
		var e ScrapeEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Source, &e.ReportLabel, &e.Status, &e.RowCount, &e.DurationS, &e.Message); err != nil {
			return nil, fmt.Errorf("scan scrape entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
