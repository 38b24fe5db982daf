// Package store is the local source of truth for all scraped KPI data.
//
// Workers write into SQLite (atomic, deduplicated, WAL-journaled); after
// every run the full table is projected to a CSV that downstream consumers
// read. The CSV is a projection of the database, never the other way
// around. The same file also carries the scrape log, an append-only audit
// trail of every scrape attempt.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"

	"github.com/RG7on/data-aggregator/pkg/worker"
)

// File names inside the output directory.
const (
	DBFilename  = "kpi_data.db"
	CSVFilename = "kpi_snapshots.csv"
)

// Timestamp layouts used throughout the store. Dates are calendar days,
// timestamps are second precision, both stored as text.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

const schema = `
CREATE TABLE IF NOT EXISTS kpi_snapshots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    date          TEXT    NOT NULL,
    timestamp     TEXT    NOT NULL,
    source        TEXT    NOT NULL,
    metric_title  TEXT    NOT NULL,
    category      TEXT    NOT NULL DEFAULT '',
    sub_category  TEXT    NOT NULL DEFAULT '',
    value         TEXT    NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_kpi_dedup
    ON kpi_snapshots (date, source, metric_title, category, sub_category);

CREATE TABLE IF NOT EXISTS scrape_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     TEXT    NOT NULL,
    source        TEXT    NOT NULL,
    report_label  TEXT    NOT NULL DEFAULT '',
    status        TEXT    NOT NULL,
    row_count     INTEGER NOT NULL DEFAULT 0,
    duration_s    REAL    NOT NULL DEFAULT 0,
    message       TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_scrape_log_report
    ON scrape_log (source, report_label);
`

const upsertSQL = `
INSERT INTO kpi_snapshots (date, timestamp, source, metric_title, category, sub_category, value)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (date, source, metric_title, category, sub_category)
DO UPDATE SET
    timestamp = excluded.timestamp,
    value     = excluded.value
`

// Row is one metric observation as stored.
type Row struct {
	Date        string `json:"date"`
	Timestamp   string `json:"timestamp"`
	Source      string `json:"source"`
	MetricTitle string `json:"metric_title"`
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Value       string `json:"value"`
}

// Config holds store configuration.
type Config struct {
	// Path to the SQLite database file.
	Path string

	// Clock stamps dates and timestamps. Nil means wall clock.
	Clock clockwork.Clock

	// Logger for store-internal diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Store wraps the SQLite database holding metric snapshots and the scrape
// log. A single process owns the writes; concurrent readers (the control
// panel, ad-hoc inspection) are safe through WAL journaling.
type Store struct {
	db    *sql.DB
	path  string
	clock clockwork.Clock
	log   *slog.Logger
}

// Open opens (or creates) the database and idempotently ensures the
// schema. Safe to call on every process start.
func Open(cfg Config) (*Store, error) {
	// WAL keeps readers unblocked during writes; NORMAL sync is durable
	// enough for a WAL database; busy_timeout makes a colliding reader
	// retry briefly instead of failing with SQLITE_BUSY.
	dsn := cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: this process is the single writer, and sharing a
	// connection avoids in-process writer/writer collisions entirely.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Store{
		db:    db,
		path:  cfg.Path,
		clock: cfg.Clock,
		log:   cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init ensures the snapshot table, its dedup index and the scrape-log
// table exist. No effect if already present.
func (s *Store) Init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// UpsertMetrics writes a batch of observations for one source in a single
// transaction. Rows whose natural key (date, source, metric_title,
// category, sub_category) already exists get their value and timestamp
// overwritten; new keys are inserted. The whole batch commits or none of
// it does. date may be empty, meaning today.
//
// Observations with an empty metric title are skipped with a warning; one
// malformed reading never aborts the batch.
func (s *Store) UpsertMetrics(ctx context.Context, source string, observations []worker.Observation, date string) error {
	if len(observations) == 0 {
		return nil
	}
	if date == "" {
		date = s.clock.Now().Format(DateLayout)
	}
	ts := s.clock.Now().Format(TimestampLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, obs := range observations {
		if obs.MetricTitle == "" {
			s.log.Warn("skipping observation without metric title", "source", source)
			continue
		}
		if _, err := stmt.ExecContext(ctx, date, ts, source, obs.MetricTitle, obs.Category, obs.SubCategory, obs.Value); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", source, obs.MetricTitle, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	s.log.Info("upserted metrics", "source", source, "date", date, "rows", written)
	return nil
}

// QueryAll returns every row ordered by (date, source, metric_title).
// The ordering is a contract: the CSV export must be stable and
// diff-friendly between runs.
func (s *Store) QueryAll(ctx context.Context) ([]Row, error) {
	return s.queryRows(ctx,
		`SELECT date, timestamp, source, metric_title, category, sub_category, value
		 FROM kpi_snapshots ORDER BY date, source, metric_title`)
}

// QueryByDate returns rows with date in [start, end] inclusive, in the
// same order as QueryAll. An empty end means a single-day query.
func (s *Store) QueryByDate(ctx context.Context, start, end string) ([]Row, error) {
	if end == "" {
		end = start
	}
	return s.queryRows(ctx,
		`SELECT date, timestamp, source, metric_title, category, sub_category, value
		 FROM kpi_snapshots WHERE date BETWEEN ? AND ?
		 ORDER BY date, source, metric_title`, start, end)
}

// RowCount returns the number of snapshot rows.
func (s *Store) RowCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kpi_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// DistinctMetricTitles returns the set of metric titles currently stored,
// across all sources. The ingestion layer uses it to detect identifiers
// that have never been seen before.
func (s *Store) DistinctMetricTitles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT metric_title FROM kpi_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("distinct titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles[t] = struct{}{}
	}
	return titles, rows.Err()
}

// CleanupOldData deletes rows whose date is strictly older than
// today - daysToKeep and returns the number deleted. Space is reclaimed
// with VACUUM only when something was actually deleted, so no-op runs cost
// no I/O.
func (s *Store) CleanupOldData(ctx context.Context, daysToKeep int) (int, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -daysToKeep).Format(DateLayout)

	res, err := s.db.ExecContext(ctx, `DELETE FROM kpi_snapshots WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention delete: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if deleted > 0 {
		if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
			return int(deleted), fmt.Errorf("vacuum after retention: %w", err)
		}
		s.log.Info("retention cleanup", "deleted", deleted, "cutoff", cutoff)
	}
	return int(deleted), nil
}

// Stats summarizes the store for health checks.
type Stats struct {
	SnapshotRows  int    `json:"snapshot_rows"`
	ScrapeLogRows int    `json:"scrape_log_rows"`
	OldestDate    string `json:"oldest_date,omitempty"`
	NewestDate    string `json:"newest_date,omitempty"`
	SizeBytes     int64  `json:"size_bytes"`
}

// Stats returns row counts, the stored date range and the database file
// size.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kpi_snapshots`).Scan(&st.SnapshotRows); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scrape_log`).Scan(&st.ScrapeLogRows); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(date), MAX(date) FROM kpi_snapshots`).Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st.OldestDate = oldest.String
	st.NewestDate = newest.String

	if fi, err := os.Stat(s.path); err == nil {
		st.SizeBytes = fi.Size()
	}
	return st, nil
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Date, &r.Timestamp, &r.Source, &r.MetricTitle, &r.Category, &r.SubCategory, &r.Value); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
