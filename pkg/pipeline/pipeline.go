// Package pipeline drives one end-to-end aggregation run: store init,
// legacy CSV migration, each registered worker in isolation, ingestion,
// then CSV export and retention. One worker blowing up never
// stops the others; the exported snapshot always reflects the best
// available cumulative state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/RG7on/data-aggregator/pkg/config"
	"github.com/RG7on/data-aggregator/pkg/export"
	"github.com/RG7on/data-aggregator/pkg/ingest"
	"github.com/RG7on/data-aggregator/pkg/store"
	"github.com/RG7on/data-aggregator/pkg/worker"
)

// Per-worker outcome statuses in the run summary.
const (
	WorkerSuccess    = "success"
	WorkerNoData     = "no_data"
	WorkerSaveFailed = "save_failed"
	WorkerError      = "error"
	WorkerDisabled   = "disabled"
)

// WorkerResult is one worker's outcome within a run.
type WorkerResult struct {
	Status    string  `json:"status"`
	Rows      int     `json:"rows"`
	DurationS float64 `json:"duration_s"`
	Error     string  `json:"error,omitempty"`
}

// Summary describes one pipeline run.
type Summary struct {
	RunID            string                  `json:"run_id"`
	StartTime        time.Time               `json:"start_time"`
	EndTime          time.Time               `json:"end_time"`
	DurationS        float64                 `json:"duration_s"`
	WorkersFound     int                     `json:"workers_found"`
	WorkersSucceeded int                     `json:"workers_succeeded"`
	WorkersFailed    int                     `json:"workers_failed"`
	Results          map[string]WorkerResult `json:"results"`
}

// AllSucceeded reports whether every executed worker persisted data.
func (s *Summary) AllSucceeded() bool { return s.WorkersFailed == 0 }

// Pipeline executes aggregation runs.
type Pipeline struct {
	cfg      config.Config
	store    *store.Store
	adapter  *ingest.Adapter
	exporter *export.Exporter
	registry *worker.Registry
	log      *slog.Logger
}

// New wires a pipeline from its collaborators. logger may be nil.
func New(cfg config.Config, st *store.Store, adapter *ingest.Adapter, exporter *export.Exporter, registry *worker.Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		adapter:  adapter,
		exporter: exporter,
		registry: registry,
		log:      logger,
	}
}

// Run executes one full pass over all registered workers and returns the
// summary. Worker failures are reflected in the summary, not in the error
// return; a non-nil error means the pipeline itself could not run.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartTime: start,
		Results:   make(map[string]WorkerResult),
	}
	p.log.Info("pipeline started", "run_id", summary.RunID)

	outputDir, err := p.cfg.ResolveOutputDir()
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	// Schema is ensured at store open, but a run must also survive the
	// database file being replaced underneath a long-lived process.
	if err := p.store.Init(); err != nil {
		return nil, err
	}

	// One-time import of a pre-database CSV. Dedup makes re-runs no-ops,
	// and a failed migration never blocks scraping.
	if _, err := p.store.MigrateFromCSV(ctx, filepath.Join(outputDir, store.CSVFilename)); err != nil {
		p.log.Debug("legacy CSV migration check failed", "error", err)
	}

	workers := p.registry.Workers()
	summary.WorkersFound = len(workers)
	if len(workers) == 0 {
		p.log.Warn("no workers registered")
	}

	for _, w := range workers {
		source := w.Source()
		if !p.cfg.WorkerEnabled(source) {
			p.log.Info("worker disabled in settings, skipping", "source", source)
			summary.Results[source] = WorkerResult{Status: WorkerDisabled}
			continue
		}
		res := p.runWorker(ctx, w)
		summary.Results[source] = res
		if res.Status == WorkerSuccess {
			summary.WorkersSucceeded++
		} else {
			summary.WorkersFailed++
		}
	}

	// Export and retention run only when something new was persisted;
	// the snapshot from the previous run is still valid otherwise.
	if summary.WorkersSucceeded > 0 {
		if _, err := p.exporter.Export(ctx, outputDir, p.cfg.Global.SharedDriveCSV); err != nil {
			p.log.Error("CSV export failed", "error", err)
		}
		if _, err := p.store.CleanupOldData(ctx, p.cfg.Global.DataRetentionDays); err != nil {
			p.log.Error("retention cleanup failed", "error", err)
		}
	}

	summary.EndTime = time.Now()
	summary.DurationS = summary.EndTime.Sub(start).Seconds()
	p.log.Info("pipeline completed",
		"run_id", summary.RunID,
		"duration_s", fmt.Sprintf("%.2f", summary.DurationS),
		"found", summary.WorkersFound,
		"succeeded", summary.WorkersSucceeded,
		"failed", summary.WorkersFailed)
	return summary, nil
}

// runWorker executes one worker with panic isolation and records the
// attempt in the scrape log.
func (p *Pipeline) runWorker(ctx context.Context, w worker.Worker) (res WorkerResult) {
	source := w.Source()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = WorkerResult{
				Status:    WorkerError,
				DurationS: time.Since(start).Seconds(),
				Error:     fmt.Sprintf("panic: %v", r),
			}
			p.log.Error("worker panicked", "source", source, "panic", r)
			p.store.LogScrape(ctx, source, "", store.StatusError, 0, time.Since(start), res.Error)
		}
	}()

	p.log.Info("running worker", "source", source)
	result, err := w.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		p.log.Error("worker failed", "source", source, "error", err)
		p.store.LogScrape(ctx, source, "", store.StatusError, 0, elapsed, err.Error())
		return WorkerResult{Status: WorkerError, DurationS: elapsed.Seconds(), Error: err.Error()}
	}
	if result.Empty() {
		p.log.Warn("worker returned no data", "source", source)
		p.store.LogScrape(ctx, source, "", store.StatusNoData, 0, elapsed, "no data returned")
		return WorkerResult{Status: WorkerNoData, DurationS: elapsed.Seconds()}
	}

	rows := len(result.Observations) + len(result.Values)
	if !p.adapter.ProcessWorkerResult(ctx, source, result, "") {
		p.store.LogScrape(ctx, source, "", store.StatusError, rows, elapsed, "failed to persist result")
		return WorkerResult{Status: WorkerSaveFailed, Rows: rows, DurationS: elapsed.Seconds()}
	}

	p.store.LogScrape(ctx, source, "", store.StatusSuccess, rows, elapsed, "")
	return WorkerResult{Status: WorkerSuccess, Rows: rows, DurationS: elapsed.Seconds()}
}
