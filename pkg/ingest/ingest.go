// Package ingest is the single boundary through which a worker's output
// enters the metric store.
//
// It accepts both result shapes (the legacy wide mapping and the preferred
// long observation list), normalizes them into store rows, detects metric
// identifiers never seen before, and performs the upsert plus the
// data-dictionary side effect. Storage errors are converted to a boolean
// at this boundary: one source's persistence failure must never prevent
// other sources from being recorded.
package ingest

import (
	"context"
	"log/slog"
	"sort"

	"github.com/RG7on/data-aggregator/pkg/docgen"
	"github.com/RG7on/data-aggregator/pkg/store"
	"github.com/RG7on/data-aggregator/pkg/worker"
)

// DefaultMaxIdentifiersPerSource caps how many distinct metric titles a
// single source may introduce. A misbehaving scraper that starts emitting
// row IDs or timestamps as metric titles would otherwise grow the store
// and the data dictionary without bound.
const DefaultMaxIdentifiersPerSource = 10000

// Adapter normalizes worker results into the store.
type Adapter struct {
	store *store.Store
	docs  *docgen.Dictionary
	guard *identifierGuard
	log   *slog.Logger
}

// Config holds adapter configuration.
type Config struct {
	Store *store.Store
	Docs  *docgen.Dictionary

	// MaxIdentifiersPerSource overrides the cardinality cap.
	// 0 means DefaultMaxIdentifiersPerSource.
	MaxIdentifiersPerSource int

	Logger *slog.Logger
}

// New creates an adapter.
func New(cfg Config) *Adapter {
	limit := cfg.MaxIdentifiersPerSource
	if limit <= 0 {
		limit = DefaultMaxIdentifiersPerSource
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		store: cfg.Store,
		docs:  cfg.Docs,
		guard: newIdentifierGuard(limit),
		log:   logger,
	}
}

// ProcessWorkerResult persists one worker's result for the given date
// (empty date means today) and reports success. An empty result is a
// successful no-op. Errors are logged and swallowed here; callers check
// the boolean and never need to know about storage error internals.
func (a *Adapter) ProcessWorkerResult(ctx context.Context, source string, res worker.Result, date string) bool {
	observations := normalize(res)
	if len(observations) == 0 {
		return true
	}

	// Identifier detection must see the store state from BEFORE the
	// write, otherwise everything in this batch looks old.
	existing, err := a.store.DistinctMetricTitles(ctx)
	if err != nil {
		a.log.Error("failed to read existing metric titles", "source", source, "error", err)
		return false
	}

	var newTitles []string
	seenInBatch := make(map[string]struct{})
	for _, obs := range observations {
		if obs.MetricTitle == "" {
			continue
		}
		if _, ok := existing[obs.MetricTitle]; ok {
			continue
		}
		if _, ok := seenInBatch[obs.MetricTitle]; ok {
			continue
		}
		seenInBatch[obs.MetricTitle] = struct{}{}
		newTitles = append(newTitles, obs.MetricTitle)
	}

	if !a.guard.admit(source, newTitles) {
		a.log.Error("identifier cardinality limit exceeded, rejecting batch",
			"source", source, "new_identifiers", len(newTitles), "limit", a.guard.limit)
		return false
	}

	if err := a.store.UpsertMetrics(ctx, source, observations, date); err != nil {
		a.log.Error("failed to persist worker result", "source", source, "error", err)
		return false
	}

	if len(newTitles) > 0 && a.docs != nil {
		if err := a.docs.AppendMetrics(newTitles, source); err != nil {
			a.log.Error("failed to update data dictionary", "source", source, "error", err)
			return false
		}
	}
	return true
}

// normalize converts either result shape into long-format observations.
//
// Wide results flatten to one observation per KPI key (category and
// sub_category empty), ordered by key so repeated runs produce the same
// batch order. Long observations pass through with defaults applied: a
// missing value becomes "0".
func normalize(res worker.Result) []worker.Observation {
	if len(res.Observations) > 0 {
		out := make([]worker.Observation, 0, len(res.Observations))
		for _, obs := range res.Observations {
			if obs.Value == "" {
				obs.Value = "0"
			}
			out = append(out, obs)
		}
		return out
	}

	if len(res.Values) > 0 {
		keys := make([]string, 0, len(res.Values))
		for k := range res.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make([]worker.Observation, 0, len(keys))
		for _, k := range keys {
			v := res.Values[k]
			if v == "" {
				v = "0"
			}
			out = append(out, worker.Observation{MetricTitle: k, Value: v})
		}
		return out
	}
	return nil
}
