// Package worker defines the contract between the aggregation pipeline and
// the source-specific scrapers that feed it.
//
// A worker is any component that can produce KPI readings for one source
// system. How it obtains them (browser automation, REST calls, file reads)
// is its own business; the pipeline only cares about the shape of the
// hand-off. Workers are registered explicitly at startup; there is no
// runtime plugin discovery.
package worker

import "context"

// Observation is one long-format metric reading: a single
// (metric, category, sub-category) value for one source on one day.
type Observation struct {
	MetricTitle string `json:"metric_title"`
	Category    string `json:"category,omitempty"`
	SubCategory string `json:"sub_category,omitempty"`
	Value       string `json:"value"`
}

// Result is what a worker hands back from one run.
//
// Exactly one of the two fields should be populated:
//   - Observations: long format, the preferred shape. Any number of rows
//     per source, each with its own metric title and breakdown dimensions.
//   - Values: wide format, retained for older workers. A flat KPI-name to
//     value mapping that the ingestion layer flattens into long-format rows.
//
// A zero Result means the run produced no data.
type Result struct {
	Observations []Observation
	Values       map[string]string
}

// Empty reports whether the result carries no data at all.
func (r Result) Empty() bool {
	return len(r.Observations) == 0 && len(r.Values) == 0
}

// Worker produces KPI readings for one source system.
type Worker interface {
	// Source returns the stable identifier stored with every row this
	// worker produces (e.g. "cuic", "smax").
	Source() string

	// Run performs one scrape. An empty Result with a nil error means the
	// source was reachable but had nothing to report.
	Run(ctx context.Context) (Result, error)
}

// Registry is the explicit, startup-time list of workers the pipeline
// executes. Order of registration is execution order.
type Registry struct {
	workers []Worker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a worker. Registering the same source twice is not
// rejected; the second registration simply runs after the first.
func (r *Registry) Register(w Worker) {
	r.workers = append(r.workers, w)
}

// Workers returns the registered workers in registration order.
func (r *Registry) Workers() []Worker {
	return r.workers
}
