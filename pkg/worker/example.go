package worker

import "context"

// ExampleWorker is a template for writing new workers. It returns fixed
// sample data in the wide shape so a fresh install produces rows end to end
// without touching any real dashboard. Disabled by default in the settings
// file.
//
// To create a real worker: copy this file, pick a unique source name,
// and replace Run with the actual scraping logic (the login/session
// handling lives with the worker, not the pipeline).
type ExampleWorker struct{}

// Source returns the example source identifier.
func (ExampleWorker) Source() string { return "example" }

// Run returns sample KPIs.
func (ExampleWorker) Run(ctx context.Context) (Result, error) {
	return Result{
		Values: map[string]string{
			"example_total_items":     "42",
			"example_pending_count":   "7",
			"example_completed_today": "15",
		},
	}, nil
}
