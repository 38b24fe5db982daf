// Package docgen keeps a human-readable data dictionary in sync with the
// metrics actually being captured. Whenever the ingestion layer sees an
// identifier for the first time, one Markdown table row is appended with a
// placeholder description and the detection time. Existing entries are
// never rewritten or reordered; the document only grows.
package docgen

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/RG7on/data-aggregator/pkg/store"
)

// Filename of the generated document inside the output directory.
const Filename = "DATA_DICTIONARY.md"

const headerTemplate = `# Data Dictionary
## KPI Snapshots Schema Documentation

This file is **automatically generated** by the aggregator.
New metrics are documented here as they are detected.

### CSV Structure
| Column | Description |
| :--- | :--- |
| date | The date of the snapshot (YYYY-MM-DD) |
| timestamp | Last update timestamp for the row |
| source | Identifier of the data source/worker |
| metric_title | Name of the report/metric being tracked |
| category | Primary grouping (e.g. a call type, a date bucket) |
| sub_category | Secondary grouping when a report has 3+ columns |
| value | The metric value (count, percentage or text) |

---

### Tracked Metrics

| Metric Title | Source | Description | First Detected |
| :--- | :--- | :--- | :--- |
`

// Dictionary appends entries to the data dictionary file.
type Dictionary struct {
	path  string
	clock clockwork.Clock
	log   *slog.Logger
}

// New creates a dictionary writing to path. clock and logger may be nil.
func New(path string, clock clockwork.Clock, logger *slog.Logger) *Dictionary {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dictionary{path: path, clock: clock, log: logger}
}

// Path returns the document location.
func (d *Dictionary) Path() string { return d.path }

// AppendMetrics documents newly-seen metric identifiers introduced by
// source. Empty identifiers are skipped. The caller is responsible for
// only passing genuinely new identifiers; this component appends whatever
// it is handed and trusts the input set.
//
// The file is small and updated a handful of times per day, so the write
// is a whole-file read-append-rewrite rather than anything cleverer.
func (d *Dictionary) AppendMetrics(newMetrics []string, source string) error {
	entries := make([]string, 0, len(newMetrics))
	now := d.clock.Now()
	detected := now.Format(store.DateLayout) + " " + now.Format("15:04:05")

	sorted := append([]string(nil), newMetrics...)
	sort.Strings(sorted)
	for _, metric := range sorted {
		if metric == "" {
			continue
		}
		entries = append(entries,
			fmt.Sprintf("| %s | %s | Report from %s. [Add description] | %s |", metric, source, source, detected))
	}
	if len(entries) == 0 {
		return nil
	}

	existing, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		existing = []byte(headerTemplate)
	} else if err != nil {
		return fmt.Errorf("read data dictionary: %w", err)
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(entries, "\n"))
	b.WriteByte('\n')

	if err := os.WriteFile(d.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write data dictionary: %w", err)
	}

	d.log.Info("updated data dictionary", "source", source, "new_metrics", len(entries))
	return nil
}
