package ingest

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// identifierGuard tracks how many distinct metric identifiers each source
// has introduced in this process and refuses batches that would push a
// source past the limit. Identifiers are kept as xxhash digests, not
// strings, so even the pathological case (thousands of runaway titles)
// stays cheap to hold.
type identifierGuard struct {
	mu    sync.Mutex
	seen  map[string]map[uint64]struct{}
	limit int
}

func newIdentifierGuard(limit int) *identifierGuard {
	return &identifierGuard{
		seen:  make(map[string]map[uint64]struct{}),
		limit: limit,
	}
}

// admit records the identifiers for source and reports whether the source
// is still within its limit. A rejected batch records nothing.
func (g *identifierGuard) admit(source string, identifiers []string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.seen[source]
	if !ok {
		set = make(map[uint64]struct{})
		g.seen[source] = set
	}

	fresh := make([]uint64, 0, len(identifiers))
	for _, id := range identifiers {
		h := xxhash.Sum64String(id)
		if _, exists := set[h]; !exists {
			fresh = append(fresh, h)
		}
	}

	if len(set)+len(fresh) > g.limit {
		return false
	}
	for _, h := range fresh {
		set[h] = struct{}{}
	}
	return true
}

// count returns how many distinct identifiers a source has introduced.
func (g *identifierGuard) count(source string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen[source])
}
