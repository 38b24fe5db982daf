package server

import (
	"context"
	"time"
)

const broadcastInterval = 5 * time.Second

// BroadcastScrapeLog tails the scrape log and pushes new entries to
// websocket clients. The scheduled pipeline runs in a separate process,
// so polling the shared database is the only way to notice its writes;
// WAL keeps those reads cheap and non-blocking.
func (s *Server) BroadcastScrapeLog(ctx context.Context) {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	// Start from the current tail; clients only care about what happens
	// after they connected.
	var lastID int64
	if entries, err := s.store.ScrapeLog(ctx, 1); err == nil && len(entries) > 0 {
		lastID = entries[0].ID
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.hub.HasClients() {
				continue
			}

			entries, err := s.store.ScrapeLogSince(ctx, lastID)
			if err != nil {
				s.log.Debug("failed to tail scrape log for broadcast", "error", err)
				continue
			}
			if len(entries) == 0 {
				continue
			}
			lastID = entries[len(entries)-1].ID

			update := map[string]any{
				"type":      "scrape_update",
				"timestamp": time.Now().Unix(),
				"entries":   entries,
				"count":     len(entries),
			}
			if err := s.hub.Broadcast(update); err != nil {
				s.log.Debug("failed to broadcast scrape update", "error", err)
			}
		}
	}
}
