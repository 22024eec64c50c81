package workers

import (
	"context"
	"time"

	"hermes/internal/services/notify"
)

// DedupGCWorker purges expired entries from the in-memory notification
// dedup registry. Only registered when Redis is not configured; the
// Redis registry expires keys by TTL on its own.
type DedupGCWorker struct {
	*BaseWorker
	registry *notify.MemoryDeduplicator
}

// NewDedupGCWorker creates the registry GC worker
func NewDedupGCWorker(registry *notify.MemoryDeduplicator, interval time.Duration) *DedupGCWorker {
	return &DedupGCWorker{
		BaseWorker: NewBaseWorker("dedupgc", interval, true),
		registry:   registry,
	}
}

// Run purges expired entries
func (w *DedupGCWorker) Run(ctx context.Context) error {
	start := time.Now()

	purged := w.registry.GC()
	if purged > 0 {
		w.Log().Debugw("Dedup registry purged", "entries", purged)
	}

	w.RecordRun(time.Since(start))
	return nil
}
