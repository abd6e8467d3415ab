package idempotency

import (
	"context"
	"time"
)

// RunCleanup deletes expired keys every interval until ctx is cancelled. Each tick drains
// batches until one comes back short.
func RunCleanup(ctx context.Context, store Store, interval time.Duration, batchSize int, clock func() time.Time, logger Logger) {
	if store == nil || interval <= 0 {
		return
	}
	if clock == nil {
		clock = time.Now
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total, err := cleanupOnce(ctx, store, clock().UTC(), batchSize)
			if err != nil && ctx.Err() == nil && logger != nil {
				logger.Printf("idempotency: cleanup failed after removing %d keys: %v", total, err)
			}
		}
	}
}

func cleanupOnce(ctx context.Context, store Store, now time.Time, batchSize int) (int, error) {
	total := 0
	for {
		removed, err := store.CleanupExpired(ctx, now, batchSize)
		total += removed
		if err != nil || removed < batchSize {
			return total, err
		}
	}
}
