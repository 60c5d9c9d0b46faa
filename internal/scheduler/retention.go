package scheduler

import (
	"context"
	"log"
	"time"
)

// CleanupOldImages retires image records whose blobs were downloaded more
// than the given number of days ago, then removes the blobs themselves.
// Individual blob-deletion failures are counted and logged, not fatal: the
// record is already gone and the next cleanup pass cannot resurrect it.
func (s *Scheduler) CleanupOldImages(ctx context.Context, days int) int {
	cutoff := time.Now().AddDate(0, 0, -days)

	zoneIDs, err := s.store.DeleteImagesOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("[Retention] Failed to delete image records: %v", err)
		return 0
	}
	if len(zoneIDs) == 0 {
		return 0
	}

	blobErrors := 0
	for _, id := range zoneIDs {
		if err := s.blobs.Delete(id); err != nil {
			blobErrors++
			log.Printf("[Retention] Failed to delete blob for zone %s: %v", id, err)
		}
	}

	log.Printf("[Retention] Deleted %d image records older than %d days (%d blob errors)",
		len(zoneIDs), days, blobErrors)
	return len(zoneIDs)
}
