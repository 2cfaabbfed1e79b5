package cache

import (
	"context"
	"time"
)

// RunMaintenance calls ClearExpired on c every interval until ctx is done.
// onSweep, if set, receives the number of entries removed by each pass.
// Lazy expiry on read applies regardless; this only reclaims space.
func RunMaintenance(ctx context.Context, c Cache, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := c.ClearExpired(ctx)
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}
