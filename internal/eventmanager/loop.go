package eventmanager

import (
	"context"
	"time"
)

// runEvery invokes fn immediately and then on every tick of interval until
// ctx is cancelled. This reimplements the teacher's stop-on-context-cancel
// goroutine idiom locally (see Design Note on background ticker loops)
// rather than importing a package whose source was not retrieved.
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
