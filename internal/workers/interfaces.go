// Package workers runs the background jobs of the sync client under one
// lifecycle.
package workers

import "context"

// Worker is a background job. Start must not block; Stop waits until the
// job has finished its current unit of work.
//
// Example implementation:
//
//	type ticker struct{ cancel context.CancelFunc }
//
//	func (t *ticker) Start(ctx context.Context) {
//	    ctx, t.cancel = context.WithCancel(ctx)
//	    go loop(ctx)
//	}
//
//	func (t *ticker) Stop() { t.cancel() }
type Worker interface {
	Start(ctx context.Context)
	Stop()
}
