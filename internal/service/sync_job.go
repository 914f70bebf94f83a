package service

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-ref-sync/internal/logger"
)

// DefaultSyncInterval is used when the job is given no interval.
const DefaultSyncInterval = 5 * time.Minute

// SyncJob runs sync cycles in the background: once at start, on every tick
// of its interval and whenever the engine reports queued local changes.
// Only one cycle runs at a time.
type SyncJob struct {
	engine   SyncEngine
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a SyncJob for engine. The job is idle until Start is called.
func NewSyncJob(engine SyncEngine, interval time.Duration, logger *logger.Logger) *SyncJob {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &SyncJob{engine: engine, interval: interval, logger: logger}
}

// Start stops any previous run and launches the background goroutine. The
// goroutine exits when ctx is cancelled or Stop is called.
func (j *SyncJob) Start(ctx context.Context) {
	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	j.engine.Resume()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(j.interval)
		defer t.Stop()

		j.runOnce(jobCtx)
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.runOnce(jobCtx)
			case <-j.engine.Wake():
				j.runOnce(jobCtx)
			}
		}
	}()
}

func (j *SyncJob) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := j.engine.RunSyncCycle(ctx); err != nil {
		j.logger.Err(err).Str("func", "SyncJob.runOnce").Msg("sync cycle ended with error")
	}
}

// Stop asks a running cycle to finish its in-flight request, cancels the
// goroutine and waits for it. Safe to call when the job is not running.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	j.engine.Stop()
	cancel()
	j.wg.Wait()
}
