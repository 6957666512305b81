package sync

import (
	"context"
	"time"
)

// Start launches the scheduler: a periodic ticker plus coalesced triggers
// (critical enqueue, offline to online transition). With a probe interval
// configured, a second goroutine polls server reachability.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loop(ctx)

	if e.cfg.ProbeInterval > 0 {
		e.wg.Add(1)
		go e.probe(ctx)
	}

	e.logger.Info("Sync scheduler started",
		"interval", e.cfg.SyncInterval,
		"probe_interval", e.cfg.ProbeInterval,
		"batch_size", e.cfg.BatchSize)
}

// Shutdown stops the scheduler and waits for a running cycle to finish
func (e *Engine) Shutdown() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.logger.Info("Sync scheduler stopped")
}

// RequestSync asks the scheduler for a cycle without blocking.
// Requests made while one is already queued are merged.
func (e *Engine) RequestSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// SetOnline records connectivity. Going online triggers a sync; going
// offline does not interrupt a batch that is already in flight.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	was := e.isOnline
	e.isOnline = online
	e.mu.Unlock()

	if was == online {
		return
	}

	e.logger.Info("Connectivity changed", "online", online)
	e.emit(Event{Type: EventOnlineChanged, Online: online})

	if online {
		e.RequestSync()
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runScheduled(ctx, "interval")
		case <-e.trigger:
			e.runScheduled(ctx, "trigger")
		}
	}
}

func (e *Engine) runScheduled(ctx context.Context, reason string) {
	result, err := e.RunSyncCycle(ctx)
	if err != nil {
		e.logger.Error("Sync cycle failed", "reason", reason, "error", err)
		return
	}
	if result.Skipped {
		e.logger.Debug("Sync cycle skipped", "reason", reason)
	}
}

// probe опрашивает health endpoint и переключает online/offline
func (e *Engine) probe(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
			err := e.server.Health(probeCtx)
			cancel()
			if err != nil && ctx.Err() != nil {
				return
			}
			if err != nil {
				e.logger.Debug("Server unreachable", "error", err)
			}
			e.SetOnline(err == nil)
		}
	}
}
