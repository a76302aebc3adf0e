// Package scheduler drives the periodic progression scan: a ticker trigger
// with single-flight guarding, plus an optional Redis lock for multi-replica
// deployments.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tutiful-scheduler/internal/common/errors"
	"tutiful-scheduler/internal/common/logger"
	"tutiful-scheduler/internal/common/metrics"
)

// Runner executes one full progression scan and reports how many
// notification rows the tick created.
type Runner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Trigger fires a Runner on a fixed interval. Ticks that arrive while a run
// is still in flight are skipped, never queued, so scans do not overlap and
// do not pile up behind a slow one.
type Trigger struct {
	runner   Runner
	interval time.Duration
	log      logger.Logger
	lock     *ScanLock

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewTrigger(runner Runner, interval time.Duration, lock *ScanLock, log logger.Logger) *Trigger {
	return &Trigger{
		runner:   runner,
		interval: interval,
		lock:     lock,
		log:      log,
	}
}

// Start runs the tick loop until ctx is cancelled. It blocks; run it in its
// own goroutine. An initial scan fires immediately so a restarted process
// drains its backlog without waiting a full interval.
func (t *Trigger) Start(ctx context.Context) {
	t.log.Info("Scan trigger started", map[string]interface{}{
		"interval": t.interval.String(),
	})

	t.fire(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info("Scan trigger stopping", nil)
			t.wg.Wait()
			return
		case <-ticker.C:
			t.fire(ctx)
		}
	}
}

// RunNow triggers a scan outside the schedule, through the same single-flight
// guard the ticker uses. It returns immediately; a scan already in flight is
// reported as a conflict rather than queued.
func (t *Trigger) RunNow(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return errors.NewScanInFlightError()
	}
	t.launch(ctx, "manual")
	return nil
}

func (t *Trigger) fire(ctx context.Context) {
	if !t.running.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		t.log.Warn("Tick skipped, previous scan still running", nil)
		return
	}
	t.launch(ctx, "schedule")
}

// launch assumes the caller won the running flag and releases it when the
// scan finishes.
func (t *Trigger) launch(ctx context.Context, source string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.running.Store(false)

		if t.lock != nil {
			acquired, err := t.lock.Acquire(ctx)
			if err != nil {
				t.log.Warn("Scan lock unavailable, proceeding without it", map[string]interface{}{
					"error": err.Error(),
				})
			} else if !acquired {
				t.log.Info("Scan held by another replica, skipping", map[string]interface{}{
					"source": source,
				})
				metrics.ScanRuns.WithLabelValues("skipped").Inc()
				return
			} else {
				defer t.lock.Release(ctx)
			}
		}

		start := time.Now()
		created, err := t.runner.RunOnce(ctx)
		duration := time.Since(start)
		metrics.ScanDuration.Observe(duration.Seconds())

		if err != nil {
			metrics.ScanRuns.WithLabelValues("error").Inc()
			t.log.Error("Progression scan failed", map[string]interface{}{
				"source":   source,
				"duration": duration.String(),
				"error":    err.Error(),
			})
			return
		}

		metrics.ScanRuns.WithLabelValues("success").Inc()
		t.log.Info("Progression scan completed", map[string]interface{}{
			"source":   source,
			"duration": duration.String(),
			"created":  created,
		})
	}()
}

// Wait blocks until any in-flight scan finishes. Used during shutdown and in
// tests.
func (t *Trigger) Wait() {
	t.wg.Wait()
}
