package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"freetoair/catalog/internal/catalog"
	"freetoair/catalog/internal/metrics"
	"freetoair/catalog/internal/models"
	"freetoair/catalog/internal/probe"
)

// Reconciler keeps each channel's is_active flag in line with real-world
// reachability by sweeping the full catalog on a fixed interval. One
// reconciler runs per process, concurrently with the API.
type Reconciler struct {
	store    catalog.ChannelStore
	prober   probe.Prober
	interval time.Duration
	workers  int

	// Counters for the sweep in progress
	checked  atomic.Int64
	active   atomic.Int64
	skipped  atomic.Int64
	sweeping atomic.Bool
}

// NewReconciler creates a reconciler sweeping every interval with the
// given worker pool size (0 means runtime.NumCPU()).
func NewReconciler(store catalog.ChannelStore, prober probe.Prober, interval time.Duration, workers int) *Reconciler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Reconciler{
		store:    store,
		prober:   prober,
		interval: interval,
		workers:  workers,
	}
}

// Run executes sweeps until ctx is cancelled. The first sweep starts
// immediately; later ones wait for the ticker. Sweeps run to completion
// before the next tick is serviced, so two sweeps never probe the same
// channel concurrently.
func (r *Reconciler) Run(ctx context.Context) {
	log.Info().
		Dur("interval", r.interval).
		Int("workers", r.workers).
		Msg("Stream health reconciler started")

	if err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Initial sweep failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Sweep canceled by shutdown signal")
					return
				}
				log.Error().Err(err).Msg("Sweep failed")
				// Continue to the next tick rather than exiting
			}

		case <-ctx.Done():
			log.Info().Msg("Stream health reconciler stopping")
			return
		}
	}
}

// Sweep probes every channel in the catalog once and writes each verdict
// back as soon as its probe completes, so an interrupted sweep leaves
// partially-updated but valid state.
func (r *Reconciler) Sweep(ctx context.Context) error {
	if !r.sweeping.CompareAndSwap(false, true) {
		return errors.New("sweep already in progress")
	}
	defer r.sweeping.Store(false)

	start := time.Now()

	channels, err := r.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load channels for sweep: %w", err)
	}

	r.checked.Store(0)
	r.active.Store(0)
	r.skipped.Store(0)

	queue := make(chan models.Channel)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, queue)
		}()
	}

queueLoop:
	for _, ch := range channels {
		select {
		case queue <- ch:
		case <-ctx.Done():
			log.Info().Err(ctx.Err()).Msg("Context cancelled during sweep queuing")
			break queueLoop
		}
	}
	close(queue)
	wg.Wait()

	checked, active, skipped := r.checked.Load(), r.active.Load(), r.skipped.Load()
	duration := time.Since(start)

	// An interrupted sweep leaves valid per-channel state behind but must
	// not count as a completed pass, so the metrics stay untouched.
	if err := ctx.Err(); err != nil {
		log.Info().
			Int("channels", len(channels)).
			Int64("checked", checked).
			Dur("duration", duration).
			Msg("Sweep interrupted")
		return err
	}

	metrics.RecordSweep(duration, int(active), len(channels))

	log.Info().
		Int("channels", len(channels)).
		Int64("checked", checked).
		Int64("active", active).
		Int64("inactive", checked-active).
		Int64("skipped", skipped).
		Dur("duration", duration).
		Msg("Sweep finished")

	return nil
}

// Stats returns the counters of the most recent sweep.
func (r *Reconciler) Stats() (checked, active, skipped int64) {
	return r.checked.Load(), r.active.Load(), r.skipped.Load()
}

// worker probes channels from the queue until it is closed or the context
// is cancelled. A failed status write is logged and skipped; the sweep
// carries on with the remaining channels.
func (r *Reconciler) worker(ctx context.Context, queue <-chan models.Channel) {
	for {
		select {
		case ch, ok := <-queue:
			if !ok {
				return
			}

			reachable := r.prober.Probe(ctx, ch.StreamURL)

			if err := r.store.UpdateStatus(ctx, ch.ID, reachable); err != nil {
				log.Error().
					Err(err).
					Str("channel_id", ch.ID).
					Msg("Failed to update channel status")
				r.skipped.Add(1)
				continue
			}

			r.checked.Add(1)
			if reachable {
				r.active.Add(1)
			}

			if reachable != ch.IsActive {
				log.Info().
					Str("channel_id", ch.ID).
					Bool("active", reachable).
					Msg("Channel status changed")
			}

		case <-ctx.Done():
			return
		}
	}
}
