// Package buffered batches items read from a channel and hands each batch
// to a sink-specific flush function.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/mailtxn/pkg/api"
)

// Defaults applied by New.
const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = 30 * time.Second
)

// FlushFunc persists one batch. The slice is owned by the callee.
type FlushFunc func(batch []api.Item) error

// Config controls when batches are cut.
type Config struct {
	// BatchSize is the pending count that triggers a flush.
	BatchSize int
	// FlushInterval bounds how long an item may wait in a partial batch.
	FlushInterval time.Duration
}

// Stats counts what has been handed to the flush function successfully.
type Stats struct {
	Items   int
	Batches int
}

// Writer accumulates items and flushes them in batches.
type Writer struct {
	flush  FlushFunc
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	pending []api.Item
	stats   Stats
}

// New creates a Writer around flush. Zero config values take the defaults.
func New(flush FlushFunc, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		flush:   flush,
		cfg:     cfg,
		logger:  logger,
		pending: make([]api.Item, 0, cfg.BatchSize),
	}
}

// Write drains in, flushing whenever a batch fills or the interval elapses.
// It returns nil once in is closed and the last partial batch is flushed.
// A failed size-triggered or final flush is returned; a failed timed flush
// is logged and its items dropped. When ctx is done the pending items are
// flushed and ctx.Err() is returned.
func (w *Writer) Write(ctx context.Context, in <-chan api.Item) error {
	tick := time.NewTicker(w.cfg.FlushInterval)
	defer tick.Stop()

	for {
		select {
		case it, ok := <-in:
			if !ok {
				return w.drain("input closed")
			}
			if w.add(it) {
				if err := w.drain("batch full"); err != nil {
					return err
				}
			}

		case <-tick.C:
			if err := w.drain("interval"); err != nil {
				w.logger.Error("timed flush failed", "error", err)
			}

		case <-ctx.Done():
			if err := w.drain("shutdown"); err != nil {
				w.logger.Error("flush on shutdown failed", "error", err)
			}
			return ctx.Err()
		}
	}
}

// add queues it and reports whether the batch is full.
func (w *Writer) add(it api.Item) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, it)
	return len(w.pending) >= w.cfg.BatchSize
}

func (w *Writer) drain(reason string) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = make([]api.Item, 0, w.cfg.BatchSize)
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := w.flush(batch); err != nil {
		return err
	}

	w.mu.Lock()
	w.stats.Items += len(batch)
	w.stats.Batches++
	w.mu.Unlock()

	w.logger.Debug("flushed batch", "reason", reason, "count", len(batch))
	return nil
}

// Pending returns the number of items waiting for the next flush.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stats returns the flush counters.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
