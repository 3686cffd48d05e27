// Package json implements a Writer that writes extracted items to a JSON file.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/writer/buffered"
)

// Stdout is the file path that selects standard output.
const Stdout = "-"

// Writer writes items to a JSON array with buffered batching. A file is
// rewritten on every flush; any other destination is written once, after
// the input is drained.
type Writer struct {
	filePath string
	out      io.Writer
	entries  []json.RawMessage
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON output file, or "-" for stdout.
	FilePath string
	// BatchSize is the number of items to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration
}

// New creates a new JSON writer. Entries already present in the file are kept.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" || cfg.FilePath == Stdout {
		return NewWithWriter(os.Stdout, cfg, logger)
	}

	w := newWriter(cfg, logger)
	if err := w.loadExisting(); err != nil {
		w.logger.Warn("could not load existing items", "error", err)
	}

	w.logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.entries))
	return w, nil
}

// NewWithWriter creates a JSON writer that writes the whole array to out
// once the input channel is drained.
func NewWithWriter(out io.Writer, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := newWriter(cfg, logger)
	w.out = out
	return w, nil
}

func newWriter(cfg Config, logger *slog.Logger) *Writer {
	w := &Writer{
		filePath: cfg.FilePath,
		entries:  make([]json.RawMessage, 0),
		logger:   logger.With("component", "json"),
	}
	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "json_buffer"))
	return w
}

// loadExisting loads existing entries from the JSON file if it exists.
func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &w.entries)
}

// Write consumes items from the input channel and writes them as JSON.
func (w *Writer) Write(ctx context.Context, in <-chan api.Item) error {
	if err := w.buffered.Write(ctx, in); err != nil {
		return err
	}
	if w.out == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(w.entries); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// flushBatch appends a batch of items and, for files, rewrites the file.
func (w *Writer) flushBatch(items []api.Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshaling item %s: %w", it.MessageID(), err)
		}
		w.entries = append(w.entries, data)
	}

	if w.out != nil {
		return nil
	}

	// JSON has no append; write the whole array.
	data, err := json.MarshalIndent(w.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	w.logger.Debug("wrote items to json",
		"batch_count", len(items),
		"total_count", len(w.entries),
	)
	return nil
}

// Count returns the total number of entries held, including preexisting ones.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
