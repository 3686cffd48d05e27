// Package csv implements a Writer that renders extracted items as CSV rows.
package csv

import (
	"context"
	"encoding/csv"
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

// Config holds configuration for the CSV writer.
type Config struct {
	// FilePath is the output file, or Stdout.
	FilePath      string
	BatchSize     int
	FlushInterval time.Duration
}

// Writer writes one row per item in the api.RowHeaders layout.
type Writer struct {
	name   string
	file   *os.File // nil when not owned
	logger *slog.Logger

	mu         sync.Mutex
	enc        *csv.Writer
	needHeader bool

	batcher *buffered.Writer
}

// New opens cfg.FilePath for appending. The header row is written only when
// the file is new or empty.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if cfg.FilePath == "" || cfg.FilePath == Stdout {
		return NewWithWriter(os.Stdout, cfg, logger)
	}

	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("stat csv file: %w", err), f.Close())
	}

	w := newWriter(cfg, f, logger)
	w.file = f
	w.needHeader = info.Size() == 0
	return w, nil
}

// NewWithWriter writes to out, header row first. out is never closed.
func NewWithWriter(out io.Writer, cfg Config, logger *slog.Logger) (*Writer, error) {
	w := newWriter(cfg, out, logger)
	w.needHeader = true
	return w, nil
}

func newWriter(cfg Config, out io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.FilePath
	if name == "" {
		name = Stdout
	}

	w := &Writer{
		name:   name,
		enc:    csv.NewWriter(out),
		logger: logger.With("component", "csv", "file", name),
	}
	w.batcher = buffered.New(w.writeRows, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, w.logger)
	return w
}

// Write consumes items until in is closed or ctx is done, then closes the
// file it opened.
func (w *Writer) Write(ctx context.Context, in <-chan api.Item) error {
	err := w.batcher.Write(ctx, in)
	if herr := w.writeHeaderOnce(); err == nil {
		err = herr
	}
	return errors.Join(err, w.Close())
}

// writeHeaderOnce writes the pending header. Callers hold no lock.
func (w *Writer) writeHeaderOnce() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.header()
}

func (w *Writer) header() error {
	if !w.needHeader {
		return nil
	}
	if err := w.enc.Write(api.RowHeaders); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	w.needHeader = false
	return nil
}

func (w *Writer) writeRows(batch []api.Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.header(); err != nil {
		return err
	}
	for _, it := range batch {
		if err := w.enc.Write(api.ToRow(it).Values()); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", it.MessageID(), err)
		}
	}
	w.enc.Flush()
	if err := w.enc.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	w.logger.Debug("wrote rows", "count", len(batch))
	return nil
}

// Close flushes buffered output and closes a file opened by New. It is safe
// to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.enc.Flush()
	err := w.enc.Error()
	if w.file != nil {
		err = errors.Join(err, w.file.Close())
		w.file = nil
		w.logger.Info("csv writer closed")
	}
	if err != nil {
		return fmt.Errorf("closing csv output: %w", err)
	}
	return nil
}
