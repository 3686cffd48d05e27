// Package orchestrator runs one read, extract and write pass.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/extract"
)

// channelSize bounds how far extraction may run ahead of the writer.
const channelSize = 100

// Summary describes the outcome of a run.
type Summary struct {
	RunID        string
	Fetched      int
	Filtered     int
	Transactions int
	Unparsed     int
	ByType       map[api.TransactionType]int
}

// Runner wires a reader, the extraction pipeline and a writer together.
type Runner struct {
	reader   api.Reader
	pipeline *extract.Pipeline
	writer   api.Writer
	logger   *slog.Logger
}

// New creates a Runner. A nil pipeline uses extract.Default.
func New(reader api.Reader, pipeline *extract.Pipeline, writer api.Writer, logger *slog.Logger) *Runner {
	if pipeline == nil {
		pipeline = extract.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		reader:   reader,
		pipeline: pipeline,
		writer:   writer,
		logger:   logger,
	}
}

// Run fetches every message, extracts items and streams them to the writer.
// It returns once the writer has drained the items. The summary is filled
// in as far as the run got, even when an error is returned.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{
		RunID:  uuid.NewString(),
		ByType: make(map[api.TransactionType]int),
	}
	logger := r.logger.With("run_id", sum.RunID)

	logger.Info("starting run")
	msgs, err := r.reader.Read(ctx)
	if err != nil {
		return sum, fmt.Errorf("reading messages: %w", err)
	}
	sum.Fetched = len(msgs)

	items := r.pipeline.Extract(msgs)
	sum.Filtered = sum.Fetched - len(items)
	for _, it := range items {
		switch v := it.(type) {
		case *api.TransactionRecord:
			sum.Transactions++
			sum.ByType[v.Type]++
		case *api.UnparsedRecord:
			sum.Unparsed++
		}
	}

	in := make(chan api.Item, channelSize)
	writerDone := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		writerDone <- r.writer.Write(ctx, in)
	}()

	sendErr := send(ctx, in, items, stopped)
	close(in)

	if err := <-writerDone; err != nil && !errors.Is(err, context.Canceled) {
		return sum, fmt.Errorf("writing items: %w", err)
	}
	if sendErr != nil {
		return sum, sendErr
	}

	logger.Info("run finished",
		"fetched", sum.Fetched,
		"filtered", sum.Filtered,
		"transactions", sum.Transactions,
		"unparsed", sum.Unparsed,
	)
	return sum, nil
}

// send stops early when the writer has returned; its error is reported by
// the caller.
func send(ctx context.Context, in chan<- api.Item, items []api.Item, stopped <-chan struct{}) error {
	for _, it := range items {
		select {
		case in <- it:
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
