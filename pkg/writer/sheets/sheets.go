// Package sheets implements a Writer that appends extracted items to a
// Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/writer/buffered"
)

// Scope is the OAuth scope the writer needs.
const Scope = sheets.SpreadsheetsScope

// Defaults applied by New.
const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 30 * time.Second
	DefaultRetryDelay    = 60 * time.Second
	DefaultSheetName     = "Sheet1"
)

// appendAttempts includes the first try.
const appendAttempts = 3

// Config holds configuration for the Sheets writer.
type Config struct {
	// SheetID is an existing spreadsheet. When it is empty or cannot be
	// opened, a new spreadsheet titled SheetTitle is created.
	SheetID    string
	SheetTitle string
	// SheetName is the tab rows are appended to.
	SheetName string

	BatchSize     int
	FlushInterval time.Duration
	// RetryDelay is the wait before retrying a rate-limited append.
	RetryDelay time.Duration
}

// Writer appends rows in the api.RowHeaders layout.
type Writer struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string
	retryDelay    time.Duration
	logger        *slog.Logger
	batcher       *buffered.Writer
}

// New opens or creates the spreadsheet. Extra client options are passed to
// the Sheets service.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	logger = logger.With("component", "sheets")

	ctx := context.Background()
	svc, err := sheets.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	w := &Writer{
		svc:        svc,
		tab:        cfg.SheetName,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
	if w.spreadsheetID, err = w.open(ctx, cfg); err != nil {
		return nil, err
	}
	w.batcher = buffered.New(w.appendRows, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger)

	logger.Info("sheets writer initialized", "spreadsheet_id", w.spreadsheetID, "sheet", w.tab)
	return w, nil
}

// open returns the id of the configured spreadsheet, creating one with a
// header row when it cannot be read.
func (w *Writer) open(ctx context.Context, cfg Config) (string, error) {
	if cfg.SheetID != "" {
		ss, err := w.svc.Spreadsheets.Get(cfg.SheetID).Fields("spreadsheetId", "properties/title").Context(ctx).Do()
		if err == nil {
			w.logger.Info("using existing spreadsheet", "title", ss.Properties.Title)
			return ss.SpreadsheetId, nil
		}
		w.logger.Warn("cannot open spreadsheet, creating a new one", "id", cfg.SheetID, "error", err)
	}

	ss, err := w.svc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: cfg.SheetTitle},
		Sheets:     []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: w.tab}}},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating spreadsheet: %w", err)
	}
	w.logger.Info("created spreadsheet", "title", cfg.SheetTitle, "id", ss.SpreadsheetId)

	header := &sheets.ValueRange{Values: [][]any{toCells(api.RowHeaders)}}
	if _, err := w.svc.Spreadsheets.Values.Update(ss.SpreadsheetId, w.rowRange(1), header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("writing headers: %w", err)
	}
	return ss.SpreadsheetId, nil
}

// Write consumes items until in is closed or ctx is done.
func (w *Writer) Write(ctx context.Context, in <-chan api.Item) error {
	return w.batcher.Write(ctx, in)
}

// SpreadsheetID returns the spreadsheet being written to.
func (w *Writer) SpreadsheetID() string {
	return w.spreadsheetID
}

// appendRows sends one batch in a single append call, retrying while the
// API answers 429. It runs to completion once started; cancellation is
// handled by the batcher.
func (w *Writer) appendRows(batch []api.Item) error {
	vr := &sheets.ValueRange{Values: make([][]any, 0, len(batch))}
	for _, it := range batch {
		vr.Values = append(vr.Values, toCells(api.ToRow(it).Values()))
	}

	err := retry.Do(
		func() error {
			_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, w.rowRange(2), vr).
				ValueInputOption("RAW").
				InsertDataOption("INSERT_ROWS").
				Do()
			return err
		},
		retry.RetryIf(w.rateLimited),
		retry.Attempts(appendAttempts),
		retry.Delay(w.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending %d rows: %w", len(batch), err)
	}

	w.logger.Info("appended rows", "count", len(batch), "first_id", batch[0].MessageID())
	return nil
}

func (w *Writer) rateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		w.logger.Warn("rate limited, will retry", "delay", w.retryDelay)
		return true
	}
	return false
}

// rowRange returns the A1 range spanning every column of row n.
func (w *Writer) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:%s%d", w.tab, n, lastColumn(), n)
}

// lastColumn returns the column letter of the last header.
func lastColumn() string {
	return string(rune('A' + len(api.RowHeaders) - 1))
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
