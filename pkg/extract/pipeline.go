// Package extract turns raw transaction-alert snippets into structured records.
//
// Every message goes through the same fixed order:
//
//  1. the noise filter drops OTPs, security codes and newsletters;
//  2. the specific template matchers run in order and the first match wins;
//  3. the generic extractor runs its field passes, then its refiners, then
//     the acceptance rule;
//  4. anything left is returned as an UnparsedRecord.
package extract

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/ArionMiles/mailtxn/pkg/api"
)

// unparsedDateLayout renders an internalDate as month/day/year without padding.
const unparsedDateLayout = "1/2/2006"

// Pipeline runs the filter, matchers and generic extractor over a batch.
// It is safe for concurrent use once constructed.
type Pipeline struct {
	filter   *Filter
	matchers []Matcher
	generic  *Generic
	loc      *time.Location
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMatchers replaces the template matchers. Order is evaluation order.
func WithMatchers(matchers ...Matcher) Option {
	return func(p *Pipeline) {
		p.matchers = matchers
	}
}

// WithFilter replaces the noise filter.
func WithFilter(f *Filter) Option {
	return func(p *Pipeline) {
		p.filter = f
	}
}

// WithGeneric replaces the generic extractor. Passing nil disables it.
func WithGeneric(g *Generic) Option {
	return func(p *Pipeline) {
		p.generic = g
	}
}

// WithLocation sets the zone used to render unparsed message dates.
func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) {
		p.loc = loc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline with the default filter, matchers and generic
// extractor, modified by opts.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		filter:   defaultFilter,
		matchers: DefaultMatchers(),
		generic:  defaultGeneric,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.filter == nil {
		p.filter = defaultFilter
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "extract")
	return p
}

// Default returns a pipeline with every default.
func Default() *Pipeline {
	return New()
}

// Extract processes msgs in order. Filtered messages produce no item; every
// other message produces exactly one, in input order. A nil batch yields an
// empty, non-nil slice.
func (p *Pipeline) Extract(msgs []*api.RawMessage) []api.Item {
	items := make([]api.Item, 0, len(msgs))
	var filtered, unparsed int
	for _, msg := range msgs {
		item, ok := p.ExtractOne(msg)
		if !ok {
			filtered++
			continue
		}
		if _, isUnparsed := item.(*api.UnparsedRecord); isUnparsed {
			unparsed++
		}
		items = append(items, item)
	}

	p.logger.Debug("extraction finished",
		"messages", len(msgs),
		"items", len(items),
		"filtered", filtered,
		"unparsed", unparsed,
	)
	return items
}

// ExtractOne processes a single message. It reports false when the message
// is noise and must not appear in the output.
func (p *Pipeline) ExtractOne(msg *api.RawMessage) (api.Item, bool) {
	if p.filter.ShouldFilterOut(msg) {
		return nil, false
	}

	for _, m := range p.matchers {
		if rec, ok := m.Match(msg); ok {
			p.logger.Debug("matched template", "message_id", msg.ID, "template", m.Name())
			return rec, true
		}
	}

	if p.generic != nil {
		if rec, ok := p.generic.Extract(msg); ok {
			p.logger.Debug("matched generic", "message_id", msg.ID, "type", rec.Type)
			return rec, true
		}
	}

	p.logger.Debug("unparsed message", "message_id", msg.ID)
	return &api.UnparsedRecord{
		ID:      msg.ID,
		Snippet: msg.Snippet,
		Date:    p.formatInternalDate(msg.InternalDate),
		Raw:     msg,
	}, true
}

func (p *Pipeline) formatInternalDate(internalDate string) string {
	if internalDate == "" {
		return api.UnknownDate
	}
	ms, err := strconv.ParseInt(internalDate, 10, 64)
	if err != nil {
		return api.UnknownDate
	}
	return time.UnixMilli(ms).In(p.loc).Format(unparsedDateLayout)
}

// ExtractTransactions runs the default pipeline over msgs.
func ExtractTransactions(msgs []*api.RawMessage) []api.Item {
	return Default().Extract(msgs)
}
