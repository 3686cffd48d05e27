// Package plugins provides a registry of message readers and item writers,
// keyed by the names used in MAILTXN_SOURCE and MAILTXN_OUTPUT.
package plugins

import (
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/ArionMiles/mailtxn/pkg/api"
	"github.com/ArionMiles/mailtxn/pkg/config"
)

// Settings is what a plugin builds its reader or writer from.
type Settings struct {
	config.Config
	// OnAuthFailure is handed to plugins that talk to Google APIs.
	OnAuthFailure func(error)
}

// Plugin describes what every reader and writer plugin reports.
type Plugin interface {
	Name() string
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// ConfigKeys lists the configuration keys the plugin reads.
	ConfigKeys() []string
}

// ReaderPlugin builds message readers. httpClient is nil when no plugin in
// the run needs OAuth.
type ReaderPlugin interface {
	Plugin
	NewReader(httpClient *http.Client, s Settings, logger *slog.Logger) (api.Reader, error)
}

// WriterPlugin builds item writers.
type WriterPlugin interface {
	Plugin
	NewWriter(httpClient *http.Client, s Settings, logger *slog.Logger) (api.Writer, error)
}

// catalog holds plugins of one kind by name.
type catalog[P Plugin] struct {
	kind  string
	byKey map[string]P
}

func newCatalog[P Plugin](kind string) catalog[P] {
	return catalog[P]{kind: kind, byKey: make(map[string]P)}
}

func (c catalog[P]) add(p P) error {
	if _, dup := c.byKey[p.Name()]; dup {
		return fmt.Errorf("%s plugin %q already registered", c.kind, p.Name())
	}
	c.byKey[p.Name()] = p
	return nil
}

func (c catalog[P]) get(name string) (P, error) {
	p, ok := c.byKey[name]
	if !ok {
		return p, fmt.Errorf("%s plugin %q not found, have %v", c.kind, name, slices.Sorted(maps.Keys(c.byKey)))
	}
	return p, nil
}

func (c catalog[P]) sorted() []P {
	out := make([]P, 0, len(c.byKey))
	for _, name := range slices.Sorted(maps.Keys(c.byKey)) {
		out = append(out, c.byKey[name])
	}
	return out
}

// Registry manages available reader and writer plugins.
type Registry struct {
	readers catalog[ReaderPlugin]
	writers catalog[WriterPlugin]
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		readers: newCatalog[ReaderPlugin]("reader"),
		writers: newCatalog[WriterPlugin]("writer"),
	}
}

// RegisterReader registers a reader plugin. Names must be unique.
func (r *Registry) RegisterReader(p ReaderPlugin) error { return r.readers.add(p) }

// RegisterWriter registers a writer plugin. Names must be unique.
func (r *Registry) RegisterWriter(p WriterPlugin) error { return r.writers.add(p) }

// GetReader returns a reader plugin by name.
func (r *Registry) GetReader(name string) (ReaderPlugin, error) { return r.readers.get(name) }

// GetWriter returns a writer plugin by name.
func (r *Registry) GetWriter(name string) (WriterPlugin, error) { return r.writers.get(name) }

// ListReaders returns the reader plugins sorted by name.
func (r *Registry) ListReaders() []ReaderPlugin { return r.readers.sorted() }

// ListWriters returns the writer plugins sorted by name.
func (r *Registry) ListWriters() []WriterPlugin { return r.writers.sorted() }

// Scopes returns the sorted, deduplicated OAuth scopes the named reader and
// writer need together.
func (r *Registry) Scopes(readerName, writerName string) ([]string, error) {
	rp, err := r.readers.get(readerName)
	if err != nil {
		return nil, err
	}
	wp, err := r.writers.get(writerName)
	if err != nil {
		return nil, err
	}
	return unionScopes(rp, wp), nil
}

// AllScopes returns every scope any registered plugin may need, so one
// token from `mailtxn setup` serves every source and output.
func (r *Registry) AllScopes() []string {
	var all []Plugin
	for _, p := range r.readers.sorted() {
		all = append(all, p)
	}
	for _, p := range r.writers.sorted() {
		all = append(all, p)
	}
	return unionScopes(all...)
}

func unionScopes(ps ...Plugin) []string {
	var scopes []string
	for _, p := range ps {
		scopes = append(scopes, p.RequiredScopes()...)
	}
	slices.Sort(scopes)
	return slices.Compact(scopes)
}

// CreateReader builds a reader from the named plugin.
func (r *Registry) CreateReader(name string, httpClient *http.Client, s Settings, logger *slog.Logger) (api.Reader, error) {
	p, err := r.readers.get(name)
	if err != nil {
		return nil, err
	}
	return p.NewReader(httpClient, s, logger)
}

// CreateWriter builds a writer from the named plugin.
func (r *Registry) CreateWriter(name string, httpClient *http.Client, s Settings, logger *slog.Logger) (api.Writer, error) {
	p, err := r.writers.get(name)
	if err != nil {
		return nil, err
	}
	return p.NewWriter(httpClient, s, logger)
}
