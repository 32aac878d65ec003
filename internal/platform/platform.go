// Package platform provides the extractor framework for donorkit.
//
// Extractors are per-platform integrations that turn a submitted export
// archive (TikTok, ChatGPT, ...) into labeled result tables. All archive
// decoding goes through internal/archive and all field access through
// internal/denest, so an extractor is mostly wiring: which files, which
// field paths, which tables.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"donorkit/internal/table"
)

// ErrInvalidFile reports that a submitted file is not a readable export for
// this platform (bad archive, wrong shape, missing required fields). The
// flow engine maps it to a retry prompt.
var ErrInvalidFile = errors.New("platform: invalid export file")

// ErrNoData reports that the file validated but no table could be produced.
// Treated exactly like ErrInvalidFile by the flow engine.
var ErrNoData = errors.New("platform: no extractable data")

// Chart describes an optional visualization attached to a result table.
// The presenter renders it; extractors only describe it.
type Chart struct {
	Title  string       `json:"title"`
	Type   string       `json:"type"` // "bar", "line", "area"
	Group  ChartGroup   `json:"group"`
	Values []ChartValue `json:"values"`
}

// ChartGroup names the table column charts group rows by.
type ChartGroup struct {
	Column     string `json:"column"`
	Label      string `json:"label,omitempty"`
	DateFormat string `json:"dateFormat,omitempty"`
}

// ChartValue names one plotted table column.
type ChartValue struct {
	Column    string `json:"column"`
	Label     string `json:"label,omitempty"`
	Aggregate string `json:"aggregate,omitempty"` // "mean", "sum", "count"
	AddZeroes bool   `json:"addZeroes,omitempty"`
}

// Result is one labeled extraction result. Produced once per extractor
// table and never mutated after creation.
type Result struct {
	ID          string
	Title       string
	Table       *table.Table
	Description string
	Charts      []Chart
}

// Extractor defines the interface all platform extractors implement.
type Extractor interface {
	// Name returns the unique platform identifier (e.g. "tiktok").
	Name() string

	// DisplayName returns a human-readable name (e.g. "TikTok").
	DisplayName() string

	// AcceptedTypes returns the mime types the file prompt should accept.
	AcceptedTypes() string

	// Extract turns a submitted export file into result tables. It returns
	// ErrInvalidFile or ErrNoData (possibly wrapped) for recoverable
	// problems with the file itself; faults local to a single table or
	// record never surface as errors.
	Extract(ctx context.Context, path string) ([]Result, error)
}

// Registry holds registered extractors. Thread-safe.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

// Register adds an extractor to the registry. Panics on duplicate names.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if _, exists := r.extractors[name]; exists {
		panic(fmt.Sprintf("platform: duplicate extractor registration: %s", name))
	}
	r.extractors[name] = e
}

// Get returns the extractor with the given name, or nil.
func (r *Registry) Get(name string) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extractors[name]
}

// List returns all registered extractors sorted by name.
func (r *Registry) List() []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Extractor, 0, len(names))
	for _, name := range names {
		out = append(out, r.extractors[name])
	}
	return out
}

// DefaultRegistry is the registry init()-registered extractors land in.
var DefaultRegistry = NewRegistry()
