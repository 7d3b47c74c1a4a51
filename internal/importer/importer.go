// Package importer reads finance-tracker CSV exports and turns their rows
// into normalized transactions.
package importer

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one raw CSV row keyed by trimmed header name.
type Record struct {
	Line   int // 1-based data position; the header is line 1
	Fields map[string]string
}

// Get returns the named field, trimmed. Missing fields are empty.
func (r Record) Get(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

// Parser converts an export file into raw records.
type Parser interface {
	Parse(r io.Reader) ([]Record, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PocketSmithParser{})
	return r
}

// ReadFile parses path with the parser registered for format.
func (r *Registry) ReadFile(path, format string) ([]Record, error) {
	p := r.Get(format)
	if p == nil {
		return nil, fmt.Errorf("unknown import format %q", format)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}
