package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/contas-dev/contas/internal/config"
)

// Reader turns a statement file into a raw cell grid. Cell values are
// untyped strings; a Layout gives them meaning.
type Reader interface {
	Read(r io.Reader) ([][]string, error)
	Format() string
}

// Layout maps statement columns onto transaction fields. Layouts are
// bank-specific and user-configurable.
type Layout struct {
	Name         string
	DateColumn   int
	DescColumn   int
	AmountColumn int
	HeaderRows   int
	DateFormats  []string // empty = DefaultDateFormats
	InvertSign   bool     // credit-card statements list charges as positive
	SkipPrefixes []string // description prefixes of non-transaction rows
}

// FromConfig converts a configured layout.
func FromConfig(lc config.Layout) Layout {
	return Layout{
		Name:         lc.Name,
		DateColumn:   lc.DateColumn,
		DescColumn:   lc.DescColumn,
		AmountColumn: lc.AmountColumn,
		HeaderRows:   lc.HeaderRows,
		DateFormats:  lc.DateFormats,
		InvertSign:   lc.InvertSign,
		SkipPrefixes: lc.SkipPrefixes,
	}
}

// Registry holds named layouts and format readers.
type Registry struct {
	layouts map[string]Layout
	readers map[string]Reader
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		layouts: make(map[string]Layout),
		readers: make(map[string]Reader),
	}
}

// RegisterLayout adds a layout. Panics on duplicate name.
func (r *Registry) RegisterLayout(l Layout) {
	key := strings.ToLower(l.Name)
	if _, ok := r.layouts[key]; ok {
		panic("duplicate layout: " + key)
	}
	r.layouts[key] = l
}

// RegisterReader adds a format reader. Panics on duplicate format.
func (r *Registry) RegisterReader(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Layout returns the layout with the given name.
func (r *Registry) Layout(name string) (Layout, bool) {
	l, ok := r.layouts[strings.ToLower(name)]
	return l, ok
}

// LayoutNames lists the registered layout names.
func (r *Registry) LayoutNames() []string {
	names := make([]string, 0, len(r.layouts))
	for k := range r.layouts {
		names = append(names, k)
	}
	return names
}

// ReaderFor returns the reader for a file name based on its extension.
func (r *Registry) ReaderFor(filename string) (Reader, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	rd, ok := r.readers[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported statement format %q", ext)
	}
	return rd, nil
}

// DefaultRegistry returns a registry with the built-in readers and
// layouts, plus any layouts configured by the user.
func DefaultRegistry(extra ...config.Layout) *Registry {
	r := NewRegistry()
	r.RegisterReader(&CSVReader{})
	r.RegisterReader(&XLSXReader{})
	r.RegisterReader(&XLSReader{})

	// Generic three-column export: date, description, amount.
	r.RegisterLayout(Layout{
		Name:         "generic",
		DateColumn:   0,
		DescColumn:   1,
		AmountColumn: 2,
		HeaderRows:   1,
		SkipPrefixes: []string{"SALDO"},
	})
	// Itaú checking account extract: data, lançamento, ag/origem, valor, saldo.
	r.RegisterLayout(Layout{
		Name:         "itau-extrato",
		DateColumn:   0,
		DescColumn:   1,
		AmountColumn: 3,
		HeaderRows:   1,
		SkipPrefixes: []string{"SALDO"},
	})
	// Itaú credit card invoice: data, lançamento, valor (charges positive).
	r.RegisterLayout(Layout{
		Name:         "itau-fatura",
		DateColumn:   0,
		DescColumn:   1,
		AmountColumn: 2,
		HeaderRows:   1,
		InvertSign:   true,
		SkipPrefixes: []string{"SALDO", "PAGAMENTO EFETUADO"},
	})

	for _, lc := range extra {
		r.RegisterLayout(FromConfig(lc))
	}
	return r
}
