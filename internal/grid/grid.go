// Package grid indexes a sentence's options by source span.
package grid

import (
	"tessera/internal/rule"
)

// Grid is a size×size table of option lists keyed by (start, end). It is
// built once per sentence and read-only afterwards.
type Grid struct {
	size  int
	cells [][]*rule.Option
	all   []*rule.Option
}

// New places every option with an in-range span; others are ignored.
func New(size int, opts []*rule.Option) *Grid {
	g := &Grid{size: size, cells: make([][]*rule.Option, size*size)}
	for _, o := range opts {
		if o.SourceStart < 0 || o.SourceEnd >= size || o.SourceStart > o.SourceEnd {
			continue
		}
		i := o.SourceStart*size + o.SourceEnd
		g.cells[i] = append(g.cells[i], o)
		g.all = append(g.all, o)
	}
	return g
}

// Size is the sentence length.
func (g *Grid) Size() int { return g.size }

// Get returns the options spanning [start, end]; nil when empty or out of range.
func (g *Grid) Get(start, end int) []*rule.Option {
	if start < 0 || end >= g.size || start > end {
		return nil
	}
	return g.cells[start*g.size+end]
}

// All lists every placed option in insertion order.
func (g *Grid) All() []*rule.Option { return g.all }

// Partition splits options into contiguous-coverage and gapped-coverage
// groups. Gapped options are kept out of future-cost estimation unless the
// caller opts in.
func Partition(opts []*rule.Option) (contiguous, gapped []*rule.Option) {
	for _, o := range opts {
		if o.Contiguous() {
			contiguous = append(contiguous, o)
		} else {
			gapped = append(gapped, o)
		}
	}
	return contiguous, gapped
}
