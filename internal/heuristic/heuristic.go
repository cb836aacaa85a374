// Package heuristic estimates the score still to be earned by a partial
// hypothesis from the uncovered part of the source.
package heuristic

import (
	"math"

	"tessera/internal/coverage"
	"tessera/internal/grid"
	"tessera/internal/rule"
)

// UncoverablePenalty is the per-word estimate for a source word no option
// covers. It keeps the estimate finite so such hypotheses still rank.
const UncoverablePenalty = -1e4

// Heuristic estimates the remaining score for a coverage set. Estimates are
// computed once per hypothesis and never revised.
type Heuristic interface {
	Estimate(cov coverage.Set) float64
}

// FutureCost is the isolated-phrase span table: best[s][e] holds the best
// score for translating source words s..e with any segmentation.
type FutureCost struct {
	n    int
	best []float64
}

// Options selects which options feed the table.
type Options struct {
	// Gapped lets discontinuous options contribute their bounding span.
	Gapped bool
}

// NewFutureCost builds the table from g's options.
func NewFutureCost(g *grid.Grid, o Options) *FutureCost {
	n := g.Size()
	fc := &FutureCost{n: n, best: make([]float64, n*n)}
	for i := range fc.best {
		fc.best[i] = math.Inf(-1)
	}
	opts := g.All()
	if !o.Gapped {
		opts, _ = grid.Partition(opts)
	}
	for _, opt := range opts {
		fc.relax(opt)
	}
	for s := range n {
		if math.IsInf(fc.at(s, s), -1) {
			fc.best[s*n+s] = UncoverablePenalty
		}
	}
	for length := 2; length <= n; length++ {
		for s := 0; s+length-1 < n; s++ {
			e := s + length - 1
			best := fc.at(s, e)
			for k := s; k < e; k++ {
				best = max(best, fc.at(s, k)+fc.at(k+1, e))
			}
			fc.best[s*n+e] = best
		}
	}
	return fc
}

func (fc *FutureCost) relax(o *rule.Option) {
	i := o.SourceStart*fc.n + o.SourceEnd
	fc.best[i] = max(fc.best[i], o.IsolationScore)
}

func (fc *FutureCost) at(s, e int) float64 { return fc.best[s*fc.n+e] }

// Span returns the table entry for [start, end].
func (fc *FutureCost) Span(start, end int) float64 {
	if start < 0 || end >= fc.n || start > end {
		return 0
	}
	return fc.at(start, end)
}

// Estimate sums the table over maximal uncovered runs.
func (fc *FutureCost) Estimate(cov coverage.Set) float64 {
	total := 0.0
	for s := cov.NextClear(0); s < fc.n; {
		e := cov.NextSet(s)
		if e < 0 {
			e = fc.n
		}
		total += fc.at(s, e-1)
		s = cov.NextClear(e)
	}
	return total
}

// Zero is the null heuristic.
type Zero struct{}

func (Zero) Estimate(coverage.Set) float64 { return 0 }
