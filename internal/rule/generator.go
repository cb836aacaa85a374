package rule

import (
	"cmp"
	"slices"

	"tessera/internal/coverage"
	"tessera/internal/feature"
	"tessera/internal/vocab"
)

// DefaultMaxGap bounds how many source words a rule gap may swallow.
const DefaultMaxGap = 3

// Generator produces the options for one sentence.
type Generator struct {
	Table *Table
	// Limit keeps at most Limit options per covered source pattern, best
	// isolation score first. Zero keeps all.
	Limit int
	// MaxGap bounds source gaps of discontinuous rules; zero means DefaultMaxGap.
	MaxGap int
	// Gapped enables discontinuous rules.
	Gapped bool
	// Unknown adds pass-through options for source words nothing covers.
	Unknown bool
}

// Options enumerates every applicable option for source, scores it in
// isolation with set and scorer (either may be nil) and numbers the
// survivors in a deterministic order.
func (g *Generator) Options(source vocab.Sequence, set *feature.Set, scorer feature.Scorer) []*Option {
	n := len(source)
	var opts []*Option
	add := func(r *Rule, cov coverage.Set) {
		opts = append(opts, &Option{
			Rule:        r,
			SourceStart: cov.First(),
			SourceEnd:   cov.Last(),
			Coverage:    cov,
		})
	}
	for start := range n {
		for end := start; end < n && end-start < g.Table.maxLen; end++ {
			for _, r := range g.Table.Lookup(source[start : end+1]) {
				if r.Gapped() && !g.Gapped {
					continue
				}
				add(r, coverage.Span(n, start, end))
			}
		}
		if !g.Gapped {
			continue
		}
		for _, r := range g.Table.gapped[source[start]] {
			for _, pos := range g.match(r, source, start) {
				add(r, coverage.Of(n, pos...))
			}
		}
	}

	if g.Unknown {
		covered := coverage.New(n)
		for _, o := range opts {
			covered = covered.Union(o.Coverage)
		}
		for i := covered.NextClear(0); i < n; i = covered.NextClear(i + 1) {
			add(&Rule{
				Source:   source[i : i+1],
				Target:   []vocab.Sequence{source[i : i+1]},
				Features: feature.Values{{Name: UnknownFeature, Value: 1}},
			}, coverage.Of(n, i))
		}
	}

	for _, o := range opts {
		o.IsolationScore = isolationScore(o, set, scorer)
	}
	opts = g.limit(opts)
	slices.SortStableFunc(opts, func(a, b *Option) int {
		if c := cmp.Compare(a.SourceStart, b.SourceStart); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SourceEnd, b.SourceEnd); c != 0 {
			return c
		}
		return cmp.Compare(b.IsolationScore, a.IsolationScore)
	})
	for i, o := range opts {
		o.ID = i
	}
	return opts
}

func isolationScore(o *Option, set *feature.Set, scorer feature.Scorer) float64 {
	if scorer == nil {
		return 0
	}
	score := scorer.IncrementalScore(o.Features())
	if set != nil {
		score += scorer.IncrementalScore(set.Isolation(o.Rule.TargetWords()))
	}
	return score
}

// limit applies the per-pattern option limit.
func (g *Generator) limit(opts []*Option) []*Option {
	if g.Limit <= 0 {
		return opts
	}
	groups := make(map[string][]*Option)
	var order []string
	for _, o := range opts {
		k := o.Coverage.String()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], o)
	}
	out := make([]*Option, 0, len(opts))
	for _, k := range order {
		group := groups[k]
		slices.SortStableFunc(group, func(a, b *Option) int {
			return cmp.Compare(b.IsolationScore, a.IsolationScore)
		})
		out = append(out, group[:min(len(group), g.Limit)]...)
	}
	return out
}

// match returns the position lists at which the gapped rule r matches
// source with its first word at start.
func (g *Generator) match(r *Rule, source vocab.Sequence, start int) [][]int {
	maxGap := g.MaxGap
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	var out [][]int
	var walk func(i, pos int, acc []int)
	walk = func(i, pos int, acc []int) {
		if pos >= len(source) || source[pos] != r.Source[i] {
			return
		}
		acc = append(acc, pos)
		if i == len(r.Source)-1 {
			out = append(out, slices.Clone(acc))
			return
		}
		if !r.Gaps[i] {
			walk(i+1, pos+1, acc)
			return
		}
		for gap := 1; gap <= maxGap; gap++ {
			walk(i+1, pos+1+gap, acc)
		}
	}
	walk(0, start, nil)
	return out
}
