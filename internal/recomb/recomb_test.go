package recomb

import (
	"errors"
	"math/rand/v2"
	"testing"

	"tessera/internal/coverage"
	"tessera/internal/derivation"
	"tessera/internal/feature"
	"tessera/internal/rule"
	"tessera/internal/vocab"
)

type ctxState int

func (c ctxState) Equal(o any) bool { oc, ok := o.(ctxState); return ok && oc == c }
func (c ctxState) Hash() uint64     { return uint64(c) * 7919 }

const width = 3

type gen struct {
	r    *rand.Rand
	opts []*rule.Option
	id   int64
}

func newGen(seed uint64) *gen {
	g := &gen{r: rand.New(rand.NewPCG(seed, seed^0x5bd1e995))}
	for i := range 4 {
		start := i % width
		end := min(start+i/2, width-1)
		g.opts = append(g.opts, &rule.Option{
			ID: i, SourceStart: start, SourceEnd: end,
			Coverage: coverage.Span(width, start, end),
			Rule:     &rule.Rule{Target: []vocab.Sequence{{10}, {11}}},
		})
	}
	return g
}

// derivation draws from a small space so equal keys are common.
func (g *gen) derivation() *derivation.Derivation {
	g.id++
	var pos []int
	for i := range width {
		if g.r.IntN(2) == 0 {
			pos = append(pos, i)
		}
	}
	d := &derivation.Derivation{
		ID:       g.id,
		Coverage: coverage.Of(width, pos...),
		Score:    float64(g.r.IntN(20)) - 10,
		States:   []feature.State{ctxState(g.r.IntN(3)), ctxState(g.r.IntN(2))},
	}
	if k := g.r.IntN(len(g.opts) + 1); k < len(g.opts) {
		d.LastOption = g.opts[k]
	}
	for range g.r.IntN(3) {
		d.Target = append(d.Target, vocab.WordID(10+g.r.IntN(2)))
	}
	for range g.r.IntN(2) {
		d.Floating = append(d.Floating, derivation.Floating{
			Option: g.opts[g.r.IntN(2)], Segment: 1, FirstPos: 2, LastPos: 2 + g.r.IntN(2),
		})
	}
	return d
}

var slots = []feature.Slot{0, 1}

func primitives() []Filter {
	return []Filter{
		{Kind: None},
		{Kind: Identity},
		{Kind: Coverage},
		{Kind: LMContext, Slots: slots[:1]},
		{Kind: LinearDistortion},
		{Kind: MSD},
		{Kind: Exact, Slots: slots},
		{Kind: DTU},
	}
}

func (g *gen) composite(depth int) Filter {
	prims := primitives()
	if depth == 0 || g.r.IntN(3) == 0 {
		return prims[g.r.IntN(len(prims))]
	}
	subs := make([]Filter, 1+g.r.IntN(3))
	for i := range subs {
		subs[i] = g.composite(depth - 1)
	}
	if g.r.IntN(2) == 0 {
		return AllOf(subs...)
	}
	return AnyOf(subs...)
}

func allFilters(t *testing.T, g *gen) []Filter {
	t.Helper()
	fs := primitives()
	for range 20 {
		fs = append(fs, g.composite(3))
	}
	for _, name := range Names() {
		f, err := NewFilter(name, false, nil)
		if err != nil {
			t.Fatal(err)
		}
		f.Subs = withSlots(f.Subs)
		fs = append(fs, f)
	}
	return fs
}

// withSlots points LM and exact operands at the test state slots.
func withSlots(subs []Filter) []Filter {
	out := make([]Filter, len(subs))
	for i, s := range subs {
		if s.Kind == LMContext || s.Kind == Exact {
			s.Slots = slots
		}
		out[i] = s
	}
	return out
}

func TestCombinableImpliesEqualHash(t *testing.T) {
	g := newGen(1)
	for _, f := range allFilters(t, g) {
		t.Run(f.String(), func(t *testing.T) {
			hits := 0
			for range 3000 {
				a, b := g.derivation(), g.derivation()
				if !f.Combinable(a, b) {
					continue
				}
				hits++
				if f.Hash(a) != f.Hash(b) {
					t.Fatalf("combinable pair hashes differ: %d vs %d", f.Hash(a), f.Hash(b))
				}
			}
			if f.Kind == None && hits != 0 {
				t.Fatalf("none filter combined %d pairs", hits)
			}
		})
	}
}

func TestCompositeAlgebra(t *testing.T) {
	g := newGen(2)
	for range 300 {
		n := 1 + g.r.IntN(4)
		subs := make([]Filter, n)
		for i := range subs {
			subs[i] = g.composite(1)
		}
		and, or := AllOf(subs...), AnyOf(subs...)
		a, b := g.derivation(), g.derivation()
		wantAnd, wantOr := true, false
		for _, s := range subs {
			v := s.Combinable(a, b)
			wantAnd = wantAnd && v
			wantOr = wantOr || v
		}
		if got := and.Combinable(a, b); got != wantAnd {
			t.Fatalf("%s = %v, want %v", and, got, wantAnd)
		}
		if got := or.Combinable(a, b); got != wantOr {
			t.Fatalf("%s = %v, want %v", or, got, wantOr)
		}
	}
}

func TestHashKeepsBestPerClass(t *testing.T) {
	g := newGen(3)
	f := AllOf(Filter{Kind: Coverage}, Filter{Kind: LinearDistortion})
	h := NewHash(f)
	type class struct {
		cov  string
		last int
	}
	keyOf := func(d *derivation.Derivation) class {
		c := class{cov: d.Coverage.String(), last: -1}
		if d.LastOption != nil {
			c.last = d.LastOption.SourceEnd
		}
		return c
	}
	best := make(map[class]float64)
	seen := make(map[class]bool)
	for range 2000 {
		d := g.derivation()
		k := keyOf(d)
		if !seen[k] || d.Score > best[k] {
			best[k] = d.Score
		}
		seen[k] = true
		st, other := h.Query(d, true)
		switch st {
		case NovelInserted:
			if other != nil {
				t.Fatal("novel query returned a partner")
			}
		case Updated:
			if other.Score > d.Score {
				t.Fatalf("replaced a better hypothesis: %v > %v", other.Score, d.Score)
			}
		case Combinable:
			if other.Score < d.Score {
				t.Fatalf("kept a worse hypothesis: %v < %v", other.Score, d.Score)
			}
		default:
			t.Fatalf("unexpected status %s", st)
		}
	}
	if h.Len() != len(seen) {
		t.Fatalf("held %d hypotheses for %d classes", h.Len(), len(seen))
	}
	for _, chain := range h.buckets {
		for _, d := range chain {
			if d.Score != best[keyOf(d)] {
				t.Fatalf("class %v holds %v, best seen %v", keyOf(d), d.Score, best[keyOf(d)])
			}
		}
	}
	st := h.Stats()
	if st.Queries != 2000 || st.Expensive < st.Combinable {
		t.Fatalf("stats = %+v", st)
	}
}

func TestNoRecombinationInsertsEverything(t *testing.T) {
	g := newGen(4)
	h := NewHash(Filter{Kind: None})
	for i := range 500 {
		d := g.derivation()
		if st, _ := h.Query(d, true); st != NovelInserted {
			t.Fatalf("query %d: status %s", i, st)
		}
		if st, _ := h.Query(d, true); st != Self {
			t.Fatalf("requery %d: status %s", i, st)
		}
	}
	if h.Len() != 500 {
		t.Fatalf("Len = %d, want 500", h.Len())
	}
}

func TestQueryWithoutUpdate(t *testing.T) {
	g := newGen(5)
	h := NewHash(Filter{Kind: Coverage})
	a := g.derivation()
	if st, _ := h.Query(a, false); st != Novel || h.Len() != 0 {
		t.Fatalf("status %s len %d", st, h.Len())
	}
	h.Put(a)
	b := *a
	b.ID = 999
	b.Score = a.Score + 1
	if st, other := h.Query(&b, false); st != Better || other != a {
		t.Fatalf("status %s", st)
	}
	if !h.Contains(a) || h.Contains(&b) {
		t.Fatal("Query without update changed the hash")
	}
	if st, _ := h.Query(a, true); st != Self {
		t.Fatalf("status %s, want self", st)
	}
}

func TestRemove(t *testing.T) {
	g := newGen(6)
	h := NewHash(Filter{Kind: Coverage})
	a := g.derivation()
	h.Put(a)
	if err := h.Remove(a, false); err != nil {
		t.Fatal(err)
	}
	if err := h.Remove(a, false); !errors.Is(err, ErrHypothesisMissing) {
		t.Fatalf("err = %v, want ErrHypothesisMissing", err)
	}
	if err := h.Remove(a, true); err != nil {
		t.Fatalf("missingOkay: %v", err)
	}
	if h.Len() != 0 {
		t.Fatalf("Len = %d", h.Len())
	}
}

func TestDTUFloatingNotRecombined(t *testing.T) {
	g := newGen(7)
	cov := coverage.Of(width, 0, 1)
	states := []feature.State{ctxState(1), ctxState(1)}
	a := &derivation.Derivation{ID: 1, Coverage: cov, States: states,
		Floating: []derivation.Floating{{Option: g.opts[0], Segment: 1, FirstPos: 2, LastPos: 5}}}
	b := &derivation.Derivation{ID: 2, Coverage: cov, States: states,
		Floating: []derivation.Floating{{Option: g.opts[1], Segment: 1, FirstPos: 2, LastPos: 5}}}
	for _, name := range []string{NameDTU, NameDTUMSD} {
		f, err := NewFilter(name, false, nil)
		if err != nil {
			t.Fatal(err)
		}
		f.Subs = withSlots(f.Subs)
		if f.Combinable(a, b) {
			t.Fatalf("%s combined differing floating lists", name)
		}
		c := *a
		c.ID = 3
		if !f.Combinable(a, &c) {
			t.Fatalf("%s did not combine identical hypotheses", name)
		}
	}
}

func TestNewFilter(t *testing.T) {
	if _, err := NewFilter("bogus", false, nil); err == nil {
		t.Fatal("unknown name accepted")
	}
	for _, name := range []string{NameNone, NameIdentity, NameCoverage, NameLinearDistortion, NameNGram, NameFine, NameExact} {
		if f, err := NewFilter(name, true, nil); err == nil {
			t.Errorf("NewFilter(%s, msd) = %s, want error", name, f)
		}
	}
	tests := []struct {
		name string
		msd  bool
		want string
	}{
		{NameClassic, false, "and(lineardistortion,lmcontext,coverage)"},
		{NameClassic, true, "and(msd,lmcontext,coverage)"},
		{NameDTU, true, "and(dtu,msd,lmcontext)"},
		{NameMSD, true, "and(msd,lmcontext,coverage)"},
		{NameNone, false, "none"},
		{NameCoverage, false, "coverage"},
	}
	for _, tt := range tests {
		f, err := NewFilter(tt.name, tt.msd, nil)
		if err != nil {
			t.Fatal(err)
		}
		if f.String() != tt.want {
			t.Errorf("NewFilter(%s, %v) = %s, want %s", tt.name, tt.msd, f, tt.want)
		}
	}
}
