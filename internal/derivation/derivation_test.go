package derivation

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"tessera/internal/feature"
	"tessera/internal/rule"
	"tessera/internal/vocab"
)

type fixture struct {
	voc  *vocab.Vocabulary
	sent *Sentence
	opts []*rule.Option
}

func newFixture(t *testing.T, src, table string, dtu bool) *fixture {
	t.Helper()
	voc := vocab.New()
	tb, err := rule.ReadTable(strings.NewReader(table), voc)
	if err != nil {
		t.Fatal(err)
	}
	set, err := feature.NewSet(feature.WordPenalty{}, feature.LinearDistortion{})
	if err != nil {
		t.Fatal(err)
	}
	source := voc.Parse(src)
	g := &rule.Generator{Table: tb, Gapped: dtu}
	return &fixture{
		voc: voc,
		sent: &Sentence{
			Source:      source,
			Featurizers: set,
			Scorer:      feature.NewLinear(map[string]float64{"TM:0": 1, feature.LinearDistortionName: 1}),
			DTU:         dtu,
		},
		opts: g.Options(source, nil, nil),
	}
}

func (f *fixture) find(t *testing.T, target string) *rule.Option {
	t.Helper()
	for _, o := range f.opts {
		if strings.Join(f.voc.Decode(o.Rule.TargetWords()), " ") == target {
			return o
		}
	}
	t.Fatalf("no option with target %q", target)
	return nil
}

func TestExtendAccumulates(t *testing.T) {
	f := newFixture(t, "a b c", "a ||| A ||| -1\nb ||| B ||| -2\nc ||| C ||| -3\n", false)
	d := NewRoot(f.sent)
	for _, tgt := range []string{"A", "B", "C"} {
		next := Extend(f.sent, d, f.find(t, tgt))
		if next.Prior != d || next.Depth != d.Depth+1 {
			t.Fatal("back-pointer not set")
		}
		if next.Coverage.Cardinality() != d.Coverage.Cardinality()+next.Option.Span() {
			t.Fatal("coverage did not grow by the option span")
		}
		if !next.Coverage.Union(d.Coverage).Equal(next.Coverage) || next.Coverage.Equal(d.Coverage) {
			t.Fatal("coverage is not a strict superset of the parent's")
		}
		d = next
	}
	if got := f.voc.String(d.Target); got != "A B C" {
		t.Fatalf("target = %q", got)
	}
	if d.Score != -6 || !d.Complete() {
		t.Fatalf("score = %v complete = %v", d.Score, d.Complete())
	}
	if got := d.AllFeatures().Get(feature.WordPenaltyName); got != 3 {
		t.Fatalf("WordPenalty = %v", got)
	}
	if len(d.Chain()) != 3 || d.Root().Prior != nil {
		t.Fatal("chain walk broken")
	}
}

func TestExtendDistortion(t *testing.T) {
	f := newFixture(t, "a b c", "a ||| A ||| 0\nb ||| B ||| 0\nc ||| C ||| 0\n", false)
	root := NewRoot(f.sent)
	c := Extend(f.sent, root, f.find(t, "C"))
	if c.Distortion != 2 || c.Score != -2 {
		t.Fatalf("distortion = %d score = %v", c.Distortion, c.Score)
	}
	b := Extend(f.sent, c, f.find(t, "B"))
	if b.Distortion != 2 {
		t.Fatalf("jump back distortion = %d", b.Distortion)
	}
}

func TestDegenerate(t *testing.T) {
	f := newFixture(t, "a", "a ||| A ||| -inf\n", false)
	d := Extend(f.sent, NewRoot(f.sent), f.find(t, "A"))
	if !d.Degenerate() {
		t.Fatalf("score %v not degenerate", d.Score)
	}
	if math.IsInf(NewRoot(f.sent).FinalScoreEstimate(), 0) {
		t.Fatal("root degenerate")
	}
}

func TestFloatingSegments(t *testing.T) {
	f := newFixture(t, "x y", "x ||| X1 <gap> X2 ||| 0\ny ||| Y ||| 0\n", true)
	root := NewRoot(f.sent)
	x := Extend(f.sent, root, f.find(t, "X1 X2"))
	if f.voc.String(x.Target) != "X1" || len(x.Floating) != 1 {
		t.Fatalf("target %q floating %d", f.voc.String(x.Target), len(x.Floating))
	}
	if len(x.Mergeable()) != 0 {
		t.Fatal("segment placeable without an intervening word")
	}
	y := Extend(f.sent, x, f.find(t, "Y"))
	if y.Complete() || len(y.Mergeable()) != 1 {
		t.Fatalf("complete = %v mergeable = %v", y.Complete(), y.Mergeable())
	}
	m := Merge(f.sent, y, 0)
	if f.voc.String(m.Target) != "X1 Y X2" || !m.Complete() || !m.TargetOnly {
		t.Fatalf("merge produced %q complete=%v", f.voc.String(m.Target), m.Complete())
	}
	if !m.Coverage.Equal(y.Coverage) {
		t.Fatal("merge changed coverage")
	}
	if m.AllFeatures().Get("TM:0") != 0 || m.Features.Get(feature.WordPenaltyName) != 1 {
		t.Fatalf("merge features = %v", m.Features)
	}

	var buf bytes.Buffer
	if err := WriteAlignments(&buf, f.voc, f.sent.Source, m); err != nil {
		t.Fatal(err)
	}
	want := "X1 Y X2\nx y\n0:0 => 0:0 # x => X1\n1:1 => 1:1 # y => Y\n0:0 => 2:2 # x => X2\n\n"
	if buf.String() != want {
		t.Fatalf("alignments:\n%s\nwant:\n%s", buf.String(), want)
	}
	if !strings.Contains(m.Dump(f.voc), "merge") {
		t.Fatal("Dump misses merge step")
	}
}

func TestExpired(t *testing.T) {
	f := newFixture(t, "x y", "x ||| X1 <gap> X2 ||| 0\ny ||| Y ||| 0\n", true)
	f.sent.MaxTargetSpan = 1
	x := Extend(f.sent, NewRoot(f.sent), f.find(t, "X1 X2"))
	if f.sent.Expired(x) {
		t.Fatal("expired too early")
	}
	y := Extend(f.sent, x, f.find(t, "Y"))
	if !f.sent.Expired(y) {
		t.Fatal("segment past its span not expired")
	}
}

func TestCompareTieBreak(t *testing.T) {
	f := newFixture(t, "a b", "a ||| A ||| -1\nb ||| B ||| -1\n", false)
	f.sent.Featurizers, _ = feature.NewSet()
	f.sent.Scorer = feature.NewLinear(map[string]float64{"TM:0": 1})
	root := NewRoot(f.sent)
	a, b := f.find(t, "A"), f.find(t, "B")
	ab := Extend(f.sent, Extend(f.sent, root, a), b)
	ba := Extend(f.sent, Extend(f.sent, root, b), a)
	if ab.Score != ba.Score {
		t.Fatal("fixture should tie")
	}
	if Compare(ab, ba) >= 0 || Compare(ba, ab) <= 0 || Compare(ab, ab) != 0 {
		t.Fatal("tie not broken by option chain")
	}
	if !Better(ab, ba) {
		t.Fatal("Better disagrees with Compare")
	}
}
