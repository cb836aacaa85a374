package rule

import (
	"strings"
	"testing"

	"tessera/internal/feature"
	"tessera/internal/vocab"
)

const table = `
a ||| A ||| -1
a ||| AA ||| -3
b ||| B ||| -1.5
a b ||| AB ||| -2 -0.5
ne <gap> pas ||| not ||| -0.7
x ||| X1 <gap> X2 ||| -0.1
`

func readTable(t *testing.T, voc *vocab.Vocabulary) *Table {
	t.Helper()
	tb, err := ReadTable(strings.NewReader(table), voc)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	return tb
}

func TestParseRule(t *testing.T) {
	voc := vocab.New()
	r, err := ParseRule("ne <gap> pas ||| not ||| -0.7 0.2", voc)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Source) != 2 || !r.Gaps[0] || !r.Gapped() {
		t.Fatalf("bad gapped source: %+v", r)
	}
	if r.Features.Get("TM:1") != 0.2 {
		t.Fatalf("features = %v", r.Features)
	}
	r, err = ParseRule("x ||| X1 <gap> X2 ||| 0", voc)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Target) != 2 || voc.String(r.TargetWords()) != "X1 X2" {
		t.Fatalf("bad target segments: %+v", r.Target)
	}
}

func TestParseRuleErrors(t *testing.T) {
	for _, line := range []string{
		"a ||| A",
		"<gap> a ||| A ||| 0",
		"a <gap> ||| A ||| 0",
		"a ||| A <gap> ||| 0",
		"a ||| A ||| nope",
	} {
		if _, err := ParseRule(line, vocab.New()); err == nil {
			t.Errorf("ParseRule(%q) succeeded", line)
		}
	}
}

func TestGeneratorContiguous(t *testing.T) {
	voc := vocab.New()
	g := &Generator{Table: readTable(t, voc)}
	opts := g.Options(voc.Parse("a b"), nil, nil)
	if len(opts) != 4 {
		t.Fatalf("got %d options, want 4", len(opts))
	}
	for i, o := range opts {
		if o.ID != i {
			t.Fatalf("option %d has ID %d", i, o.ID)
		}
	}
	if opts[2].SourceStart != 0 || opts[2].SourceEnd != 1 || opts[2].Span() != 2 {
		t.Fatalf("phrase option misplaced: %s", opts[2].Format(voc))
	}
}

func TestGeneratorLimitAndIsolation(t *testing.T) {
	voc := vocab.New()
	set, err := feature.NewSet(feature.WordPenalty{})
	if err != nil {
		t.Fatal(err)
	}
	scorer := feature.NewLinear(map[string]float64{"TM:0": 1, feature.WordPenaltyName: -1})
	g := &Generator{Table: readTable(t, voc), Limit: 1}
	opts := g.Options(voc.Parse("a"), set, scorer)
	if len(opts) != 1 {
		t.Fatalf("got %d options, want 1", len(opts))
	}
	if voc.String(opts[0].Segments()[0]) != "A" || opts[0].IsolationScore != -2 {
		t.Fatalf("kept %s", opts[0].Format(voc))
	}
}

func TestGeneratorUnknownWords(t *testing.T) {
	voc := vocab.New()
	g := &Generator{Table: readTable(t, voc), Unknown: true}
	opts := g.Options(voc.Parse("a zz"), nil, nil)
	var unk *Option
	for _, o := range opts {
		if o.Features().Get(UnknownFeature) == 1 {
			unk = o
		}
	}
	if unk == nil || unk.SourceStart != 1 || voc.String(unk.Segments()[0]) != "zz" {
		t.Fatalf("no pass-through option for zz: %v", opts)
	}
}

func TestGeneratorGapped(t *testing.T) {
	voc := vocab.New()
	src := voc.Parse("ne va pas x")
	off := &Generator{Table: readTable(t, voc)}
	for _, o := range off.Options(src, nil, nil) {
		if o.Rule.Gapped() {
			t.Fatalf("gapped option without Gapped: %s", o.Format(voc))
		}
	}
	on := &Generator{Table: readTable(t, voc), Gapped: true}
	var found, floating bool
	for _, o := range on.Options(src, nil, nil) {
		if voc.String(o.Rule.Source) == "ne pas" {
			found = true
			if o.Contiguous() || o.SourceStart != 0 || o.SourceEnd != 2 || o.Span() != 2 {
				t.Fatalf("bad gapped option: %s", o.Format(voc))
			}
		}
		if len(o.Segments()) == 2 {
			floating = true
		}
	}
	if !found || !floating {
		t.Fatalf("gapped options missing (source gap %v, target gap %v)", found, floating)
	}
}
