package feature

import (
	"math"
	"testing"

	"tessera/internal/lm"
	"tessera/internal/vocab"
)

func TestAggregate(t *testing.T) {
	got := Aggregate(
		Values{{"b", 1}, {"a", 2}},
		Values{{"b", 0.5}},
	)
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("Aggregate = %v", got)
	}
	if got.Get("b") != 1.5 {
		t.Fatalf("b = %v", got.Get("b"))
	}
	if got.String() != "a=2 b=1.5" {
		t.Fatalf("String = %q", got.String())
	}
}

func TestLinearScore(t *testing.T) {
	l := NewLinear(map[string]float64{"TM:0": 2, "LM": 0.5})
	got := l.IncrementalScore(Values{{"TM:0", -1}, {"LM", -4}, {"unweighted", 100}})
	if got != -4 {
		t.Fatalf("IncrementalScore = %v, want -4", got)
	}
	if names := l.Names(); len(names) != 2 || names[0] != "LM" {
		t.Fatalf("Names = %v", names)
	}
}

func TestNewSetRejectsDuplicates(t *testing.T) {
	if _, err := NewSet(WordPenalty{}, WordPenalty{}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

type counterState int

func (c counterState) Equal(o any) bool { oc, ok := o.(counterState); return ok && oc == c }
func (c counterState) Hash() uint64     { return uint64(c) }

// counter is a stateful featurizer counting applied extensions.
type counter struct{ name string }

func (c counter) Name() string        { return c.name }
func (c counter) InitialState() State { return counterState(0) }
func (c counter) Featurize(f *Featurizable) Values {
	n := f.PriorState().(counterState) + 1
	f.SetState(n)
	return Values{{c.name, float64(n)}}
}

func TestSetSlots(t *testing.T) {
	s, err := NewSet(WordPenalty{}, counter{"c1"}, PhrasePenalty{}, counter{"c2"})
	if err != nil {
		t.Fatal(err)
	}
	if s.NumSlots() != 2 {
		t.Fatalf("NumSlots = %d", s.NumSlots())
	}
	root := s.InitialStates()
	f := NewFeaturizable(root)
	f.TargetPhrase = vocab.Sequence{10, 11}
	vs := s.Featurize(f)
	if vs.Get(WordPenaltyName) != 2 || vs.Get("c1") != 1 || vs.Get("c2") != 1 {
		t.Fatalf("Featurize = %v", vs)
	}
	next := f.States()
	if next[0] != counterState(1) || next[1] != counterState(1) {
		t.Fatalf("states = %v", next)
	}
	if root[0] != counterState(0) {
		t.Fatal("parent states were modified")
	}
	f2 := NewFeaturizable(next)
	s.Featurize(f2)
	if f2.States()[1] != counterState(2) {
		t.Fatalf("second extension states = %v", f2.States())
	}
	if got := s.SlotsWhere(func(f Featurizer) bool { return f.Name() == "c2" }); len(got) != 1 || got[0] != 1 {
		t.Fatalf("SlotsWhere = %v", got)
	}
}

func TestNGramFeaturizer(t *testing.T) {
	voc := vocab.New()
	a, b := voc.Intern("A"), voc.Intern("B")
	m := lm.NewModel(2)
	m.Add([]vocab.WordID{vocab.StartID}, -1, 0)
	m.Add([]vocab.WordID{a}, -1, 0)
	m.Add([]vocab.WordID{b}, -1, 0)
	m.Add([]vocab.WordID{vocab.EndID}, -1, 0)
	m.Add([]vocab.WordID{vocab.StartID, a}, -0.1, 0)
	m.Add([]vocab.WordID{b, vocab.EndID}, -0.2, 0)

	ng := NewNGram(m, "")
	s, err := NewSet(ng)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFeaturizable(s.InitialStates())
	f.TargetPhrase = vocab.Sequence{a, b}
	f.Done = true
	got := s.Featurize(f).Get(LanguageModelName)
	if want := -0.1 + -1 + -0.2; math.Abs(got-want) > 1e-9 {
		t.Fatalf("LM = %v, want %v", got, want)
	}
	if len(s.SlotsWhere(LanguageModel)) != 1 {
		t.Fatal("LM slot not found")
	}
	iso := ng.IsolationFeatures(vocab.Sequence{a})
	if iso.Get(LanguageModelName) != -1 {
		t.Fatalf("isolation = %v", iso)
	}
}

func TestLinearDistortionFeaturizer(t *testing.T) {
	f := NewFeaturizable(nil)
	f.LinearDistortion = 3
	if got := (LinearDistortion{}).Featurize(f).Get(LinearDistortionName); got != -3 {
		t.Fatalf("LinearDistortion = %v", got)
	}
	f.TargetOnly = true
	if len((LinearDistortion{}).Featurize(f)) != 0 || len((PhrasePenalty{}).Featurize(f)) != 0 {
		t.Fatal("target-only extension charged distortion or phrase penalty")
	}
}
