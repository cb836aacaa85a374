// Package feature defines feature values, the extension record featurizers
// score, stateful featurizer slots and the linear scorer.
package feature

import (
	"fmt"
	"slices"
	"strings"

	"tessera/internal/vocab"
)

// Value is one named feature contribution.
type Value struct {
	Name  string  `msgpack:"name" json:"name"`
	Value float64 `msgpack:"value" json:"value"`
}

// Values is a list of feature contributions, possibly with repeated names.
type Values []Value

// Aggregate sums contributions by name. The result is sorted by name.
func Aggregate(lists ...Values) Values {
	sums := make(map[string]float64)
	for _, vs := range lists {
		for _, v := range vs {
			sums[v.Name] += v.Value
		}
	}
	out := make(Values, 0, len(sums))
	for name, v := range sums {
		out = append(out, Value{Name: name, Value: v})
	}
	slices.SortFunc(out, func(a, b Value) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Get returns the summed value of name.
func (vs Values) Get(name string) float64 {
	total := 0.0
	for _, v := range vs {
		if v.Name == name {
			total += v.Value
		}
	}
	return total
}

func (vs Values) String() string {
	var sb strings.Builder
	for i, v := range vs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%g", v.Name, v.Value)
	}
	return sb.String()
}

// State is opaque per-featurizer state carried by a hypothesis. Only the
// featurizer that produced it (or a filter that knows its type) compares it.
type State interface {
	Equal(other any) bool
	Hash() uint64
}

// Slot indexes the per-hypothesis state array. Slots are assigned once by
// NewSet, one per stateful featurizer.
type Slot uint16

// Featurizable describes one hypothesis extension: the option applied and
// the partial translation it produces.
type Featurizable struct {
	Source       vocab.Sequence
	SourceStart  int // -1 for target-only extensions
	SourceEnd    int
	SourcePhrase vocab.Sequence
	// TargetPhrase is the text appended to the partial translation.
	TargetPhrase vocab.Sequence
	// TargetPosition is the index in Partial where TargetPhrase begins.
	TargetPosition   int
	Partial          vocab.Sequence
	LinearDistortion int
	TargetOnly       bool
	Done             bool

	prior []State
	next  []State
	slot  int
}

// NewFeaturizable prepares an extension whose successor starts with the
// parent's states; stateful featurizers overwrite their own slot.
func NewFeaturizable(prior []State) *Featurizable {
	return &Featurizable{prior: prior, next: slices.Clone(prior), slot: -1}
}

// PriorState returns the parent's state for the featurizer being run.
func (f *Featurizable) PriorState() State {
	if f.slot < 0 || f.slot >= len(f.prior) {
		return nil
	}
	return f.prior[f.slot]
}

// SetState records the successor's state for the featurizer being run.
func (f *Featurizable) SetState(s State) {
	if f.slot < 0 || f.slot >= len(f.next) {
		return
	}
	f.next[f.slot] = s
}

// States is the successor state array, one entry per slot.
func (f *Featurizable) States() []State { return f.next }

// Featurizer scores an extension.
type Featurizer interface {
	Name() string
	Featurize(f *Featurizable) Values
}

// Stateful featurizers keep state in a slot of every hypothesis.
type Stateful interface {
	Featurizer
	InitialState() State
}

// Isolator scores a target phrase without context; used to rank options
// and to build the future-cost table.
type Isolator interface {
	IsolationFeatures(target vocab.Sequence) Values
}

// SentenceFeaturizer is implemented by featurizers that need to see the
// source sentence before decoding. ForSentence must not modify the receiver.
type SentenceFeaturizer interface {
	ForSentence(source vocab.Sequence) Featurizer
}
