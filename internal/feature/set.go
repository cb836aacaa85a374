package feature

import (
	"fmt"

	"fortio.org/safecast"

	"tessera/internal/vocab"
)

// Set runs a fixed list of featurizers and owns slot assignment.
type Set struct {
	featurizers []Featurizer
	slots       []int // per featurizer; -1 for stateless ones
	nslots      int
}

// NewSet assigns a slot to every stateful featurizer. Featurizer names must
// be unique.
func NewSet(fs ...Featurizer) (*Set, error) {
	s := &Set{featurizers: fs, slots: make([]int, len(fs))}
	seen := make(map[string]struct{}, len(fs))
	for i, f := range fs {
		if _, dup := seen[f.Name()]; dup {
			return nil, fmt.Errorf("duplicate featurizer %q", f.Name())
		}
		seen[f.Name()] = struct{}{}
		s.slots[i] = -1
		if _, ok := f.(Stateful); ok {
			if _, err := safecast.Conv[Slot](s.nslots); err != nil {
				return nil, fmt.Errorf("too many stateful featurizers: %w", err)
			}
			s.slots[i] = s.nslots
			s.nslots++
		}
	}
	return s, nil
}

// ForSentence returns a copy whose sentence-aware featurizers have seen source.
func (s *Set) ForSentence(source vocab.Sequence) *Set {
	out := &Set{featurizers: make([]Featurizer, len(s.featurizers)), slots: s.slots, nslots: s.nslots}
	for i, f := range s.featurizers {
		if sf, ok := f.(SentenceFeaturizer); ok {
			f = sf.ForSentence(source)
		}
		out.featurizers[i] = f
	}
	return out
}

// NumSlots is the length of every hypothesis state array.
func (s *Set) NumSlots() int { return s.nslots }

// InitialStates returns the root hypothesis state array.
func (s *Set) InitialStates() []State {
	states := make([]State, s.nslots)
	for i, f := range s.featurizers {
		if s.slots[i] >= 0 {
			states[s.slots[i]] = f.(Stateful).InitialState()
		}
	}
	return states
}

// Featurize runs every featurizer over f.
func (s *Set) Featurize(f *Featurizable) Values {
	var out Values
	for i, fz := range s.featurizers {
		f.slot = s.slots[i]
		out = append(out, fz.Featurize(f)...)
	}
	f.slot = -1
	return out
}

// Isolation collects isolation features for a target phrase.
func (s *Set) Isolation(target vocab.Sequence) Values {
	var out Values
	for _, fz := range s.featurizers {
		if iso, ok := fz.(Isolator); ok {
			out = append(out, iso.IsolationFeatures(target)...)
		}
	}
	return out
}

// SlotsWhere lists the slots of stateful featurizers matching pred.
func (s *Set) SlotsWhere(pred func(Featurizer) bool) []Slot {
	var out []Slot
	for i, f := range s.featurizers {
		if s.slots[i] >= 0 && pred(f) {
			out = append(out, Slot(s.slots[i]))
		}
	}
	return out
}

// Names lists featurizer names in run order.
func (s *Set) Names() []string {
	names := make([]string, len(s.featurizers))
	for i, f := range s.featurizers {
		names[i] = f.Name()
	}
	return names
}
