// Package recomb decides when two hypotheses are interchangeable for all
// future search decisions and keeps one representative per class.
package recomb

import (
	"fmt"
	"strings"

	"tessera/internal/derivation"
	"tessera/internal/feature"
)

// Kind selects a filter variant.
type Kind uint8

const (
	None Kind = iota
	Identity
	Coverage
	LMContext
	LinearDistortion
	MSD
	Exact
	DTU
	And
	Or
)

var kindNames = [...]string{
	None:             "none",
	Identity:         "identity",
	Coverage:         "coverage",
	LMContext:        "lmcontext",
	LinearDistortion: "lineardistortion",
	MSD:              "msd",
	Exact:            "exact",
	DTU:              "dtu",
	And:              "and",
	Or:               "or",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Filter is a closed variant over the recombination predicates. Every
// variant guarantees Combinable(a, b) implies Hash(a) == Hash(b).
type Filter struct {
	Kind Kind
	// Slots are the state slots compared by LMContext and Exact.
	Slots []feature.Slot
	// Subs are the operands of And and Or.
	Subs []Filter
}

// Combinable reports whether a and b may be merged.
func (f Filter) Combinable(a, b *derivation.Derivation) bool {
	switch f.Kind {
	case None:
		return false
	case Identity:
		return a.Target.Equal(b.Target)
	case Coverage:
		return a.Coverage.Equal(b.Coverage)
	case LMContext, Exact:
		return statesEqual(a, b, f.Slots)
	case LinearDistortion:
		return lastEnd(a) == lastEnd(b)
	case MSD:
		return lastEnd(a) == lastEnd(b) && lastStart(a) == lastStart(b)
	case DTU:
		return a.Coverage.Equal(b.Coverage) && derivation.FloatingEqual(a.Floating, b.Floating)
	case And:
		for _, s := range f.Subs {
			if !s.Combinable(a, b) {
				return false
			}
		}
		return true
	case Or:
		for _, s := range f.Subs {
			if s.Combinable(a, b) {
				return true
			}
		}
		return false
	}
	panic(fmt.Sprintf("recomb: unknown filter kind %d", f.Kind))
}

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
	// andMix folds operand hashes of And.
	andMix = 31
	// orHash is shared by every hypothesis under Or: two hypotheses may be
	// combinable through different operands, so no operand hash is safe.
	orHash = 0x9e3779b97f4a7c15
)

func mix(h, v uint64) uint64 { return (h ^ v) * fnvPrime }

// Hash is the recombination hash code of d.
func (f Filter) Hash(d *derivation.Derivation) uint64 {
	switch f.Kind {
	case None:
		return uint64(d.ID)
	case Identity:
		h := uint64(fnvOffset)
		for _, w := range d.Target {
			h = mix(h, uint64(w))
		}
		return h
	case Coverage:
		return d.Coverage.Hash()
	case LMContext, Exact:
		h := uint64(fnvOffset)
		for _, s := range f.Slots {
			if int(s) < len(d.States) && d.States[s] != nil {
				h = mix(h, d.States[s].Hash())
			}
		}
		return h
	case LinearDistortion:
		return uint64(int64(lastEnd(d)))
	case MSD:
		return mix(mix(fnvOffset, uint64(int64(lastEnd(d)))), uint64(int64(lastStart(d))))
	case DTU:
		h := d.Coverage.Hash()
		for _, fl := range d.Floating {
			h = mix(h, uint64(fl.Option.ID))
			h = mix(h, uint64(fl.Segment))
			h = mix(h, uint64(fl.FirstPos))
			h = mix(h, uint64(fl.LastPos))
		}
		return h
	case And:
		h := uint64(1)
		for _, s := range f.Subs {
			h = h*andMix + s.Hash(d)
		}
		return h
	case Or:
		return orHash
	}
	panic(fmt.Sprintf("recomb: unknown filter kind %d", f.Kind))
}

func (f Filter) String() string {
	if f.Kind != And && f.Kind != Or {
		return f.Kind.String()
	}
	parts := make([]string, len(f.Subs))
	for i, s := range f.Subs {
		parts[i] = s.String()
	}
	return f.Kind.String() + "(" + strings.Join(parts, ",") + ")"
}

func statesEqual(a, b *derivation.Derivation, slots []feature.Slot) bool {
	for _, s := range slots {
		sa, sb := stateAt(a, s), stateAt(b, s)
		if sa == nil || sb == nil {
			if sa != sb {
				return false
			}
			continue
		}
		if !sa.Equal(sb) {
			return false
		}
	}
	return true
}

func stateAt(d *derivation.Derivation, s feature.Slot) feature.State {
	if int(s) >= len(d.States) {
		return nil
	}
	return d.States[s]
}

func lastEnd(d *derivation.Derivation) int {
	if d.LastOption == nil {
		return -1
	}
	return d.LastOption.SourceEnd
}

func lastStart(d *derivation.Derivation) int {
	if d.LastOption == nil {
		return -1
	}
	return d.LastOption.SourceStart
}

// AllOf builds an And filter.
func AllOf(subs ...Filter) Filter { return Filter{Kind: And, Subs: subs} }

// AnyOf builds an Or filter.
func AnyOf(subs ...Filter) Filter { return Filter{Kind: Or, Subs: subs} }
