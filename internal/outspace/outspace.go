// Package outspace constrains which target strings the decoder may produce,
// for forced decoding and prefix-constrained decoding.
package outspace

import (
	"tessera/internal/derivation"
	"tessera/internal/rule"
	"tessera/internal/vocab"
)

// Space is consulted by the decode loop; implementations are stateless
// from the decoder's point of view and safe for concurrent use.
type Space interface {
	// FilterOptions drops options that can never appear in an allowed output.
	FilterOptions(opts []*rule.Option) []*rule.Option
	// AllowableContinuation checks opt as the next step after partial.
	AllowableContinuation(partial *derivation.Derivation, opt *rule.Option) bool
	AllowablePartial(partial *derivation.Derivation) bool
	AllowableFinal(partial *derivation.Derivation) bool
}

// Enumerated allows exactly the listed target strings.
type Enumerated struct {
	refs []vocab.Sequence
}

func NewEnumerated(refs ...vocab.Sequence) *Enumerated {
	return &Enumerated{refs: refs}
}

func (e *Enumerated) FilterOptions(opts []*rule.Option) []*rule.Option {
	out := make([]*rule.Option, 0, len(opts))
	for _, o := range opts {
		if e.fits(o) {
			out = append(out, o)
		}
	}
	return out
}

// fits reports whether every target segment of o occurs in some reference.
func (e *Enumerated) fits(o *rule.Option) bool {
	for _, ref := range e.refs {
		ok := true
		for _, seg := range o.Segments() {
			if !ref.Contains(seg) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (e *Enumerated) AllowableContinuation(partial *derivation.Derivation, opt *rule.Option) bool {
	next := append(append(vocab.Sequence(nil), partial.Target...), opt.Segments()[0]...)
	for _, ref := range e.refs {
		if ref.HasPrefix(next) {
			return true
		}
	}
	return false
}

func (e *Enumerated) AllowablePartial(partial *derivation.Derivation) bool {
	for _, ref := range e.refs {
		if ref.HasPrefix(partial.Target) {
			return true
		}
	}
	return false
}

func (e *Enumerated) AllowableFinal(partial *derivation.Derivation) bool {
	for _, ref := range e.refs {
		if ref.Equal(partial.Target) {
			return true
		}
	}
	return false
}

// Prefix requires the output to begin with a fixed prefix; anything may
// follow it.
type Prefix struct {
	prefix vocab.Sequence
}

func NewPrefix(prefix vocab.Sequence) *Prefix { return &Prefix{prefix: prefix} }

func (p *Prefix) FilterOptions(opts []*rule.Option) []*rule.Option { return opts }

// consistent reports whether seq and the prefix agree where they overlap.
func (p *Prefix) consistent(seq vocab.Sequence) bool {
	n := min(len(seq), len(p.prefix))
	return seq[:n].Equal(p.prefix[:n])
}

func (p *Prefix) AllowableContinuation(partial *derivation.Derivation, opt *rule.Option) bool {
	if len(partial.Target) >= len(p.prefix) {
		return true
	}
	return p.consistent(append(append(vocab.Sequence(nil), partial.Target...), opt.Segments()[0]...))
}

func (p *Prefix) AllowablePartial(partial *derivation.Derivation) bool {
	return p.consistent(partial.Target)
}

func (p *Prefix) AllowableFinal(partial *derivation.Derivation) bool {
	return partial.Target.HasPrefix(p.prefix)
}
