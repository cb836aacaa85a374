// Package rule holds translation rules, the per-sentence options built from
// them and the phrase-table loader.
package rule

import (
	"fmt"
	"strings"

	"tessera/internal/coverage"
	"tessera/internal/feature"
	"tessera/internal/vocab"
)

// GapToken marks a discontinuity in gapped (DTU) rules.
const GapToken = "<gap>"

// UnknownFeature is set on pass-through options for unknown source words.
const UnknownFeature = "TM:unk"

// Rule is a sentence-independent phrase pair. Source holds only the literal
// source words; Gaps[i] reports a gap between Source[i] and Source[i+1].
// Target has one segment per contiguous target piece.
type Rule struct {
	Source   vocab.Sequence
	Gaps     []bool
	Target   []vocab.Sequence
	Features feature.Values
}

// Gapped reports whether the rule is discontinuous on either side.
func (r *Rule) Gapped() bool {
	if len(r.Target) > 1 {
		return true
	}
	for _, g := range r.Gaps {
		if g {
			return true
		}
	}
	return false
}

// TargetWords concatenates all target segments.
func (r *Rule) TargetWords() vocab.Sequence {
	var out vocab.Sequence
	for _, seg := range r.Target {
		out = append(out, seg...)
	}
	return out
}

// Option is a rule anchored to source positions of one sentence.
// SourceStart and SourceEnd are inclusive and bound the covered positions.
type Option struct {
	ID             int
	Rule           *Rule
	SourceStart    int
	SourceEnd      int
	Coverage       coverage.Set
	IsolationScore float64
}

// Span is the number of source words the option covers.
func (o *Option) Span() int { return o.Coverage.Cardinality() }

// Contiguous reports whether the covered source positions form one run.
func (o *Option) Contiguous() bool { return o.Coverage.Contiguous() }

// Segments returns the target segments.
func (o *Option) Segments() []vocab.Sequence { return o.Rule.Target }

// Features are the cached rule features.
func (o *Option) Features() feature.Values { return o.Rule.Features }

// Format renders an option as "id ||| source ||| target ||| isolation ||| coverage".
func (o *Option) Format(voc *vocab.Vocabulary) string {
	targets := make([]string, len(o.Rule.Target))
	for i, seg := range o.Rule.Target {
		targets[i] = voc.String(seg)
	}
	return fmt.Sprintf("%d ||| %s ||| %s ||| %.4f ||| %s",
		o.ID, voc.String(o.Rule.Source), strings.Join(targets, " "+GapToken+" "),
		o.IsolationScore, o.Coverage)
}
