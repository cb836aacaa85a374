// Package derivation implements the immutable search node of the decoder:
// a partial translation with its coverage, score, back-pointer and
// featurizer states.
package derivation

import (
	"math"
	"slices"
	"sync/atomic"

	"tessera/internal/coverage"
	"tessera/internal/feature"
	"tessera/internal/heuristic"
	"tessera/internal/rule"
	"tessera/internal/vocab"
)

// Default limits for pending discontinuous target segments.
const (
	DefaultMaxFloating   = 5
	DefaultMaxTargetSpan = 10
)

// Sentence bundles the read-only collaborators shared by every derivation
// of one source sentence.
type Sentence struct {
	Source      vocab.Sequence
	Featurizers *feature.Set
	Scorer      feature.Scorer
	Heuristic   heuristic.Heuristic
	// DTU enables floating target segments; with it off, options with
	// several target segments are applied as one contiguous phrase.
	DTU           bool
	MaxFloating   int
	MaxTargetSpan int

	created atomic.Int64
}

// Created counts derivations constructed for this sentence.
func (s *Sentence) Created() int64 { return s.created.Load() }

// Floating is a pending target segment of a discontinuous option that must
// be placed at a target position in [FirstPos, LastPos].
type Floating struct {
	Option   *rule.Option
	Segment  int
	FirstPos int
	LastPos  int
}

func (f Floating) equal(o Floating) bool {
	return f.Option == o.Option && f.Segment == o.Segment && f.FirstPos == o.FirstPos && f.LastPos == o.LastPos
}

// Derivation is a search node. All fields are set at construction and never
// modified afterwards.
type Derivation struct {
	ID int64
	// Prior is nil for the root.
	Prior *Derivation
	// Option is the option applied by this step; for target-only steps it
	// is the option owning the placed segment. Nil for the root.
	Option *rule.Option
	// LastOption is the most recent option that covered source words.
	LastOption *rule.Option
	TargetOnly bool
	// Segment is the index of the target segment this step appended.
	Segment    int
	TargetPos  int
	Coverage   coverage.Set
	Target     vocab.Sequence
	Score      float64
	H          float64
	Features   feature.Values
	States     []feature.State
	Floating   []Floating
	Distortion int
	Depth      int
}

// NewRoot returns the empty hypothesis.
func NewRoot(s *Sentence) *Derivation {
	cov := coverage.New(len(s.Source))
	d := &Derivation{
		ID:       s.created.Add(1),
		Coverage: cov,
	}
	if s.Featurizers != nil {
		d.States = s.Featurizers.InitialStates()
	}
	if s.Heuristic != nil {
		d.H = s.Heuristic.Estimate(cov)
	}
	return d
}

// Extend applies opt to parent. The caller checks coverage overlap and
// reordering constraints; Extend only builds and scores.
func Extend(s *Sentence, parent *Derivation, opt *rule.Option) *Derivation {
	cov := parent.Coverage.Union(opt.Coverage)
	lastEnd := -1
	if parent.LastOption != nil {
		lastEnd = parent.LastOption.SourceEnd
	}
	dist := abs(lastEnd + 1 - opt.SourceStart)

	split := s.DTU && len(opt.Segments()) > 1
	appended := opt.Rule.TargetWords()
	if split {
		appended = opt.Segments()[0]
	}
	target := append(slices.Clip(parent.Target), appended...)
	floating := slices.Clone(parent.Floating)
	if split {
		floating = append(floating, Floating{
			Option:   opt,
			Segment:  1,
			FirstPos: len(target) + 1,
			LastPos:  len(parent.Target) + s.maxTargetSpan(),
		})
	}

	d := &Derivation{
		Prior:      parent,
		Option:     opt,
		LastOption: opt,
		TargetPos:  len(parent.Target),
		Coverage:   cov,
		Target:     target,
		Floating:   floating,
		Distortion: dist,
		Depth:      parent.Depth + 1,
	}
	f := feature.NewFeaturizable(parent.States)
	f.Source = s.Source
	f.SourceStart = opt.SourceStart
	f.SourceEnd = opt.SourceEnd
	f.SourcePhrase = opt.Rule.Source
	f.TargetPhrase = appended
	f.TargetPosition = d.TargetPos
	f.Partial = target
	f.LinearDistortion = dist
	f.Done = cov.Full() && len(floating) == 0
	s.finish(d, parent, f, opt.Features())
	return d
}

// Merge places the next segment of parent.Floating[i] at the end of the
// partial translation without covering new source words.
func Merge(s *Sentence, parent *Derivation, i int) *Derivation {
	fl := parent.Floating[i]
	seg := fl.Option.Segments()[fl.Segment]
	target := append(slices.Clip(parent.Target), seg...)

	floating := make([]Floating, 0, len(parent.Floating))
	floating = append(floating, parent.Floating[:i]...)
	if fl.Segment+1 < len(fl.Option.Segments()) {
		floating = append(floating, Floating{
			Option:   fl.Option,
			Segment:  fl.Segment + 1,
			FirstPos: len(target) + 1,
			LastPos:  fl.LastPos,
		})
	}
	floating = append(floating, parent.Floating[i+1:]...)

	d := &Derivation{
		Prior:      parent,
		Option:     fl.Option,
		LastOption: parent.LastOption,
		TargetOnly: true,
		Segment:    fl.Segment,
		TargetPos:  len(parent.Target),
		Coverage:   parent.Coverage,
		Target:     target,
		Floating:   floating,
		Depth:      parent.Depth + 1,
	}
	f := feature.NewFeaturizable(parent.States)
	f.Source = s.Source
	f.SourceStart = -1
	f.SourceEnd = -1
	f.TargetPhrase = seg
	f.TargetPosition = d.TargetPos
	f.Partial = target
	f.TargetOnly = true
	f.Done = d.Coverage.Full() && len(floating) == 0
	s.finish(d, parent, f, nil)
	return d
}

func (s *Sentence) finish(d, parent *Derivation, f *feature.Featurizable, cached feature.Values) {
	d.ID = s.created.Add(1)
	vals := slices.Clone(cached)
	if s.Featurizers != nil {
		vals = append(vals, s.Featurizers.Featurize(f)...)
	}
	d.Features = vals
	d.States = f.States()
	d.Score = parent.Score
	if s.Scorer != nil {
		d.Score += s.Scorer.IncrementalScore(vals)
	}
	if s.Heuristic != nil {
		d.H = s.Heuristic.Estimate(d.Coverage)
	}
}

func (s *Sentence) maxTargetSpan() int {
	if s.MaxTargetSpan > 0 {
		return s.MaxTargetSpan
	}
	return DefaultMaxTargetSpan
}

func (s *Sentence) maxFloating() int {
	if s.MaxFloating > 0 {
		return s.MaxFloating
	}
	return DefaultMaxFloating
}

// FinalScoreEstimate is the ranking key inside a beam.
func (d *Derivation) FinalScoreEstimate() float64 { return d.Score + d.H }

// Degenerate reports a NaN or infinite score.
func (d *Derivation) Degenerate() bool {
	v := d.FinalScoreEstimate()
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Complete reports full coverage with nothing left floating.
func (d *Derivation) Complete() bool {
	return d.Coverage.Full() && len(d.Floating) == 0
}

// Expired reports a derivation whose floating segments can no longer be
// placed, or that holds too many of them.
func (s *Sentence) Expired(d *Derivation) bool {
	if len(d.Floating) > s.maxFloating() {
		return true
	}
	for _, f := range d.Floating {
		if len(d.Target) > f.LastPos {
			return true
		}
	}
	return false
}

// Mergeable lists the floating segments placeable at the current end of the
// translation.
func (d *Derivation) Mergeable() []int {
	var out []int
	pos := len(d.Target)
	for i, f := range d.Floating {
		if pos >= f.FirstPos && pos <= f.LastPos {
			out = append(out, i)
		}
	}
	return out
}

// Root walks back to the empty hypothesis.
func (d *Derivation) Root() *Derivation {
	for d.Prior != nil {
		d = d.Prior
	}
	return d
}

// Chain returns the derivation steps from the first applied one to d.
func (d *Derivation) Chain() []*Derivation {
	out := make([]*Derivation, 0, d.Depth)
	for c := d; c.Prior != nil; c = c.Prior {
		out = append(out, c)
	}
	slices.Reverse(out)
	return out
}

// AllFeatures sums feature values along the chain.
func (d *Derivation) AllFeatures() feature.Values {
	var lists []feature.Values
	for c := d; c != nil; c = c.Prior {
		lists = append(lists, c.Features)
	}
	return feature.Aggregate(lists...)
}

// FloatingEqual compares pending segment lists element-wise.
func FloatingEqual(a, b []Floating) bool {
	return slices.EqualFunc(a, b, Floating.equal)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
