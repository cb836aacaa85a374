// Package decoder implements multi-beam stack decoding: hypotheses are
// bucketed by the number of source words they cover and buckets are
// expanded strictly in increasing order.
package decoder

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"tessera/internal/beam"
	"tessera/internal/derivation"
	"tessera/internal/feature"
	"tessera/internal/grid"
	"tessera/internal/heuristic"
	"tessera/internal/observ"
	"tessera/internal/outspace"
	"tessera/internal/rule"
	"tessera/internal/trace"
	"tessera/internal/vocab"
)

// OptionSource supplies the translation options for a sentence.
type OptionSource interface {
	Options(source vocab.Sequence, set *feature.Set, scorer feature.Scorer) []*rule.Option
}

// Decoder is safe for concurrent use; every Decode call builds its own
// search state.
type Decoder struct {
	cfg         Config
	voc         *vocab.Vocabulary
	options     OptionSource
	featurizers *feature.Set
	scorer      feature.Scorer
	expander    *expander
}

// New validates cfg and returns a decoder. voc is used only for debug dumps
// and may be nil.
func New(cfg Config, voc *vocab.Vocabulary, options OptionSource, featurizers *feature.Set, scorer feature.Scorer) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if featurizers == nil {
		var err error
		if featurizers, err = feature.NewSet(); err != nil {
			return nil, err
		}
	}
	return &Decoder{
		cfg:         cfg,
		voc:         voc,
		options:     options,
		featurizers: featurizers,
		scorer:      scorer,
		expander:    newExpander(cfg.Threads),
	}, nil
}

// Config returns the validated configuration.
func (d *Decoder) Config() Config { return d.cfg }

// Input is one sentence to decode.
type Input struct {
	ID     int
	Source vocab.Sequence
	// Space constrains the output; nil allows everything.
	Space outspace.Space
	// Options replaces the option source when non-nil.
	Options []*rule.Option
}

type search struct {
	cfg   *Config
	sent  *derivation.Sentence
	grid  *grid.Grid
	space outspace.Space
	beams []*beam.Beam
	n     int

	generated  atomic.Int64
	degenerate atomic.Int64
	rejected   atomic.Int64
	expired    atomic.Int64
}

// Decode searches for the best translation of in.Source. Decoder failure
// is reported through Result.Failed, not as an error; errors mean the
// search itself broke and its partial results were discarded.
func (d *Decoder) Decode(ctx context.Context, in Input) (*Result, error) {
	tracer := trace.FromContext(ctx)
	ctx, span := trace.Start(ctx, trace.ScopeSentence, "decode")
	span.WithExtra("id", strconv.Itoa(in.ID)).WithExtra("words", strconv.Itoa(len(in.Source)))
	timer := observ.NewTimer()

	n := len(in.Source)
	featurizers := d.featurizers.ForSentence(in.Source)

	phase := timer.Begin("options")
	opts := in.Options
	if opts == nil && d.options != nil {
		opts = d.options.Options(in.Source, featurizers, d.scorer)
	}
	if in.Space != nil {
		opts = in.Space.FilterOptions(opts)
	}
	timer.End(phase, fmt.Sprintf("%d options", len(opts)))

	phase = timer.Begin("future-cost")
	g := grid.New(n, opts)
	fc := heuristic.NewFutureCost(g, heuristic.Options{Gapped: d.cfg.GapsInFutureCost})
	timer.End(phase, "")

	s := &search{
		cfg: &d.cfg,
		sent: &derivation.Sentence{
			Source:        in.Source,
			Featurizers:   featurizers,
			Scorer:        d.scorer,
			Heuristic:     fc,
			DTU:           d.cfg.DTU,
			MaxFloating:   d.cfg.MaxFloating,
			MaxTargetSpan: d.cfg.MaxTargetSpan,
		},
		grid:  g,
		space: in.Space,
		n:     n,
	}
	buckets := n + 1
	if d.cfg.DTU {
		buckets = n + 2
	}
	s.beams = make([]*beam.Beam, buckets)
	for k := range s.beams {
		s.beams[k] = beam.New(d.cfg.BeamSize, min(k, n), d.cfg.Filter)
	}
	// An empty sentence's root is already complete; in DTU mode it belongs
	// to the done bucket.
	root := derivation.NewRoot(s.sent)
	if _, err := s.beams[s.bucket(root)].Put(root); err != nil {
		span.End("error")
		return nil, err
	}

	phase = timer.Begin("search")
	for k := 0; k <= n; k++ {
		if err := d.expandBucket(ctx, tracer, span.ID(), s, k); err != nil {
			timer.End(phase, "aborted")
			span.End("error")
			return nil, fmt.Errorf("sentence %d: %w", in.ID, err)
		}
	}
	timer.End(phase, fmt.Sprintf("%d hypotheses", s.generated.Load()))

	phase = timer.Begin("select")
	res := s.result(in, opts, d.cfg.BeamSize)
	timer.End(phase, "")
	res.Timing = timer.Report()

	if best := res.Best(); best != nil && d.voc != nil && tracer.Level() >= trace.LevelDebug {
		trace.Point(tracer, trace.ScopeHypothesis, "best", span.ID(), best.Dump(d.voc))
	}
	status := "ok"
	if res.Failed() {
		status = "failed"
	}
	span.WithExtra("generated", strconv.FormatInt(res.Stats.Generated, 10)).End(status)
	return res, nil
}

func (d *Decoder) expandBucket(ctx context.Context, tracer trace.Tracer, parent uint64, s *search, k int) error {
	b := s.beams[k]
	if s.cfg.DTU {
		if err := s.mergeClosure(k); err != nil {
			return err
		}
	}
	if k == s.n {
		return nil
	}
	snapshot := b.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}
	span := trace.Begin(tracer, trace.ScopeBeam, "beam:"+strconv.Itoa(k), parent)
	err := d.expander.run(ctx, snapshot, s.expand)
	span.WithExtra("size", strconv.Itoa(len(snapshot))).End("")
	return err
}

// bucket is the beam index for h: its coverage size, except that complete
// DTU hypotheses get the extra final bucket.
func (s *search) bucket(h *derivation.Derivation) int {
	if s.cfg.DTU && h.Complete() {
		return s.n + 1
	}
	return h.Coverage.Cardinality()
}

// offer filters a freshly built hypothesis and inserts the survivors.
func (s *search) offer(h *derivation.Derivation) (beam.Outcome, error) {
	s.generated.Add(1)
	if h.Degenerate() {
		s.degenerate.Add(1)
		return beam.Discarded, nil
	}
	if s.cfg.DTU && s.sent.Expired(h) {
		s.expired.Add(1)
		return beam.Discarded, nil
	}
	if s.space != nil {
		if !s.space.AllowablePartial(h) || (h.Complete() && !s.space.AllowableFinal(h)) {
			s.rejected.Add(1)
			return beam.Discarded, nil
		}
	}
	return s.beams[s.bucket(h)].Put(h)
}

// expand applies every admissible option to h.
func (s *search) expand(h *derivation.Derivation) error {
	cov := h.Coverage
	firstGap := cov.NextClear(0)
	for start := firstGap; start < s.n; start++ {
		if cov.Get(start) {
			continue
		}
		if s.cfg.DistortionLimit >= 0 && h.Prior != nil && start > firstGap+s.cfg.DistortionLimit {
			break
		}
		if s.cfg.ITG && !itgAllows(h, start) {
			continue
		}
		endMax := s.n - 1
		if !s.cfg.DTU {
			if next := cov.NextSet(start); next >= 0 {
				endMax = next - 1
			}
		}
		for end := start; end <= endMax; end++ {
			for _, opt := range s.grid.Get(start, end) {
				if opt.Coverage.Intersects(cov) {
					continue
				}
				if s.space != nil && !s.space.AllowableContinuation(h, opt) {
					continue
				}
				if _, err := s.offer(derivation.Extend(s.sent, h, opt)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// itgAllows rejects a start position whose span could only be reached by a
// reordering no binary bracketing derives: a covered block strictly between
// the previous span and start that is not attached to its neighbour.
func itgAllows(h *derivation.Derivation, start int) bool {
	priorStart, priorEnd := 0, 0
	if h.LastOption != nil {
		priorStart = h.LastOption.SourceStart
		priorEnd = h.LastOption.SourceEnd + 1
	}
	cov := h.Coverage
	if start > priorStart {
		for pos := priorEnd + 1; pos < start; pos++ {
			if cov.Get(pos) && !cov.Get(pos-1) {
				return false
			}
		}
		return true
	}
	for pos := start; pos < priorStart; pos++ {
		if cov.Get(pos) && !cov.Get(pos+1) {
			return false
		}
	}
	return true
}

// mergeClosure places pending floating segments of bucket k's members until
// no new hypothesis lands in bucket k.
func (s *search) mergeClosure(k int) error {
	work := s.beams[k].Snapshot()
	for len(work) > 0 {
		var next []*derivation.Derivation
		for _, h := range work {
			for _, i := range h.Mergeable() {
				child := derivation.Merge(s.sent, h, i)
				out, err := s.offer(child)
				if err != nil {
					return err
				}
				if (out == beam.Inserted || out == beam.Replaced) && s.bucket(child) == k {
					next = append(next, child)
				}
			}
		}
		work = next
	}
	return nil
}
