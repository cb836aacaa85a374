package decoder

import (
	"io"

	"tessera/internal/beam"
	"tessera/internal/derivation"
	"tessera/internal/feature"
	"tessera/internal/observ"
	"tessera/internal/recomb"
	"tessera/internal/rule"
	"tessera/internal/vocab"
)

// Stats summarizes one sentence's search.
type Stats struct {
	Options    int          `msgpack:"options" json:"options"`
	Generated  int64        `msgpack:"generated" json:"generated"`
	Degenerate int64        `msgpack:"degenerate" json:"degenerate"`
	Rejected   int64        `msgpack:"rejected" json:"rejected"`
	Expired    int64        `msgpack:"expired" json:"expired"`
	Beams      beam.Stats   `msgpack:"beams" json:"beams"`
	Recomb     recomb.Stats `msgpack:"recomb" json:"recomb"`
	// BucketSizes holds the final size of every beam.
	BucketSizes []int `msgpack:"buckets" json:"buckets"`
}

// Add accumulates o into s, except BucketSizes.
func (s *Stats) Add(o Stats) {
	s.Options += o.Options
	s.Generated += o.Generated
	s.Degenerate += o.Degenerate
	s.Rejected += o.Rejected
	s.Expired += o.Expired
	s.Beams.Add(o.Beams)
	s.Recomb.Add(o.Recomb)
}

// Result is the outcome of one Decode call.
type Result struct {
	ID      int
	Source  vocab.Sequence
	Options []*rule.Option
	Stats   Stats
	Timing  observ.Report

	final   []*derivation.Derivation
	partial *derivation.Derivation
}

func (s *search) result(in Input, opts []*rule.Option, capacity int) *Result {
	res := &Result{ID: in.ID, Source: in.Source, Options: opts}
	res.Stats = Stats{
		Options:     len(opts),
		Generated:   s.generated.Load(),
		Degenerate:  s.degenerate.Load(),
		Rejected:    s.rejected.Load(),
		Expired:     s.expired.Load(),
		BucketSizes: make([]int, len(s.beams)),
	}
	for i, b := range s.beams {
		bs, rs := b.Stats()
		res.Stats.Beams.Add(bs)
		res.Stats.Recomb.Add(rs)
		res.Stats.BucketSizes[i] = b.Len()
	}

	for _, h := range s.beams[len(s.beams)-1].Snapshot() {
		if h.Complete() && (s.space == nil || s.space.AllowableFinal(h)) {
			res.final = append(res.final, h)
		}
	}
	if len(res.final) > capacity {
		res.final = res.final[:capacity]
	}
	if len(res.final) > 0 {
		res.partial = res.final[0]
		return res
	}
	for i := len(s.beams) - 1; i >= 0; i-- {
		best := s.beams[i].Best()
		if best != nil && (s.space == nil || s.space.AllowableFinal(best)) {
			res.partial = best
			break
		}
	}
	return res
}

// Failed reports that no admissible complete hypothesis survived.
func (r *Result) Failed() bool { return len(r.final) == 0 }

// Best returns the 1-best complete hypothesis, or nil on failure.
func (r *Result) Best() *derivation.Derivation {
	if r.Failed() {
		return nil
	}
	return r.final[0]
}

// Partial returns the best hypothesis of the highest admissible non-empty
// beam. It equals Best on success and may be an incomplete hypothesis (or
// nil) on failure.
func (r *Result) Partial() *derivation.Derivation { return r.partial }

// Hypothesis is one n-best entry.
type Hypothesis struct {
	Rank       int
	Target     vocab.Sequence
	Features   feature.Values
	Score      float64
	Derivation *derivation.Derivation
}

// NBest returns up to n complete hypotheses, best first.
func (r *Result) NBest(n int) []Hypothesis {
	n = min(n, len(r.final))
	out := make([]Hypothesis, n)
	for i, h := range r.final[:n] {
		out[i] = Hypothesis{
			Rank:       i,
			Target:     h.Target,
			Features:   h.AllFeatures(),
			Score:      h.Score,
			Derivation: h,
		}
	}
	return out
}

// WriteAlignments appends the alignment block of the best hypothesis. A
// failed sentence gets an empty target line and no alignment lines.
func (r *Result) WriteAlignments(w io.Writer, voc *vocab.Vocabulary) error {
	if best := r.Best(); best != nil {
		return derivation.WriteAlignments(w, voc, r.Source, best)
	}
	_, err := io.WriteString(w, "\n"+voc.String(r.Source)+"\n\n")
	return err
}
