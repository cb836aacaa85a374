package derivation

import (
	"fmt"
	"io"
	"strings"

	"tessera/internal/vocab"
)

// Alignment links one applied source span to the target words it produced.
type Alignment struct {
	SourceStart int
	SourceEnd   int
	TargetStart int
	TargetEnd   int
	Source      vocab.Sequence
	Target      vocab.Sequence
}

// Alignments lists one entry per step in application order. Target-only
// steps report the source span of the option that owns the segment.
func (d *Derivation) Alignments() []Alignment {
	chain := d.Chain()
	out := make([]Alignment, 0, len(chain))
	for _, c := range chain {
		n := len(c.Target) - c.TargetPos
		out = append(out, Alignment{
			SourceStart: c.Option.SourceStart,
			SourceEnd:   c.Option.SourceEnd,
			TargetStart: c.TargetPos,
			TargetEnd:   c.TargetPos + n - 1,
			Source:      c.Option.Rule.Source,
			Target:      c.Target[c.TargetPos:],
		})
	}
	return out
}

// WriteAlignments writes the plain-text alignment block for d: target line,
// source line, one "s:e => s:e # src => tgt" line per step, blank line.
func WriteAlignments(w io.Writer, voc *vocab.Vocabulary, source vocab.Sequence, d *Derivation) error {
	var sb strings.Builder
	sb.WriteString(voc.String(d.Target))
	sb.WriteByte('\n')
	sb.WriteString(voc.String(source))
	sb.WriteByte('\n')
	for _, a := range d.Alignments() {
		fmt.Fprintf(&sb, "%d:%d => %d:%d # %s => %s\n",
			a.SourceStart, a.SourceEnd, a.TargetStart, a.TargetEnd,
			voc.String(a.Source), voc.String(a.Target))
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// Dump renders the chain step by step for debugging.
func (d *Derivation) Dump(voc *vocab.Vocabulary) string {
	var sb strings.Builder
	for _, c := range d.Chain() {
		kind := "apply"
		if c.TargetOnly {
			kind = "merge"
		}
		fmt.Fprintf(&sb, "#%d %s opt=%d cov=%s +%q score=%.4f h=%.4f floating=%d [%s]\n",
			c.Depth, kind, c.Option.ID, c.Coverage, voc.String(c.Target[c.TargetPos:]),
			c.Score, c.H, len(c.Floating), c.Features)
	}
	return sb.String()
}
