package derivation

import "cmp"

// Compare orders derivations best first: higher FinalScoreEstimate, then
// higher Score, then the lexicographically smaller chain of applied steps.
// Creation IDs never take part.
func Compare(a, b *Derivation) int {
	if a == b {
		return 0
	}
	if c := cmp.Compare(b.FinalScoreEstimate(), a.FinalScoreEstimate()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return compareChains(a, b)
}

// Better reports whether a ranks strictly ahead of b.
func Better(a, b *Derivation) bool { return Compare(a, b) < 0 }

type step struct {
	option  int
	segment int
	merge   bool
}

func (d *Derivation) step() step {
	if d.Option == nil {
		return step{option: -1}
	}
	return step{option: d.Option.ID, segment: d.Segment, merge: d.TargetOnly}
}

func compareSteps(a, b step) int {
	if c := cmp.Compare(a.option, b.option); c != 0 {
		return c
	}
	if a.merge != b.merge {
		if !a.merge {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.segment, b.segment)
}

func compareChains(a, b *Derivation) int {
	ca, cb := a.Chain(), b.Chain()
	for i := 0; i < len(ca) && i < len(cb); i++ {
		if c := compareSteps(ca[i].step(), cb[i].step()); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(ca), len(cb))
}
