package grid

import (
	"testing"

	"tessera/internal/coverage"
	"tessera/internal/rule"
)

func opt(n, start, end int, positions ...int) *rule.Option {
	cov := coverage.Span(n, start, end)
	if len(positions) > 0 {
		cov = coverage.Of(n, positions...)
	}
	return &rule.Option{Rule: &rule.Rule{}, SourceStart: start, SourceEnd: end, Coverage: cov}
}

func TestGridGet(t *testing.T) {
	opts := []*rule.Option{opt(3, 0, 0), opt(3, 0, 0), opt(3, 1, 2), opt(3, 2, 5)}
	g := New(3, opts)
	tests := []struct {
		start, end int
		want       int
	}{
		{0, 0, 2},
		{1, 2, 1},
		{0, 2, 0},
		{2, 1, 0},
		{-1, 0, 0},
		{2, 5, 0},
	}
	for _, tt := range tests {
		if got := len(g.Get(tt.start, tt.end)); got != tt.want {
			t.Errorf("Get(%d, %d) = %d options, want %d", tt.start, tt.end, got, tt.want)
		}
	}
	if len(g.All()) != 3 {
		t.Fatalf("All = %d, want 3 (out-of-range option dropped)", len(g.All()))
	}
}

func TestPartition(t *testing.T) {
	opts := []*rule.Option{opt(4, 0, 1), opt(4, 0, 2, 0, 2), opt(4, 3, 3)}
	c, gp := Partition(opts)
	if len(c) != 2 || len(gp) != 1 || gp[0] != opts[1] {
		t.Fatalf("Partition = %d contiguous, %d gapped", len(c), len(gp))
	}
}
