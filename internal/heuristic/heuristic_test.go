package heuristic

import (
	"testing"

	"tessera/internal/coverage"
	"tessera/internal/grid"
	"tessera/internal/rule"
)

func opt(n, start, end int, score float64) *rule.Option {
	return &rule.Option{
		Rule: &rule.Rule{}, SourceStart: start, SourceEnd: end,
		Coverage: coverage.Span(n, start, end), IsolationScore: score,
	}
}

func TestFutureCostSegmentation(t *testing.T) {
	n := 3
	g := grid.New(n, []*rule.Option{
		opt(n, 0, 0, -1),
		opt(n, 1, 1, -2),
		opt(n, 2, 2, -3),
		opt(n, 0, 1, -2.5),
	})
	fc := NewFutureCost(g, Options{})
	tests := []struct {
		s, e int
		want float64
	}{
		{0, 0, -1},
		{0, 1, -2.5},
		{1, 2, -5},
		{0, 2, -5.5},
	}
	for _, tt := range tests {
		if got := fc.Span(tt.s, tt.e); got != tt.want {
			t.Errorf("Span(%d,%d) = %v, want %v", tt.s, tt.e, got, tt.want)
		}
	}
	if got := fc.Estimate(coverage.Of(n, 1)); got != -4 {
		t.Fatalf("Estimate({1}) = %v, want -4", got)
	}
	if got := fc.Estimate(coverage.Span(n, 0, 2)); got != 0 {
		t.Fatalf("Estimate(full) = %v", got)
	}
}

func TestFutureCostUncoverable(t *testing.T) {
	n := 2
	fc := NewFutureCost(grid.New(n, []*rule.Option{opt(n, 0, 0, -1)}), Options{})
	if got := fc.Estimate(coverage.New(n)); got != -1+UncoverablePenalty {
		t.Fatalf("Estimate = %v", got)
	}
}

func TestFutureCostGapped(t *testing.T) {
	n := 3
	gapped := &rule.Option{Rule: &rule.Rule{}, SourceStart: 0, SourceEnd: 2, Coverage: coverage.Of(n, 0, 2), IsolationScore: -0.5}
	g := grid.New(n, []*rule.Option{opt(n, 0, 0, -1), opt(n, 1, 1, -1), opt(n, 2, 2, -1), gapped})
	if got := NewFutureCost(g, Options{}).Span(0, 2); got != -3 {
		t.Fatalf("without gaps Span = %v", got)
	}
	if got := NewFutureCost(g, Options{Gapped: true}).Span(0, 2); got != -0.5 {
		t.Fatalf("with gaps Span = %v", got)
	}
}
