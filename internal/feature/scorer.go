package feature

import (
	"maps"
	"slices"
)

// Scorer turns feature values into an incremental log-linear score.
type Scorer interface {
	IncrementalScore(vs Values) float64
}

// Linear is a weight vector; features without a weight contribute nothing.
type Linear struct {
	weights map[string]float64
}

func NewLinear(weights map[string]float64) *Linear {
	return &Linear{weights: maps.Clone(weights)}
}

func (l *Linear) IncrementalScore(vs Values) float64 {
	total := 0.0
	for _, v := range vs {
		total += l.weights[v.Name] * v.Value
	}
	return total
}

// Weight returns the weight of name, zero when unset.
func (l *Linear) Weight(name string) float64 { return l.weights[name] }

// Names lists weighted features, sorted.
func (l *Linear) Names() []string {
	return slices.Sorted(maps.Keys(l.weights))
}
