// Package lm provides a back-off n-gram language model and the opaque
// scoring state the decoder threads through hypotheses.
package lm

import (
	"encoding/binary"
	"math"

	"tessera/internal/vocab"
)

// UnknownLogProb is charged for words the model has never seen and for
// which it carries no <unk> unigram.
const UnknownLogProb = -100.0

type entry struct {
	logProb float64
	backoff float64
}

// Model is a back-off n-gram model with natural-log probabilities.
// It is read-only once built and safe for concurrent use.
type Model struct {
	order int
	grams map[string]entry
	unk   float64
}

// NewModel returns an empty model of the given order (at least 1).
func NewModel(order int) *Model {
	return &Model{order: max(order, 1), grams: make(map[string]entry), unk: UnknownLogProb}
}

// Order is the maximum n-gram length.
func (m *Model) Order() int { return m.order }

// Add registers an n-gram. Probabilities are natural logs.
func (m *Model) Add(words []vocab.WordID, logProb, backoff float64) {
	if len(words) == 0 || len(words) > m.order {
		return
	}
	m.grams[key(words)] = entry{logProb: logProb, backoff: backoff}
	if len(words) == 1 && words[0] == vocab.UnknownID {
		m.unk = logProb
	}
}

// Len counts stored n-grams.
func (m *Model) Len() int { return len(m.grams) }

func key(words []vocab.WordID) string {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(w))
	}
	return string(buf)
}

func (m *Model) lookup(words []vocab.WordID) (entry, bool) {
	e, ok := m.grams[key(words)]
	return e, ok
}

// WordLogProb returns log p(w | ctx) with Katz-style back-off.
func (m *Model) WordLogProb(ctx []vocab.WordID, w vocab.WordID) float64 {
	if n := m.order - 1; len(ctx) > n {
		ctx = ctx[len(ctx)-n:]
	}
	acc := 0.0
	gram := make([]vocab.WordID, 0, len(ctx)+1)
	for k := len(ctx); ; k-- {
		h := ctx[len(ctx)-k:]
		gram = append(append(gram[:0], h...), w)
		if e, ok := m.lookup(gram); ok {
			return acc + e.logProb
		}
		if k == 0 {
			return acc + m.unk
		}
		if e, ok := m.lookup(h); ok {
			acc += e.backoff
		}
	}
}

// minimalContext trims ctx to the longest suffix the model can still extend.
func (m *Model) minimalContext(ctx []vocab.WordID) []vocab.WordID {
	if n := m.order - 1; len(ctx) > n {
		ctx = ctx[len(ctx)-n:]
	}
	for len(ctx) > 0 {
		if _, ok := m.lookup(ctx); ok {
			break
		}
		ctx = ctx[1:]
	}
	return append([]vocab.WordID(nil), ctx...)
}

// Score scores seq[start:] given the context carried by prior and returns the
// resulting state. A nil prior means no left context.
func (m *Model) Score(seq vocab.Sequence, start int, prior *State) *State {
	var ctx []vocab.WordID
	if prior != nil {
		ctx = append(ctx, prior.context...)
	}
	total := 0.0
	for i := max(start, 0); i < len(seq); i++ {
		total += m.WordLogProb(ctx, seq[i])
		ctx = append(ctx, seq[i])
		if n := m.order - 1; len(ctx) > n {
			ctx = ctx[len(ctx)-n:]
		}
	}
	return &State{score: total, context: m.minimalContext(ctx)}
}

// BeginState is the state after the sentence-start marker.
func (m *Model) BeginState() *State {
	return &State{context: m.minimalContext([]vocab.WordID{vocab.StartID})}
}

// State is the opaque LM context carried by a hypothesis. Two states are
// equal when they predict every future word identically.
type State struct {
	score   float64
	context []vocab.WordID
}

// Score is the log probability accumulated by the call that produced s.
func (s *State) Score() float64 { return s.score }

// Len is the number of context words retained.
func (s *State) Len() int { return len(s.context) }

// Equal compares retained contexts; the score is not part of identity.
func (s *State) Equal(o any) bool {
	other, ok := o.(*State)
	if !ok {
		return false
	}
	if s == nil || other == nil {
		return s == other
	}
	if len(s.context) != len(other.context) {
		return false
	}
	for i := range s.context {
		if s.context[i] != other.context[i] {
			return false
		}
	}
	return true
}

// Hash is consistent with Equal.
func (s *State) Hash() uint64 {
	if s == nil {
		return 0
	}
	h := uint64(1469598103934665603)
	for _, w := range s.context {
		h ^= uint64(w)
		h *= 1099511628211
	}
	return h ^ uint64(len(s.context))
}

// log10ToLn converts ARPA log10 values to natural logs.
func log10ToLn(v float64) float64 { return v * math.Ln10 }
