// Package coverage implements the immutable source-coverage bit-set carried
// by every search hypothesis.
package coverage

import (
	"math/bits"
	"strconv"
	"strings"
)

// Set is an immutable bit-set over source positions [0, Len()).
// Mutating operations return a new Set; the receiver is never modified,
// so a Set can be shared freely between hypotheses and goroutines.
type Set struct {
	n     int
	words []uint64
}

func wordsFor(n int) int { return (n + 63) / 64 }

// New returns an empty set over n positions.
func New(n int) Set {
	if n < 0 {
		n = 0
	}
	return Set{n: n, words: make([]uint64, wordsFor(n))}
}

// Span returns a set over n positions with [start, end] (inclusive) set.
func Span(n, start, end int) Set {
	s := New(n)
	for i := start; i <= end && i < n; i++ {
		if i >= 0 {
			s.words[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return s
}

// Of returns a set over n positions with the given positions set.
func Of(n int, positions ...int) Set {
	s := New(n)
	for _, p := range positions {
		if p >= 0 && p < n {
			s.words[p/64] |= 1 << (uint(p) % 64)
		}
	}
	return s
}

// Len is the number of positions the set ranges over.
func (s Set) Len() int { return s.n }

// Get reports whether position i is set.
func (s Set) Get(i int) bool {
	if i < 0 || i >= s.n {
		return false
	}
	return s.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Union returns s ∪ o. Both sets must range over the same length.
func (s Set) Union(o Set) Set {
	out := Set{n: max(s.n, o.n), words: make([]uint64, max(len(s.words), len(o.words)))}
	copy(out.words, s.words)
	for i, w := range o.words {
		out.words[i] |= w
	}
	return out
}

// Intersects reports whether s and o share a set position.
func (s Set) Intersects(o Set) bool {
	for i := 0; i < len(s.words) && i < len(o.words); i++ {
		if s.words[i]&o.words[i] != 0 {
			return true
		}
	}
	return false
}

// Cardinality counts set positions.
func (s Set) Cardinality() int {
	c := 0
	for _, w := range s.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Full reports whether every position is set.
func (s Set) Full() bool { return s.Cardinality() == s.n }

// NextClear returns the first clear position >= from, or Len() if none.
func (s Set) NextClear(from int) int {
	for i := max(from, 0); i < s.n; i++ {
		if !s.Get(i) {
			return i
		}
	}
	return s.n
}

// NextSet returns the first set position >= from, or -1 if none.
func (s Set) NextSet(from int) int {
	if from < 0 {
		from = 0
	}
	for wi := from / 64; wi < len(s.words); wi++ {
		w := s.words[wi]
		if wi == from/64 {
			w &= ^uint64(0) << (uint(from) % 64)
		}
		if w != 0 {
			i := wi*64 + bits.TrailingZeros64(w)
			if i < s.n {
				return i
			}
			return -1
		}
	}
	return -1
}

// First returns the lowest set position, or -1 for an empty set.
func (s Set) First() int { return s.NextSet(0) }

// Last returns the highest set position, or -1 for an empty set.
func (s Set) Last() int {
	for wi := len(s.words) - 1; wi >= 0; wi-- {
		if w := s.words[wi]; w != 0 {
			return wi*64 + 63 - bits.LeadingZeros64(w)
		}
	}
	return -1
}

// Contiguous reports whether the set positions form a single run.
// The empty set is contiguous.
func (s Set) Contiguous() bool {
	first := s.First()
	if first < 0 {
		return true
	}
	return s.Last()-first+1 == s.Cardinality()
}

// Equal compares set positions; sets over different lengths are unequal.
func (s Set) Equal(o Set) bool {
	if s.n != o.n {
		return false
	}
	for i := range s.words {
		if s.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Hash mixes the set positions into a 64-bit value. Equal sets hash equal.
func (s Set) Hash() uint64 {
	h := uint64(14695981039346656037)
	for _, w := range s.words {
		h ^= w
		h *= 1099511628211
	}
	h ^= uint64(s.n)
	return h * 1099511628211
}

// Positions lists set positions in increasing order.
func (s Set) Positions() []int {
	out := make([]int, 0, s.Cardinality())
	for i := s.NextSet(0); i >= 0; i = s.NextSet(i + 1) {
		out = append(out, i)
	}
	return out
}

func (s Set) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range s.Positions() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(p))
	}
	sb.WriteByte('}')
	return sb.String()
}
