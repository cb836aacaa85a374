package recomb

import (
	"errors"
	"fmt"

	"tessera/internal/derivation"
)

// ErrHypothesisMissing reports removal of a hypothesis the hash never held.
var ErrHypothesisMissing = errors.New("hypothesis missing from recombination hash")

// Status is the outcome of Query.
type Status uint8

const (
	// Novel: no equivalent hypothesis is held.
	Novel Status = iota
	// NovelInserted: as Novel, and the hypothesis is now held.
	NovelInserted
	// Better: an equivalent, worse hypothesis is held.
	Better
	// Updated: as Better, and the held hypothesis was replaced.
	Updated
	// Combinable: an equivalent hypothesis at least as good is held.
	Combinable
	// Self: the very same hypothesis is held.
	Self
)

var statusNames = [...]string{"novel", "novel-inserted", "better", "updated", "combinable", "self"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

// Stats counts comparisons for filter tuning.
type Stats struct {
	Queries    int64 `msgpack:"queries" json:"queries"`
	Compares   int64 `msgpack:"compares" json:"compares"`
	Expensive  int64 `msgpack:"expensive" json:"expensive"`
	Combinable int64 `msgpack:"combinable" json:"combinable"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Queries += o.Queries
	s.Compares += o.Compares
	s.Expensive += o.Expensive
	s.Combinable += o.Combinable
}

// Hash keeps one representative per equivalence class. Hash collisions
// between non-combinable hypotheses are chained, never merged.
// Not safe for concurrent use; the owning beam serializes access.
type Hash struct {
	filter  Filter
	buckets map[uint64][]*derivation.Derivation
	size    int
	stats   Stats
}

func NewHash(f Filter) *Hash {
	return &Hash{filter: f, buckets: make(map[uint64][]*derivation.Derivation)}
}

// Filter returns the filter the hash was built with.
func (h *Hash) Filter() Filter { return h.filter }

// Len counts held hypotheses.
func (h *Hash) Len() int { return h.size }

// Stats returns the comparison counters.
func (h *Hash) Stats() Stats { return h.stats }

// Query classifies d against the held hypotheses and, with update, stores
// it when it is novel or better. The returned derivation is the other party
// of a Better/Updated/Combinable outcome: the displaced hypothesis for
// Better and Updated, the retained one for Combinable.
func (h *Hash) Query(d *derivation.Derivation, update bool) (Status, *derivation.Derivation) {
	h.stats.Queries++
	key := h.filter.Hash(d)
	chain := h.buckets[key]
	if h.filter.Kind == None {
		for _, held := range chain {
			if held == d {
				return Self, held
			}
		}
		return h.novel(key, d, update)
	}
	if len(chain) > 0 {
		h.stats.Compares++
	}
	for i, held := range chain {
		if held == d {
			return Self, held
		}
		h.stats.Expensive++
		if !h.filter.Combinable(d, held) {
			continue
		}
		h.stats.Combinable++
		if !derivation.Better(d, held) {
			return Combinable, held
		}
		if !update {
			return Better, held
		}
		chain[i] = d
		return Updated, held
	}
	return h.novel(key, d, update)
}

func (h *Hash) novel(key uint64, d *derivation.Derivation, update bool) (Status, *derivation.Derivation) {
	if !update {
		return Novel, nil
	}
	h.buckets[key] = append(h.buckets[key], d)
	h.size++
	return NovelInserted, nil
}

// Put stores d unconditionally, replacing an equivalent held hypothesis.
func (h *Hash) Put(d *derivation.Derivation) {
	key := h.filter.Hash(d)
	chain := h.buckets[key]
	if h.filter.Kind != None {
		for i, held := range chain {
			if held == d || h.filter.Combinable(d, held) {
				chain[i] = d
				return
			}
		}
	}
	h.buckets[key] = append(chain, d)
	h.size++
}

// Remove drops d. A missing hypothesis is an error unless missingOkay.
func (h *Hash) Remove(d *derivation.Derivation, missingOkay bool) error {
	key := h.filter.Hash(d)
	chain := h.buckets[key]
	for i, held := range chain {
		if held != d {
			continue
		}
		chain = append(chain[:i], chain[i+1:]...)
		if len(chain) == 0 {
			delete(h.buckets, key)
		} else {
			h.buckets[key] = chain
		}
		h.size--
		return nil
	}
	if missingOkay {
		return nil
	}
	return fmt.Errorf("%w: id %d", ErrHypothesisMissing, d.ID)
}

// Contains reports whether d itself is held.
func (h *Hash) Contains(d *derivation.Derivation) bool {
	for _, held := range h.buckets[h.filter.Hash(d)] {
		if held == d {
			return true
		}
	}
	return false
}
