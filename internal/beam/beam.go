// Package beam implements the bounded, ordered hypothesis stack for one
// coverage cardinality.
package beam

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"tessera/internal/derivation"
	"tessera/internal/recomb"
)

// ErrCardinality reports a hypothesis inserted into the wrong beam.
var ErrCardinality = errors.New("hypothesis cardinality does not match beam")

// AnyCardinality disables the cardinality check.
const AnyCardinality = -1

// Outcome says what Put did with a hypothesis.
type Outcome uint8

const (
	Inserted Outcome = iota
	Replaced
	Recombined
	Discarded
	Duplicate
)

var outcomeNames = [...]string{"inserted", "replaced", "recombined", "discarded", "duplicate"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", o)
}

// Stats counts what happened to hypotheses offered to a beam.
type Stats struct {
	Inserted   int64 `msgpack:"inserted" json:"inserted"`
	Recombined int64 `msgpack:"recombined" json:"recombined"`
	Discarded  int64 `msgpack:"discarded" json:"discarded"`
	Pruned     int64 `msgpack:"pruned" json:"pruned"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Inserted += o.Inserted
	s.Recombined += o.Recombined
	s.Discarded += o.Discarded
	s.Pruned += o.Pruned
}

// Beam holds at most Capacity hypotheses, best first. Put is safe for
// concurrent use; each call is one critical section.
type Beam struct {
	mu       sync.Mutex
	capacity int
	card     int
	hash     *recomb.Hash
	items    []*derivation.Derivation
	stats    Stats
}

// New returns a beam whose members must cover exactly card source words.
func New(capacity, card int, f recomb.Filter) *Beam {
	return &Beam{
		capacity: max(capacity, 1),
		card:     card,
		hash:     recomb.NewHash(f),
	}
}

// Put offers d to the beam. A hypothesis no better than the worst member
// of a full beam is discarded before touching the recombination hash.
// Evicted members leave the hash too.
func (b *Beam) Put(d *derivation.Derivation) (Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.card != AnyCardinality && d.Coverage.Cardinality() != b.card {
		return Discarded, fmt.Errorf("%w: %d words covered, beam holds %d",
			ErrCardinality, d.Coverage.Cardinality(), b.card)
	}
	if len(b.items) >= b.capacity && !derivation.Better(d, b.items[len(b.items)-1]) {
		b.stats.Discarded++
		return Discarded, nil
	}

	status, other := b.hash.Query(d, true)
	switch status {
	case recomb.Self:
		return Duplicate, nil
	case recomb.Combinable:
		b.stats.Recombined++
		return Recombined, nil
	case recomb.Updated:
		b.stats.Recombined++
		if i := slices.Index(b.items, other); i >= 0 {
			b.items = slices.Delete(b.items, i, i+1)
		}
		b.insert(d)
		return Replaced, nil
	case recomb.NovelInserted:
		b.stats.Inserted++
		b.insert(d)
		if len(b.items) > b.capacity {
			worst := b.items[len(b.items)-1]
			b.items = b.items[:len(b.items)-1]
			b.stats.Pruned++
			if err := b.hash.Remove(worst, false); err != nil {
				return Inserted, err
			}
		}
		return Inserted, nil
	}
	return Discarded, fmt.Errorf("unexpected recombination status %s", status)
}

func (b *Beam) insert(d *derivation.Derivation) {
	i, _ := slices.BinarySearchFunc(b.items, d, derivation.Compare)
	b.items = slices.Insert(b.items, i, d)
}

// Snapshot copies the members, best first.
func (b *Beam) Snapshot() []*derivation.Derivation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

// Best returns the top member, or nil for an empty beam.
func (b *Beam) Best() *derivation.Derivation {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil
	}
	return b.items[0]
}

func (b *Beam) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Beam) Capacity() int { return b.capacity }

// Cardinality is the coverage size every member shares, or AnyCardinality.
func (b *Beam) Cardinality() int { return b.card }

// Stats returns the insertion counters and the hash comparison counters.
func (b *Beam) Stats() (Stats, recomb.Stats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats, b.hash.Stats()
}
