package vocab

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// WordID identifies an interned token. IDs are dense and stable for the
// lifetime of a Vocabulary.
type WordID uint32

const NoWordID WordID = 0

// Reserved tokens, interned by New in this order.
const (
	SentenceStart = "<s>"
	SentenceEnd   = "</s>"
	Unknown       = "<unk>"
)

const (
	StartID WordID = iota + 1
	EndID
	UnknownID
)

// Vocabulary maps tokens to WordIDs. It replaces process-wide interning
// tables: one Vocabulary is built at startup and handed to every model that
// needs to agree on token identity.
// Safe for concurrent use.
type Vocabulary struct {
	mu    sync.RWMutex
	byID  []string          // id -> token (byID[0] = "" for NoWordID)
	index map[string]WordID // token -> id
}

func New() *Vocabulary {
	v := &Vocabulary{
		byID:  []string{""},
		index: map[string]WordID{"": NoWordID},
	}
	v.Intern(SentenceStart)
	v.Intern(SentenceEnd)
	v.Intern(Unknown)
	return v
}

// Intern inserts a token and returns its ID. Known tokens keep their ID.
func (v *Vocabulary) Intern(s string) WordID {
	v.mu.RLock()
	id, ok := v.index[s]
	v.mu.RUnlock()
	if ok {
		return id
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.index[s]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(v.byID))
	if err != nil {
		panic(fmt.Errorf("vocabulary overflow: %w", err))
	}
	cpy := strings.Clone(s)
	id = WordID(n)
	v.byID = append(v.byID, cpy)
	v.index[cpy] = id
	return id
}

// ID returns the ID of a token without interning it.
func (v *Vocabulary) ID(s string) (WordID, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.index[s]
	return id, ok
}

// Lookup returns the token for id, or "" and false for an invalid id.
func (v *Vocabulary) Lookup(id WordID) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if int(id) >= len(v.byID) {
		return "", false
	}
	return v.byID[id], true
}

// MustLookup panics on an invalid id.
func (v *Vocabulary) MustLookup(id WordID) string {
	s, ok := v.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("invalid word id %d", id))
	}
	return s
}

// Len counts interned tokens including the NoWordID sentinel.
func (v *Vocabulary) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.byID)
}

// Snapshot returns a copy of all tokens indexed by ID.
func (v *Vocabulary) Snapshot() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.byID)
}
