package vocab

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sequence is a tokenized sentence or phrase.
type Sequence []WordID

// Tokenize NFC-normalizes text and splits it on whitespace. Phrase tables
// and input files go through the same path so equal surface forms intern to
// the same ID regardless of their Unicode composition.
func Tokenize(text string) []string {
	return strings.Fields(norm.NFC.String(text))
}

// Encode interns tokens into a Sequence.
func (v *Vocabulary) Encode(tokens []string) Sequence {
	seq := make(Sequence, len(tokens))
	for i, tok := range tokens {
		seq[i] = v.Intern(tok)
	}
	return seq
}

// Parse tokenizes and encodes text in one step.
func (v *Vocabulary) Parse(text string) Sequence {
	return v.Encode(Tokenize(text))
}

// Decode maps IDs back to tokens. Unknown IDs decode to "<unk>".
func (v *Vocabulary) Decode(seq Sequence) []string {
	out := make([]string, len(seq))
	for i, id := range seq {
		s, ok := v.Lookup(id)
		if !ok {
			s = Unknown
		}
		out[i] = s
	}
	return out
}

// String renders seq as space-separated tokens.
func (v *Vocabulary) String(seq Sequence) string {
	return strings.Join(v.Decode(seq), " ")
}

// Equal reports element-wise equality.
func (s Sequence) Equal(o Sequence) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p is a prefix of s.
func (s Sequence) HasPrefix(p Sequence) bool {
	return len(p) <= len(s) && s[:len(p)].Equal(p)
}

// Contains reports whether sub occurs contiguously in s.
func (s Sequence) Contains(sub Sequence) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)].Equal(sub) {
			return true
		}
	}
	return false
}
