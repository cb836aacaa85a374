package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a SHA-256 cache key.
type Digest [32]byte

// Sum hashes s.
func Sum(s string) Digest { return sha256.Sum256([]byte(s)) }

// Combine hashes parts in order: H(p1 || p2 || ...).
func Combine(parts ...Digest) Digest {
	h := sha256.New()
	for _, d := range parts {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether d was never set.
func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) String() string { return hex.EncodeToString(d[:]) }
