package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// Fingerprint is a digest produced by a Builder: a weak fingerprint, a
// strong fingerprint, or a directory-membership fingerprint. The zero
// Fingerprint is the canonical "nothing contributed" digest used by
// DefaultFingerprint mode (§4.5) and recognized by the observed-input
// processor as equivalent to an absent-path-probe (§8 canonicalization
// invariant).
type Fingerprint [sha256.Size]byte

// IsZero reports whether f is the zero digest.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Builder accumulates typed fields into a rolling digest. The order in
// which fields are appended is contractual: it defines the cache key, so
// callers must append fields in a fixed, documented order for a given
// fingerprint kind rather than iterating maps or other unordered
// collections directly.
type Builder struct {
	h hash.Hash
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{h: sha256.New()}
}

// lengthPrefixed writes b to the underlying hash preceded by its length, so
// that concatenating two adjacent fields can never be confused with a
// single combined field ("ab"+"c" vs "a"+"bc").
func (b *Builder) lengthPrefixed(data []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
	b.h.Write(lenBuf[:])
	b.h.Write(data)
}

// AppendString appends a string field.
func (b *Builder) AppendString(s string) *Builder {
	b.lengthPrefixed([]byte(s))
	return b
}

// AppendInt appends a signed integer field.
func (b *Builder) AppendInt(v int64) *Builder {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	b.h.Write(buf[:])
	return b
}

// AppendBool appends a boolean field.
func (b *Builder) AppendBool(v bool) *Builder {
	if v {
		b.h.Write([]byte{1})
	} else {
		b.h.Write([]byte{0})
	}
	return b
}

// AppendHash appends a content Hash field (algorithm tag plus digest).
func (b *Builder) AppendHash(h Hash) *Builder {
	b.h.Write([]byte{byte(h.Algorithm)})
	b.lengthPrefixed(h.Digest)
	return b
}

// AppendFingerprint appends another Fingerprint as a field, used when
// composing the strong fingerprint from the weak fingerprint and the
// path-set content hash.
func (b *Builder) AppendFingerprint(f Fingerprint) *Builder {
	b.h.Write(f[:])
	return b
}

// AppendStringSet appends an unordered collection of strings as a single
// field by sorting a copy first, so that the digest is independent of the
// iteration order the caller happened to use (e.g. a map's key order).
func (b *Builder) AppendStringSet(items []string) *Builder {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	b.AppendInt(int64(len(sorted)))
	for _, s := range sorted {
		b.AppendString(s)
	}
	return b
}

// Sum finalizes the builder and returns the resulting Fingerprint. The
// builder remains usable afterward (sha256.Hash.Sum does not mutate state),
// though in practice every caller in this package builds a fingerprint once
// and discards the builder.
func (b *Builder) Sum() Fingerprint {
	var f Fingerprint
	copy(f[:], b.h.Sum(nil))
	return f
}

// EncodeHex renders a Fingerprint as a lowercase hex string, used for
// cache-key strings and diagnostic output where a raw digest isn't
// convenient (e.g. as a map key or a cache backend's lookup key).
func EncodeHex(f Fingerprint) string {
	return hex.EncodeToString(f[:])
}
