// Package hashid provides the opaque 32-byte content identifier shared by
// the blob and tree content-addressed stores. The namespace is disambiguated
// by which store a Hash indexes, not by anything encoded in the Hash itself.
package hashid

import (
	"encoding/hex"
	"fmt"
)

// Size is the digest length in bytes.
const Size = 32

// HexLen is the length of a Hash's lowercase hex rendering.
const HexLen = Size * 2

// Hash is an opaque 32-byte content identifier. The zero value is a valid
// Hash (the hash of nothing has no special meaning here; it is just another
// 32 bytes) but is never produced by the canonical hasher for real input.
type Hash [Size]byte

// FromBytes copies raw into a Hash. len(raw) must be exactly Size.
func FromBytes(raw []byte) (Hash, error) {
	var h Hash
	if len(raw) != Size {
		return h, fmt.Errorf("hashid: %w: want %d raw bytes, got %d", ErrBadHex, Size, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// ParseHex decodes a 64-character lowercase hex string into a Hash.
// Fails with ErrBadHex on any length or alphabet violation.
func ParseHex(s string) (Hash, error) {
	var h Hash
	if len(s) != HexLen {
		return h, fmt.Errorf("hashid: %w: want %d hex chars, got %d", ErrBadHex, HexLen, len(s))
	}
	n, err := hex.Decode(h[:], []byte(s))
	if err != nil || n != Size {
		return Hash{}, fmt.Errorf("hashid: %w: %q", ErrBadHex, s)
	}
	return h, nil
}

// ErrBadHex is wrapped by every hex-decoding failure in this package.
var ErrBadHex = fmt.Errorf("bad hex hash")

// Bytes returns the raw 32 bytes of the hash.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Hex returns the 64-character lowercase hex rendering of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer and is used by %v/%s; debug rendering
// includes the hex so hashes print usefully in logs and test failures.
func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether h is the all-zero Hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
