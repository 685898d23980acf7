// Package blake3hash binds pmtree's hash.Hasher interface to BLAKE3 via
// lukechampine.com/blake3, the same BLAKE3 implementation present in
// cerc-io/ipld-eth-statedb's dependency tree.
package blake3hash

import (
	"lukechampine.com/blake3"

	"github.com/arborix-db/pmtree/hash"
)

// Size is the digest length, in bytes, produced by this binding.
const Size = 32

// Hasher adapts a lukechampine.com/blake3 digest to hash.Hasher.
type Hasher struct {
	h *blake3.Hasher
}

// New returns a fresh, unkeyed BLAKE3 hasher producing Size-byte digests.
func New() *Hasher {
	return &Hasher{h: blake3.New(Size, nil)}
}

func (b *Hasher) Fork() hash.Hasher {
	return New()
}

func (b *Hasher) Write(p []byte) {
	_, _ = b.h.Write(p)
}

func (b *Hasher) Finalize() []byte {
	return b.h.Sum(nil)
}

var _ hash.Hasher = (*Hasher)(nil)

// EmptyHash is the canonical digest of the empty tree: BLAKE3 of zero
// input bytes, computed once at package init rather than hardcoded, so it
// always matches whatever this binding would produce for an unwritten
// hasher.
var EmptyHash = New().Finalize()

