// Package hashing provides the keyed 64-bit hash used for drive
// routing. The routing contract only needs determinism across process
// restarts and low collision on short ASCII paths; the concrete hash
// function is not part of the external contract.
package hashing

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Hasher computes keyed 64-bit hashes. It is stateless after
// construction and safe for concurrent use.
type Hasher struct {
	key [32]byte
}

// New derives the 32-byte BLAKE3 key from the textual seed with an
// unkeyed hash, so equal seeds always produce equal routing decisions.
func New(seed string) *Hasher {
	return &Hasher{key: blake3.Sum256([]byte(seed))}
}

// Sum64 returns the first 8 bytes of the keyed BLAKE3 digest of input,
// little-endian.
func (h *Hasher) Sum64(input string) uint64 {
	hasher, err := blake3.NewKeyed(h.key[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes, which
		// the fixed-size array rules out.
		panic("hashing: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(input))
	return binary.LittleEndian.Uint64(hasher.Sum(nil))
}
