// Package poseidon wraps the Poseidon2 permutation over the BN254 scalar
// field behind a small adapter. The same construction is instantiated
// in-circuit, so a digest computed here is bit-identical to the one the
// verifier recomputes inside the constraint system.
package poseidon

import (
	crand "crypto/rand"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Hasher computes Poseidon2 digests over BN254 field elements using the
// Merkle-Damgard chaining the circuit side uses. It is stateless; a fresh
// inner hasher is created per call, so a single Hasher is safe for
// concurrent use.
type Hasher struct{}

var (
	defaultOnce   sync.Once
	defaultHasher *Hasher
)

// New returns a ready Hasher. Building the round-constant tables happens
// inside gnark-crypto on first use and is idempotent.
func New() *Hasher {
	return &Hasher{}
}

// Default returns the process-wide Hasher. First call pays the one-time
// permutation setup; later calls reuse it.
func Default() *Hasher {
	defaultOnce.Do(func() {
		h := New()
		// warm the round-constant tables so concurrent first users
		// never race the lazy build inside gnark-crypto
		_ = h.Hash(big.NewInt(0))
		defaultHasher = h
	})
	return defaultHasher
}

// Modulus returns a copy of the BN254 scalar field modulus.
func Modulus() *big.Int {
	return new(big.Int).Set(fr.Modulus())
}

// Hash folds the inputs into a single field element. Inputs are reduced
// mod p before absorption so out-of-range values cannot distinguish two
// call sites.
func (h *Hasher) Hash(inputs ...*big.Int) *big.Int {
	inner := poseidon2.NewMerkleDamgardHasher()
	for _, in := range inputs {
		var e fr.Element
		e.SetBigInt(in)
		b := e.Bytes()
		// canonical 32-byte encoding, one element per write
		if _, err := inner.Write(b[:]); err != nil {
			panic(fmt.Sprintf("poseidon: absorb failed: %v", err))
		}
	}
	return new(big.Int).SetBytes(inner.Sum(nil))
}

// HashBytes interprets each input as a big-endian integer, reduces it mod p
// and hashes the resulting elements.
func (h *Hasher) HashBytes(inputs ...[]byte) *big.Int {
	elems := make([]*big.Int, len(inputs))
	for i, in := range inputs {
		elems[i] = new(big.Int).SetBytes(in)
	}
	return h.Hash(elems...)
}

// RandomElement draws a uniform random field element from r, or from
// crypto/rand when r is nil.
func RandomElement(r io.Reader) (*big.Int, error) {
	if r == nil {
		r = crand.Reader
	}
	v, err := crand.Int(r, fr.Modulus())
	if err != nil {
		return nil, fmt.Errorf("poseidon: random element: %w", err)
	}
	return v, nil
}
