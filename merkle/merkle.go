// Package merkle implements the fixed-height incremental commitment
// accumulator. Height and hash are pinned to the swap circuit: the fold
// performed by VerifyProof is arithmetically identical to the in-circuit
// fold, or proofs would be rejected on-chain.
package merkle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/veilswap/veilswap-go/poseidon"
)

// Height is the tree height fixed by the circuit; capacity is 2^Height leaves.
const Height = 20

var (
	// ErrLeafOutOfRange reports a proof request for a leaf never inserted.
	ErrLeafOutOfRange = errors.New("merkle: leaf index out of range")
	// ErrTreeFull reports an insertion past 2^Height leaves.
	ErrTreeFull = errors.New("merkle: tree is full")
)

// ZeroValue returns the level-0 zero leaf, keccak256("veilswap") reduced
// into the scalar field. Empty positions at level i hold the i-fold
// pair-hash of this constant.
func ZeroValue() *big.Int {
	z := new(big.Int).SetBytes(crypto.Keccak256([]byte("veilswap")))
	return z.Mod(z, poseidon.Modulus())
}

// Proof is a sibling path from a leaf to the root. PathIndices[i] == 0
// means the running node is the left child at level i and PathElements[i]
// sits on the right.
type Proof struct {
	Root         *big.Int
	PathElements []*big.Int
	PathIndices  []int
}

// Tree is an append-only incremental Merkle tree over commitments. Only
// positions actually written are stored; everything else is the zero
// constant for its level.
//
// A Tree is a single-writer structure: Insert mutates shared per-level
// slices and must be serialized by the caller. Reads of a tree that is no
// longer being written are safe from any number of goroutines.
type Tree struct {
	hasher *poseidon.Hasher
	zeros  [Height + 1]*big.Int
	layers [Height + 1][]*big.Int
}

// NewTree precomputes the zero chain. This is the only expensive setup and
// must complete before the first insertion (NewTree does it eagerly).
func NewTree(hasher *poseidon.Hasher) *Tree {
	t := &Tree{hasher: hasher}
	t.zeros[0] = ZeroValue()
	for i := 1; i <= Height; i++ {
		t.zeros[i] = hasher.Hash(t.zeros[i-1], t.zeros[i-1])
	}
	return t
}

// Build constructs a tree by inserting leaves in order. It is a
// convenience over NewTree + Insert, not a faster path.
func Build(hasher *poseidon.Hasher, leaves []*big.Int) (*Tree, error) {
	t := NewTree(hasher)
	for _, leaf := range leaves {
		if _, err := t.Insert(leaf); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// LeafCount returns the number of inserted leaves.
func (t *Tree) LeafCount() int {
	return len(t.layers[0])
}

// Insert appends leaf at the next free index and recomputes the path to
// the root. O(Height) hashes.
func (t *Tree) Insert(leaf *big.Int) (uint32, error) {
	idx := len(t.layers[0])
	if idx >= 1<<Height {
		return 0, ErrTreeFull
	}
	t.layers[0] = append(t.layers[0], new(big.Int).Set(leaf))

	cur := leaf
	pos := idx
	for level := 0; level < Height; level++ {
		var left, right *big.Int
		if pos%2 == 0 {
			left, right = cur, t.zeros[level]
		} else {
			left, right = t.layers[level][pos-1], cur
		}
		cur = t.hasher.Hash(left, right)
		pos /= 2
		if pos < len(t.layers[level+1]) {
			t.layers[level+1][pos] = cur
		} else {
			t.layers[level+1] = append(t.layers[level+1], cur)
		}
	}
	return uint32(idx), nil
}

// Root returns the current root, or the all-zero-tree root before any
// insertion.
func (t *Tree) Root() *big.Int {
	if len(t.layers[Height]) == 0 {
		return new(big.Int).Set(t.zeros[Height])
	}
	return new(big.Int).Set(t.layers[Height][0])
}

// Proof reconstructs the sibling path for an already inserted leaf.
func (t *Tree) Proof(index uint32) (*Proof, error) {
	if int(index) >= t.LeafCount() {
		return nil, fmt.Errorf("%w: index %d, leaves %d", ErrLeafOutOfRange, index, t.LeafCount())
	}
	p := &Proof{
		Root:         t.Root(),
		PathElements: make([]*big.Int, Height),
		PathIndices:  make([]int, Height),
	}
	pos := int(index)
	for level := 0; level < Height; level++ {
		p.PathIndices[level] = pos % 2
		sib := pos ^ 1
		if sib < len(t.layers[level]) {
			p.PathElements[level] = new(big.Int).Set(t.layers[level][sib])
		} else {
			p.PathElements[level] = new(big.Int).Set(t.zeros[level])
		}
		pos /= 2
	}
	return p, nil
}

// VerifyProof folds leaf up the path and compares against proof.Root. It
// is a pure function, independent of any tree instance; the circuit
// performs the identical fold as constraints.
func VerifyProof(hasher *poseidon.Hasher, leaf *big.Int, proof *Proof) bool {
	if proof == nil || len(proof.PathElements) != Height || len(proof.PathIndices) != Height {
		return false
	}
	cur := leaf
	for i := 0; i < Height; i++ {
		switch proof.PathIndices[i] {
		case 0:
			cur = hasher.Hash(cur, proof.PathElements[i])
		case 1:
			cur = hasher.Hash(proof.PathElements[i], cur)
		default:
			return false
		}
	}
	return cur.Cmp(proof.Root) == 0
}
