package merkle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veilswap/veilswap-go/poseidon"
)

func randomLeaves(t *testing.T, n int) []*big.Int {
	t.Helper()
	leaves := make([]*big.Int, n)
	for i := range leaves {
		v, err := poseidon.RandomElement(nil)
		require.NoError(t, err)
		leaves[i] = v
	}
	return leaves
}

func TestEmptyTreeRoot(t *testing.T) {
	hasher := poseidon.Default()
	tree := NewTree(hasher)

	// all-zero-tree root is the Height-fold pair hash of the zero leaf
	expected := ZeroValue()
	for i := 0; i < Height; i++ {
		expected = hasher.Hash(expected, expected)
	}
	require.Zero(t, tree.Root().Cmp(expected))
	require.Zero(t, tree.LeafCount())
}

func TestSingleLeafRoot(t *testing.T) {
	hasher := poseidon.Default()
	tree := NewTree(hasher)

	leaf := big.NewInt(12345)
	idx, err := tree.Insert(leaf)
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)

	// a lone leaf sits on the left at every level, paired with the
	// zero constant of that level
	expected := new(big.Int).Set(leaf)
	zero := ZeroValue()
	for i := 0; i < Height; i++ {
		expected = hasher.Hash(expected, zero)
		zero = hasher.Hash(zero, zero)
	}
	require.Zero(t, tree.Root().Cmp(expected))
}

func TestDeterministicRoots(t *testing.T) {
	hasher := poseidon.Default()
	leaves := randomLeaves(t, 7)

	t1, err := Build(hasher, leaves)
	require.NoError(t, err)
	t2 := NewTree(hasher)
	for _, leaf := range leaves {
		_, err := t2.Insert(leaf)
		require.NoError(t, err)
	}
	require.Zero(t, t1.Root().Cmp(t2.Root()))
}

func TestProofsVerify(t *testing.T) {
	hasher := poseidon.Default()
	leaves := randomLeaves(t, 5)
	tree, err := Build(hasher, leaves)
	require.NoError(t, err)

	for i, leaf := range leaves {
		proof, err := tree.Proof(uint32(i))
		require.NoError(t, err)
		require.Zero(t, proof.Root.Cmp(tree.Root()))
		require.True(t, VerifyProof(hasher, leaf, proof), "leaf %d", i)

		// any other field element must not verify in its place
		wrong := new(big.Int).Add(leaf, big.NewInt(1))
		require.False(t, VerifyProof(hasher, wrong, proof), "tampered leaf %d", i)
	}
}

func TestProofOutOfRange(t *testing.T) {
	hasher := poseidon.Default()
	tree, err := Build(hasher, randomLeaves(t, 3))
	require.NoError(t, err)

	_, err = tree.Proof(3)
	require.ErrorIs(t, err, ErrLeafOutOfRange)
	_, err = tree.Proof(1 << Height)
	require.ErrorIs(t, err, ErrLeafOutOfRange)
}

func TestProofStaysValidAfterAppend(t *testing.T) {
	hasher := poseidon.Default()
	tree, err := Build(hasher, randomLeaves(t, 2))
	require.NoError(t, err)

	leaf := big.NewInt(999)
	idx, err := tree.Insert(leaf)
	require.NoError(t, err)

	// appending more leaves moves the root; an old proof is for an old root
	oldProof, err := tree.Proof(idx)
	require.NoError(t, err)
	_, err = tree.Insert(big.NewInt(1000))
	require.NoError(t, err)

	require.True(t, VerifyProof(hasher, leaf, oldProof), "old proof against its own root")
	fresh, err := tree.Proof(idx)
	require.NoError(t, err)
	require.NotZero(t, oldProof.Root.Cmp(fresh.Root))
	require.True(t, VerifyProof(hasher, leaf, fresh))
}

func TestVerifyProofRejectsBadShape(t *testing.T) {
	hasher := poseidon.Default()
	require.False(t, VerifyProof(hasher, big.NewInt(1), nil))
	require.False(t, VerifyProof(hasher, big.NewInt(1), &Proof{
		Root:         big.NewInt(0),
		PathElements: make([]*big.Int, 2),
		PathIndices:  make([]int, 2),
	}))

	tree, err := Build(hasher, randomLeaves(t, 2))
	require.NoError(t, err)
	proof, err := tree.Proof(0)
	require.NoError(t, err)
	proof.PathIndices[4] = 2
	require.False(t, VerifyProof(hasher, tree.layers[0][0], proof))
}

func TestZeroValueInField(t *testing.T) {
	z := ZeroValue()
	require.True(t, z.Sign() > 0)
	require.True(t, z.Cmp(poseidon.Modulus()) < 0)
}
