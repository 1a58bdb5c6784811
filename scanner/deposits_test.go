package scanner

import (
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/veilswap/veilswap-go/note"
	"github.com/veilswap/veilswap-go/poseidon"
)

func TestRestoreLeafIndex(t *testing.T) {
	n, err := note.New(poseidon.Default(), uint256.NewInt(1_000_000), rand.Reader)
	require.NoError(t, err)

	deposits := []Deposit{
		{Commitment: poseidon.Default().Hash(n.NullifierHash), LeafIndex: 0},
		{Commitment: n.Commitment, LeafIndex: 7},
	}
	require.NoError(t, RestoreLeafIndex(n, deposits))
	require.NotNil(t, n.LeafIndex)
	require.Equal(t, uint32(7), *n.LeafIndex)
}

func TestRestoreLeafIndexNotFound(t *testing.T) {
	n, err := note.New(poseidon.Default(), uint256.NewInt(42), rand.Reader)
	require.NoError(t, err)
	err = RestoreLeafIndex(n, []Deposit{})
	require.ErrorIs(t, err, note.ErrNoLeafIndex)
}
