package note

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/veilswap/veilswap-go/poseidon"
)

func TestNewNoteDerivations(t *testing.T) {
	hasher := poseidon.Default()
	amount := uint256.NewInt(1_000_000)

	n, err := New(hasher, amount, nil)
	require.NoError(t, err)
	require.Nil(t, n.LeafIndex)
	require.NotZero(t, n.Secret.Cmp(n.Nullifier), "secret and nullifier must be independent")

	require.Zero(t, n.Commitment.Cmp(ComputeCommitment(hasher, n.Nullifier, n.Secret, amount)))
	require.Zero(t, n.NullifierHash.Cmp(ComputeNullifierHash(hasher, n.Nullifier)))
}

func TestReconstructIsDeterministic(t *testing.T) {
	hasher := poseidon.Default()
	amount := uint256.NewInt(42)

	n, err := New(hasher, amount, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		r := Reconstruct(hasher, n.Secret, n.Nullifier, amount, nil)
		require.Zero(t, n.Commitment.Cmp(r.Commitment))
		require.Zero(t, n.NullifierHash.Cmp(r.NullifierHash))
	}
}

func TestCreateUniqueness(t *testing.T) {
	hasher := poseidon.Default()
	amount := uint256.NewInt(100)

	commitments := make(map[string]bool)
	nullifierHashes := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n, err := New(hasher, amount, nil)
		require.NoError(t, err)
		c, nh := n.Commitment.String(), n.NullifierHash.String()
		require.False(t, commitments[c], "commitment collision at trial %d", i)
		require.False(t, nullifierHashes[nh], "nullifier hash collision at trial %d", i)
		commitments[c] = true
		nullifierHashes[nh] = true
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	hasher := poseidon.Default()
	amount := uint256.MustFromDecimal("1000000000000000000")

	n, err := New(hasher, amount, nil)
	require.NoError(t, err)
	idx := uint32(3)
	require.NoError(t, n.SetLeafIndex(idx))

	s := n.Serialize()
	require.True(t, strings.HasPrefix(s, "veilswap-v1-"))

	restored, err := Deserialize(hasher, s)
	require.NoError(t, err)
	require.Zero(t, restored.Secret.Cmp(n.Secret))
	require.Zero(t, restored.Nullifier.Cmp(n.Nullifier))
	require.True(t, restored.Amount.Eq(n.Amount))
	require.Zero(t, restored.Commitment.Cmp(n.Commitment))
	require.Zero(t, restored.NullifierHash.Cmp(n.NullifierHash))
	// the wire format does not carry the tree position
	require.Nil(t, restored.LeafIndex)
}

func TestDeserializeRejectsMalformed(t *testing.T) {
	hasher := poseidon.Default()
	n, err := New(hasher, uint256.NewInt(5), nil)
	require.NoError(t, err)
	good := n.Serialize()

	cases := map[string]string{
		"wrong prefix":    strings.Replace(good, "veilswap-", "tornado-", 1),
		"wrong version":   strings.Replace(good, "-v1-", "-v2-", 1),
		"missing field":   good[:strings.LastIndex(good, "-")],
		"extra field":     good + "-ff",
		"short secret":    "veilswap-v1-abcd-" + strings.Join(strings.Split(good, "-")[3:], "-"),
		"non-hex amount":  good[:strings.LastIndex(good, "-")+1] + "zz",
		"empty":           "",
		"bare separators": "----",
	}
	for name, s := range cases {
		_, err := Deserialize(hasher, s)
		require.ErrorIs(t, err, ErrNoteFormat, name)
	}
}

func TestSetLeafIndexOnce(t *testing.T) {
	hasher := poseidon.Default()
	n, err := New(hasher, uint256.NewInt(1), nil)
	require.NoError(t, err)

	require.NoError(t, n.SetLeafIndex(7))
	require.Error(t, n.SetLeafIndex(8))
	require.Equal(t, uint32(7), *n.LeafIndex)
}

func TestFormatCommitment(t *testing.T) {
	hasher := poseidon.Default()
	n, err := New(hasher, uint256.NewInt(9), nil)
	require.NoError(t, err)

	s := FormatCommitment(n.Commitment)
	require.Len(t, s, 66)
	require.True(t, strings.HasPrefix(s, "0x"))
	require.Equal(t, strings.ToLower(s), s)
}

func TestSealOpenRoundTrip(t *testing.T) {
	hasher := poseidon.Default()
	n, err := New(hasher, uint256.NewInt(77), nil)
	require.NoError(t, err)

	pass := []byte("correct horse battery staple")
	sealed, err := n.Seal(pass)
	require.NoError(t, err)

	restored, err := Open(hasher, sealed, pass)
	require.NoError(t, err)
	require.Zero(t, restored.Commitment.Cmp(n.Commitment))

	_, err = Open(hasher, sealed, []byte("wrong passphrase"))
	require.Error(t, err)

	// flip a ciphertext byte: authentication must fail
	sealed[len(sealed)-1] ^= 0x01
	_, err = Open(hasher, sealed, pass)
	require.Error(t, err)
}
