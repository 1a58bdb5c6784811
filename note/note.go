// Package note implements the deposit-note lifecycle: secret generation,
// commitment and nullifier-hash computation, and the portable wire format
// used to back a note up outside the process.
package note

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/veilswap/veilswap-go/poseidon"
)

const (
	// Prefix tags the serialized note format.
	Prefix = "veilswap"
	// Version is the wire-format version.
	Version = "v1"
)

var (
	// ErrNoteFormat reports a malformed serialized note.
	ErrNoteFormat = errors.New("note: malformed serialized note")
	// ErrNoLeafIndex reports a note whose tree position is unknown.
	ErrNoLeafIndex = errors.New("note: leaf index not assigned")
)

// DepositNote holds the secrets controlling one deposit. Whoever holds the
// serialized form owns the funds; there is no recovery path.
//
// LeafIndex is nil until the commitment is confirmed on-chain, then set
// exactly once. It is not part of the wire format; a restored note
// re-discovers it from the pool's Deposit events.
type DepositNote struct {
	Secret        *big.Int
	Nullifier     *big.Int
	Amount        *uint256.Int
	Commitment    *big.Int
	NullifierHash *big.Int
	LeafIndex     *uint32
}

// New draws two independent uniform random field elements and derives the
// note's commitment and nullifier hash. rand may be nil to use crypto/rand.
func New(hasher *poseidon.Hasher, amount *uint256.Int, rand io.Reader) (*DepositNote, error) {
	secret, err := poseidon.RandomElement(rand)
	if err != nil {
		return nil, err
	}
	nullifier, err := poseidon.RandomElement(rand)
	if err != nil {
		return nil, err
	}
	return Reconstruct(hasher, secret, nullifier, amount, nil), nil
}

// Reconstruct rebuilds a note from saved secrets. The derived commitment is
// identical to the one New produced for the same inputs.
func Reconstruct(hasher *poseidon.Hasher, secret, nullifier *big.Int, amount *uint256.Int, leafIndex *uint32) *DepositNote {
	return &DepositNote{
		Secret:        new(big.Int).Set(secret),
		Nullifier:     new(big.Int).Set(nullifier),
		Amount:        amount.Clone(),
		Commitment:    ComputeCommitment(hasher, nullifier, secret, amount),
		NullifierHash: ComputeNullifierHash(hasher, nullifier),
		LeafIndex:     leafIndex,
	}
}

// ComputeCommitment returns Hash(nullifier, secret, amount).
func ComputeCommitment(hasher *poseidon.Hasher, nullifier, secret *big.Int, amount *uint256.Int) *big.Int {
	return hasher.Hash(nullifier, secret, amount.ToBig())
}

// ComputeNullifierHash returns Hash(nullifier).
func ComputeNullifierHash(hasher *poseidon.Hasher, nullifier *big.Int) *big.Int {
	return hasher.Hash(nullifier)
}

// SetLeafIndex records the confirmed tree position. It may be called once.
func (n *DepositNote) SetLeafIndex(idx uint32) error {
	if n.LeafIndex != nil {
		return fmt.Errorf("note: leaf index already assigned (%d)", *n.LeafIndex)
	}
	n.LeafIndex = &idx
	return nil
}

// Serialize renders the note as
// "veilswap-v1-<secret:64hex>-<nullifier:64hex>-<amount:hex>".
// LeafIndex is deliberately not persisted.
func (n *DepositNote) Serialize() string {
	return fmt.Sprintf("%s-%s-%064x-%064x-%x", Prefix, Version, n.Secret, n.Nullifier, n.Amount)
}

// Deserialize parses the wire format and recomputes the derived digests.
// The returned note has no leaf index.
func Deserialize(hasher *poseidon.Hasher, s string) (*DepositNote, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d", ErrNoteFormat, len(parts))
	}
	if parts[0] != Prefix || parts[1] != Version {
		return nil, fmt.Errorf("%w: bad prefix %q-%q", ErrNoteFormat, parts[0], parts[1])
	}
	secret, ok := parseFieldHex(parts[2])
	if !ok {
		return nil, fmt.Errorf("%w: bad secret", ErrNoteFormat)
	}
	nullifier, ok := parseFieldHex(parts[3])
	if !ok {
		return nil, fmt.Errorf("%w: bad nullifier", ErrNoteFormat)
	}
	amtBig, ok := new(big.Int).SetString(parts[4], 16)
	if !ok || amtBig.Sign() < 0 {
		return nil, fmt.Errorf("%w: bad amount", ErrNoteFormat)
	}
	amount, overflow := uint256.FromBig(amtBig)
	if overflow {
		return nil, fmt.Errorf("%w: amount overflows uint256", ErrNoteFormat)
	}
	return Reconstruct(hasher, secret, nullifier, amount, nil), nil
}

func parseFieldHex(s string) (*big.Int, bool) {
	if len(s) != 64 {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok || v.Cmp(poseidon.Modulus()) >= 0 {
		return nil, false
	}
	return v, true
}

// FormatCommitment renders a field element as the 0x-prefixed 32-byte
// big-endian hex string the pool contract stores.
func FormatCommitment(commitment *big.Int) string {
	return fmt.Sprintf("0x%064x", commitment)
}
