package zkproof

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/veilswap/veilswap-go/merkle"
	"github.com/veilswap/veilswap-go/note"
	"github.com/veilswap/veilswap-go/poseidon"
)

var (
	// ErrBadSwapParams reports routing parameters the circuit would reject.
	ErrBadSwapParams = errors.New("zkproof: swap params violate circuit constraints")
	// ErrProofMismatch reports a merkle proof that does not carry the note's
	// commitment to its claimed root.
	ErrProofMismatch = errors.New("zkproof: merkle proof does not match note")
)

// SwapParams are the public routing parameters of one withdrawal.
type SwapParams struct {
	Recipient     common.Address
	Relayer       common.Address
	RelayerFee    uint64 // basis points, < 1000
	SwapAmountOut *uint256.Int
}

// CircuitInput is the full signal vector the prover consumes. Every
// numeric signal is a decimal string; PathIndices are bare 0/1 integers.
// Field names and ordering are fixed by the compiled circuit.
type CircuitInput struct {
	MerkleRoot    string   `json:"merkleRoot"`
	NullifierHash string   `json:"nullifierHash"`
	Recipient     string   `json:"recipient"`
	Relayer       string   `json:"relayer"`
	RelayerFee    string   `json:"relayerFee"`
	SwapAmountOut string   `json:"swapAmountOut"`
	Secret        string   `json:"secret"`
	Nullifier     string   `json:"nullifier"`
	DepositAmount string   `json:"depositAmount"`
	PathElements  []string `json:"pathElements"`
	PathIndices   []int    `json:"pathIndices"`
}

// BuildCircuitInput assembles the signal vector for a withdrawal. It
// pre-flights everything the circuit will check cheaply (routing
// constraints, the merkle fold) so a doomed witness fails here instead of
// after seconds of proving.
func BuildCircuitInput(hasher *poseidon.Hasher, n *note.DepositNote, proof *merkle.Proof, params SwapParams) (*CircuitInput, error) {
	if err := checkSwapParams(params); err != nil {
		return nil, err
	}
	if !merkle.VerifyProof(hasher, n.Commitment, proof) {
		return nil, ErrProofMismatch
	}

	in := &CircuitInput{
		MerkleRoot:    proof.Root.String(),
		NullifierHash: n.NullifierHash.String(),
		Recipient:     addressSignal(params.Recipient),
		Relayer:       addressSignal(params.Relayer),
		RelayerFee:    new(big.Int).SetUint64(params.RelayerFee).String(),
		SwapAmountOut: params.SwapAmountOut.Dec(),
		Secret:        n.Secret.String(),
		Nullifier:     n.Nullifier.String(),
		DepositAmount: n.Amount.Dec(),
		PathElements:  make([]string, merkle.Height),
		PathIndices:   make([]int, merkle.Height),
	}
	for i := 0; i < merkle.Height; i++ {
		in.PathElements[i] = proof.PathElements[i].String()
		in.PathIndices[i] = proof.PathIndices[i]
	}
	return in, nil
}

// ExpectedPublicSignals recomputes, without proving, the public-signal
// vector a valid proof for this note and root must carry. Ordering matches
// the verifier: merkleRoot, nullifierHash, recipient, relayer, relayerFee,
// swapAmountOut, depositAmount, commitment.
func ExpectedPublicSignals(n *note.DepositNote, root *big.Int, params SwapParams) [8]string {
	return [8]string{
		root.String(),
		n.NullifierHash.String(),
		addressSignal(params.Recipient),
		addressSignal(params.Relayer),
		new(big.Int).SetUint64(params.RelayerFee).String(),
		params.SwapAmountOut.Dec(),
		n.Amount.Dec(),
		n.Commitment.String(),
	}
}

func checkSwapParams(params SwapParams) error {
	if params.Recipient == (common.Address{}) {
		return fmt.Errorf("%w: zero recipient", ErrBadSwapParams)
	}
	if params.RelayerFee >= maxRelayerFee {
		return fmt.Errorf("%w: fee %d >= %d", ErrBadSwapParams, params.RelayerFee, maxRelayerFee)
	}
	if params.Relayer == (common.Address{}) && params.RelayerFee != 0 {
		return fmt.Errorf("%w: fee %d without relayer", ErrBadSwapParams, params.RelayerFee)
	}
	if params.SwapAmountOut == nil {
		return fmt.Errorf("%w: nil swap amount", ErrBadSwapParams)
	}
	return nil
}

func addressSignal(addr common.Address) string {
	return new(big.Int).SetBytes(addr.Bytes()).String()
}
