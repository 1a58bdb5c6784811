// Package zkproof assembles circuit inputs for the swap circuit, drives
// the groth16 prover and reshapes proofs into the layout the on-chain
// verifier expects.
package zkproof

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"

	"github.com/veilswap/veilswap-go/merkle"
	"github.com/veilswap/veilswap-go/poseidon"
)

// ErrUnsatisfiedCircuit reports a witness the circuit constraints reject.
// An invariant was violated upstream (wrong secrets, stale root, tampered
// amount); retrying without correcting the input cannot succeed.
var ErrUnsatisfiedCircuit = errors.New("zkproof: witness does not satisfy circuit")

// Proof is a groth16 proof in the prover's native point layout: projective
// G1 triples and the G2 point with the real component first.
type Proof struct {
	PiA      [3]string    `json:"pi_a"`
	PiB      [3][2]string `json:"pi_b"`
	PiC      [3]string    `json:"pi_c"`
	Protocol string       `json:"protocol"`
}

// Prove runs the groth16 prover over the assembled input. It returns the
// proof and the eight public signals in verifier order. Proving is a
// blocking, non-cancellable unit of work; expect seconds.
func Prove(hasher *poseidon.Hasher, arts *Artifacts, input *CircuitInput) (*Proof, []string, error) {
	assignment, err := input.assignment(hasher)
	if err != nil {
		return nil, nil, err
	}
	wtn, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("zkproof: build witness: %w", err)
	}
	pubWtn, err := wtn.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("zkproof: public witness: %w", err)
	}

	proof, err := groth16.Prove(arts.CCS, arts.PK, wtn)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsatisfiedCircuit, err)
	}

	vec, ok := pubWtn.Vector().(fr.Vector)
	if !ok {
		return nil, nil, fmt.Errorf("zkproof: unexpected public witness vector type %T", pubWtn.Vector())
	}
	signals := make([]string, len(vec))
	for i := range vec {
		signals[i] = vec[i].String()
	}

	p, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, nil, fmt.Errorf("zkproof: unexpected proof type %T", proof)
	}
	return &Proof{
		PiA: [3]string{p.Ar.X.String(), p.Ar.Y.String(), "1"},
		PiB: [3][2]string{
			{p.Bs.X.A0.String(), p.Bs.X.A1.String()},
			{p.Bs.Y.A0.String(), p.Bs.Y.A1.String()},
			{"1", "0"},
		},
		PiC:      [3]string{p.Krs.X.String(), p.Krs.Y.String(), "1"},
		Protocol: "groth16",
	}, signals, nil
}

// assignment parses the decimal-string signal vector back into a circuit
// assignment.
func (in *CircuitInput) assignment(hasher *poseidon.Hasher) (*SwapCircuit, error) {
	var c SwapCircuit
	scalars := []struct {
		name string
		s    string
		dst  *frontend.Variable
	}{
		{"merkleRoot", in.MerkleRoot, &c.MerkleRoot},
		{"nullifierHash", in.NullifierHash, &c.NullifierHash},
		{"recipient", in.Recipient, &c.Recipient},
		{"relayer", in.Relayer, &c.Relayer},
		{"relayerFee", in.RelayerFee, &c.RelayerFee},
		{"swapAmountOut", in.SwapAmountOut, &c.SwapAmountOut},
		{"secret", in.Secret, &c.Secret},
		{"nullifier", in.Nullifier, &c.Nullifier},
		{"depositAmount", in.DepositAmount, &c.DepositAmount},
	}
	for _, sc := range scalars {
		v, err := parseSignal(sc.s)
		if err != nil {
			return nil, fmt.Errorf("zkproof: signal %s: %w", sc.name, err)
		}
		*sc.dst = v
	}
	if len(in.PathElements) != merkle.Height || len(in.PathIndices) != merkle.Height {
		return nil, fmt.Errorf("zkproof: path length %d/%d, want %d",
			len(in.PathElements), len(in.PathIndices), merkle.Height)
	}
	// Commitment is an output signal: the prover computes it from the
	// private inputs and the circuit constrains it to match
	secret, _ := parseSignal(in.Secret)
	nullifier, _ := parseSignal(in.Nullifier)
	amount, _ := parseSignal(in.DepositAmount)
	c.Commitment = hasher.Hash(nullifier, secret, amount)

	for i := 0; i < merkle.Height; i++ {
		v, err := parseSignal(in.PathElements[i])
		if err != nil {
			return nil, fmt.Errorf("zkproof: pathElements[%d]: %w", i, err)
		}
		c.PathElements[i] = v
		c.PathIndices[i] = in.PathIndices[i]
	}
	return &c, nil
}

func parseSignal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("not a decimal numeral: %q", s)
	}
	return v, nil
}
