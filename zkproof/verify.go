package zkproof

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"
)

// VerifyLocally checks a proof against the verifying key and the eight
// public signals, without touching the chain. A malformed proof or signal
// vector is an error; a well-formed proof that simply does not verify
// returns false.
func VerifyLocally(vk groth16.VerifyingKey, proof *Proof, publicSignals []string) (bool, error) {
	p, err := proof.native()
	if err != nil {
		return false, err
	}
	if len(publicSignals) != 8 {
		return false, fmt.Errorf("zkproof: expected 8 public signals, got %d", len(publicSignals))
	}
	var assignment SwapCircuit
	dsts := []*frontend.Variable{
		&assignment.MerkleRoot, &assignment.NullifierHash,
		&assignment.Recipient, &assignment.Relayer,
		&assignment.RelayerFee, &assignment.SwapAmountOut,
		&assignment.DepositAmount, &assignment.Commitment,
	}
	for i, dst := range dsts {
		v, err := parseSignal(publicSignals[i])
		if err != nil {
			return false, fmt.Errorf("zkproof: public signal %d: %w", i, err)
		}
		*dst = v
	}
	pubWtn, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("zkproof: public witness: %w", err)
	}
	if err := groth16.Verify(p, vk, pubWtn); err != nil {
		return false, nil
	}
	return true, nil
}

// native rebuilds the backend proof object from the decimal point
// coordinates.
func (proof *Proof) native() (*groth16bn254.Proof, error) {
	var p groth16bn254.Proof
	coords := []struct {
		name string
		s    string
		set  func(string) error
	}{
		{"pi_a[0]", proof.PiA[0], setter(&p.Ar.X)},
		{"pi_a[1]", proof.PiA[1], setter(&p.Ar.Y)},
		{"pi_b[0][0]", proof.PiB[0][0], setter(&p.Bs.X.A0)},
		{"pi_b[0][1]", proof.PiB[0][1], setter(&p.Bs.X.A1)},
		{"pi_b[1][0]", proof.PiB[1][0], setter(&p.Bs.Y.A0)},
		{"pi_b[1][1]", proof.PiB[1][1], setter(&p.Bs.Y.A1)},
		{"pi_c[0]", proof.PiC[0], setter(&p.Krs.X)},
		{"pi_c[1]", proof.PiC[1], setter(&p.Krs.Y)},
	}
	for _, c := range coords {
		if err := c.set(c.s); err != nil {
			return nil, fmt.Errorf("zkproof: proof point %s: %w", c.name, err)
		}
	}
	return &p, nil
}

func setter(e *fp.Element) func(string) error {
	return func(s string) error {
		_, err := e.SetString(s)
		return err
	}
}
