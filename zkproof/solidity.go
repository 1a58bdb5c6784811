package zkproof

import (
	"fmt"
)

// ContractProof is the calldata shape the Solidity verifier takes:
// affine G1 points and the G2 point with its component pairs swapped
// relative to the prover's native output, plus the eight public signals.
type ContractProof struct {
	PA         [2]string    `json:"pA"`
	PB         [2][2]string `json:"pB"`
	PC         [2]string    `json:"pC"`
	PubSignals [8]string    `json:"pubSignals"`
}

// FormatForContract drops the projective coordinates and swaps each inner
// pair of pi_b. The pairing precompile reads the imaginary component
// first; submitting the native order fails verification on-chain even
// though the proof itself is valid. The transform is fixed, not
// configurable.
func FormatForContract(proof *Proof, publicSignals []string) (*ContractProof, error) {
	if len(publicSignals) != 8 {
		return nil, fmt.Errorf("zkproof: expected 8 public signals, got %d", len(publicSignals))
	}
	cp := &ContractProof{
		PA: [2]string{proof.PiA[0], proof.PiA[1]},
		PB: [2][2]string{
			{proof.PiB[0][1], proof.PiB[0][0]},
			{proof.PiB[1][1], proof.PiB[1][0]},
		},
		PC: [2]string{proof.PiC[0], proof.PiC[1]},
	}
	copy(cp.PubSignals[:], publicSignals)
	return cp, nil
}
