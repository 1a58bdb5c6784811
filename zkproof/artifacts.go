package zkproof

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// ErrArtifactMissing reports an absent compiled-circuit or key file.
// Resolve by re-running Setup; retrying the proof does not help.
var ErrArtifactMissing = errors.New("zkproof: proving artifact missing")

// Config locates the compiled circuit and the groth16 key pair on disk.
type Config struct {
	CircuitPath      string
	ProvingKeyPath   string
	VerifyingKeyPath string
}

// DefaultConfig places the artifacts under dir with conventional names.
func DefaultConfig(dir string) Config {
	return Config{
		CircuitPath:      filepath.Join(dir, "swap.r1cs"),
		ProvingKeyPath:   filepath.Join(dir, "swap.pk"),
		VerifyingKeyPath: filepath.Join(dir, "swap.vk"),
	}
}

// Artifacts is a loaded prover/verifier state for the swap circuit.
type Artifacts struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
}

// Setup compiles the swap circuit, runs the groth16 setup and writes all
// three artifacts. Single-party setup; a production deployment replaces
// the key pair with a ceremony output of the same format.
func Setup(cfg Config) (*Artifacts, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &SwapCircuit{})
	if err != nil {
		return nil, fmt.Errorf("zkproof: compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("zkproof: groth16 setup: %w", err)
	}
	for _, w := range []struct {
		path string
		obj  io.WriterTo
	}{
		{cfg.CircuitPath, ccs},
		{cfg.ProvingKeyPath, pk},
		{cfg.VerifyingKeyPath, vk},
	} {
		if err := writeArtifact(w.path, w.obj); err != nil {
			return nil, err
		}
	}
	return &Artifacts{CCS: ccs, PK: pk, VK: vk}, nil
}

// Load reads previously written artifacts. A missing file is reported as
// ErrArtifactMissing.
func Load(cfg Config) (*Artifacts, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readArtifact(cfg.CircuitPath, ccs); err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readArtifact(cfg.ProvingKeyPath, pk); err != nil {
		return nil, err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(cfg.VerifyingKeyPath, vk); err != nil {
		return nil, err
	}
	return &Artifacts{CCS: ccs, PK: pk, VK: vk}, nil
}

func writeArtifact(path string, obj io.WriterTo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("zkproof: create artifact dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("zkproof: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := obj.WriteTo(f); err != nil {
		return fmt.Errorf("zkproof: write %s: %w", path, err)
	}
	return nil
}

func readArtifact(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return fmt.Errorf("zkproof: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := obj.ReadFrom(f); err != nil {
		return fmt.Errorf("zkproof: read %s: %w", path, err)
	}
	return nil
}
