package zkproof

import (
	"github.com/consensys/gnark/frontend"
	stdhash "github.com/consensys/gnark/std/hash"
	permposeidon2 "github.com/consensys/gnark/std/permutation/poseidon2"

	"github.com/veilswap/veilswap-go/merkle"
)

// maxRelayerFee bounds the fee in basis points; the circuit rejects
// anything at or above it.
const maxRelayerFee = 1000

// In-circuit Poseidon2 parameters. These must equal the native BN254
// defaults (gnark-crypto poseidon2.GetDefaultParameters: width 2, 6 full
// and 50 partial rounds) or no proof over a natively computed commitment
// would ever verify. gnark's default-parameter constructor has no BN254
// branch, so the permutation is instantiated explicitly.
const (
	poseidonWidth         = 2
	poseidonFullRounds    = 6
	poseidonPartialRounds = 50
)

// SwapCircuit proves knowledge of an unspent deposit in the commitment
// tree and binds the withdrawal to its public routing parameters. The
// public ordering below is the exact signal ordering the on-chain
// verifier consumes.
type SwapCircuit struct {
	MerkleRoot    frontend.Variable `gnark:",public"`
	NullifierHash frontend.Variable `gnark:",public"`
	Recipient     frontend.Variable `gnark:",public"`
	Relayer       frontend.Variable `gnark:",public"`
	RelayerFee    frontend.Variable `gnark:",public"`
	SwapAmountOut frontend.Variable `gnark:",public"`
	DepositAmount frontend.Variable `gnark:",public"`
	Commitment    frontend.Variable `gnark:",public"`

	Secret       frontend.Variable
	Nullifier    frontend.Variable
	PathElements [merkle.Height]frontend.Variable
	PathIndices  [merkle.Height]frontend.Variable
}

func (c *SwapCircuit) Define(api frontend.API) error {
	perm, err := permposeidon2.NewPoseidon2FromParameters(api, poseidonWidth, poseidonFullRounds, poseidonPartialRounds)
	if err != nil {
		return err
	}
	hasher := stdhash.NewMerkleDamgardHasher(api, perm, 0)

	// commitment binds nullifier, secret and amount
	hasher.Write(c.Nullifier, c.Secret, c.DepositAmount)
	api.AssertIsEqual(hasher.Sum(), c.Commitment)

	hasher.Reset()
	hasher.Write(c.Nullifier)
	api.AssertIsEqual(hasher.Sum(), c.NullifierHash)

	// fold the commitment up the tree; PathIndices[i] == 1 puts the
	// running node on the right
	cur := c.Commitment
	for i := 0; i < merkle.Height; i++ {
		api.AssertIsBoolean(c.PathIndices[i])
		left := api.Select(c.PathIndices[i], c.PathElements[i], cur)
		right := api.Select(c.PathIndices[i], cur, c.PathElements[i])
		hasher.Reset()
		hasher.Write(left, right)
		cur = hasher.Sum()
	}
	api.AssertIsEqual(cur, c.MerkleRoot)

	api.AssertIsDifferent(c.Recipient, 0)
	api.AssertIsLessOrEqual(c.RelayerFee, maxRelayerFee-1)
	// no relayer, no fee
	api.AssertIsEqual(api.Mul(api.IsZero(c.Relayer), c.RelayerFee), 0)
	return nil
}
