// Package claim sweeps ERC-20 funds out of a derived stealth address. The
// stealth address has no persistent wallet context, so everything is a
// direct JSON-RPC call and the transaction is assembled and signed by
// hand: a legacy (pre-EIP-1559) RLP-encoded transaction with EIP-155
// replay protection.
package claim

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// legacyTx is the minimal transaction record the sweeper emits. The codec
// below is a pure function of this record; signing happens elsewhere.
type legacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
}

// sigHash is the EIP-155 signing digest:
// keccak256(rlp(nonce, gasPrice, gas, to, value, data, chainId, 0, 0)).
func (tx *legacyTx) sigHash(chainID *big.Int) (common.Hash, error) {
	enc, err := rlp.EncodeToBytes([]interface{}{
		tx.Nonce, tx.GasPrice, tx.Gas, tx.To, tx.Value, tx.Data,
		chainID, uint(0), uint(0),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("claim: encode sighash payload: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

// encodeSigned folds a 65-byte [R || S || recovery] signature into the
// final raw transaction, with v = chainId*2 + 35 + recoveryBit.
func (tx *legacyTx) encodeSigned(chainID *big.Int, sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("claim: signature length %d, want 65", len(sig))
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	v := new(big.Int).Mul(chainID, big.NewInt(2))
	v.Add(v, big.NewInt(35+int64(sig[64])))

	enc, err := rlp.EncodeToBytes([]interface{}{
		tx.Nonce, tx.GasPrice, tx.Gas, tx.To, tx.Value, tx.Data,
		v, r, s,
	})
	if err != nil {
		return nil, fmt.Errorf("claim: encode signed tx: %w", err)
	}
	return enc, nil
}

// sign produces the raw, broadcastable transaction bytes.
func (tx *legacyTx) sign(chainID *big.Int, key *ecdsa.PrivateKey) ([]byte, error) {
	h, err := tx.sigHash(chainID)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(h[:], key)
	if err != nil {
		return nil, fmt.Errorf("claim: sign: %w", err)
	}
	return tx.encodeSigned(chainID, sig)
}
