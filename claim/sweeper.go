package claim

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// ErrInsufficientBalance reports an explicit sweep amount above the token
// balance, or an empty balance. Precondition failure; not retried.
var ErrInsufficientBalance = errors.New("claim: insufficient token balance")

// fallbackGasLimit is used when eth_estimateGas fails; enough for an
// ERC-20 transfer on every mainstream token implementation.
const fallbackGasLimit = 65000

// Caller is the narrow JSON-RPC capability the sweeper needs.
// *rpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// callMsg is the eth_call / eth_estimateGas parameter object.
type callMsg struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// Sweeper moves ERC-20 funds from a derived stealth address to a
// destination with a single signed transfer.
type Sweeper struct {
	caller Caller
	logger zerolog.Logger
}

func NewSweeper(caller Caller, logger zerolog.Logger) *Sweeper {
	return &Sweeper{caller: caller, logger: logger}
}

// Sweep reads the stealth address's token balance and submits a signed
// transfer to dest. A nil amount sweeps the full balance; an explicit
// amount above the balance fails with ErrInsufficientBalance.
func (s *Sweeper) Sweep(ctx context.Context, stealthPriv *btcec.PrivateKey, token, dest common.Address, amount *uint256.Int) (common.Hash, error) {
	key := stealthPriv.ToECDSA()
	// crypto.Sign compares the curve by instance identity, so the btcec
	// curve object must be relabelled with go-ethereum's S256 wrapper.
	key.Curve = crypto.S256()
	from := crypto.PubkeyToAddress(key.PublicKey)

	var chainIDHex hexutil.Big
	if err := s.caller.CallContext(ctx, &chainIDHex, "eth_chainId"); err != nil {
		return common.Hash{}, fmt.Errorf("claim: chain id: %w", err)
	}
	chainID := (*big.Int)(&chainIDHex)

	balance, err := s.tokenBalance(ctx, token, from)
	if err != nil {
		return common.Hash{}, err
	}
	if balance.IsZero() {
		return common.Hash{}, fmt.Errorf("%w: nothing to sweep at %s", ErrInsufficientBalance, from.Hex())
	}
	if amount == nil {
		amount = balance
	} else if amount.Gt(balance) {
		return common.Hash{}, fmt.Errorf("%w: want %s, have %s", ErrInsufficientBalance, amount.Dec(), balance.Dec())
	}

	var nonceHex hexutil.Uint64
	if err := s.caller.CallContext(ctx, &nonceHex, "eth_getTransactionCount", from, "pending"); err != nil {
		return common.Hash{}, fmt.Errorf("claim: nonce: %w", err)
	}
	var gasPriceHex hexutil.Big
	if err := s.caller.CallContext(ctx, &gasPriceHex, "eth_gasPrice"); err != nil {
		return common.Hash{}, fmt.Errorf("claim: gas price: %w", err)
	}

	data := transferData(dest, amount)
	gas := s.estimateGas(ctx, callMsg{From: from, To: token, Data: data})

	tx := &legacyTx{
		Nonce:    uint64(nonceHex),
		GasPrice: (*big.Int)(&gasPriceHex),
		Gas:      gas,
		To:       token,
		Value:    new(big.Int),
		Data:     data,
	}
	raw, err := tx.sign(chainID, key)
	if err != nil {
		return common.Hash{}, err
	}

	var txHash common.Hash
	if err := s.caller.CallContext(ctx, &txHash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, fmt.Errorf("claim: send raw transaction: %w", err)
	}
	s.logger.Info().
		Str("from", from.Hex()).
		Str("token", token.Hex()).
		Str("dest", dest.Hex()).
		Str("amount", amount.Dec()).
		Str("tx", txHash.Hex()).
		Msg("sweep submitted")
	return txHash, nil
}

// tokenBalance reads balanceOf(owner) with a raw eth_call.
func (s *Sweeper) tokenBalance(ctx context.Context, token, owner common.Address) (*uint256.Int, error) {
	var result hexutil.Bytes
	err := s.caller.CallContext(ctx, &result, "eth_call",
		callMsg{From: owner, To: token, Data: balanceOfData(owner)}, "latest")
	if err != nil {
		return nil, fmt.Errorf("claim: balanceOf: %w", err)
	}
	if len(result) > 32 {
		result = result[len(result)-32:]
	}
	return new(uint256.Int).SetBytes(result), nil
}

// estimateGas asks the node for a gas estimate and falls back to a fixed
// limit when estimation fails.
func (s *Sweeper) estimateGas(ctx context.Context, msg callMsg) uint64 {
	var gasHex hexutil.Uint64
	if err := s.caller.CallContext(ctx, &gasHex, "eth_estimateGas", msg); err != nil {
		s.logger.Warn().Err(err).Uint64("fallback", fallbackGasLimit).Msg("gas estimation failed")
		return fallbackGasLimit
	}
	return uint64(gasHex)
}
