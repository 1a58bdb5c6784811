// Package scanner reads the on-chain announcement and deposit logs
// through a minimal chain-reader capability, so the core never depends on
// a concrete RPC client.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/veilswap/veilswap-go/stealth"
)

// SchemeID is the ERC-5564 scheme identifier for secp256k1 with view tags.
var SchemeID = big.NewInt(1)

// ErrLogFormat reports an event payload that does not decode to its ABI.
var ErrLogFormat = errors.New("scanner: malformed log payload")

// ChainReader is the capability the scanner needs from the host's RPC
// client. *ethclient.Client satisfies it.
type ChainReader interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var (
	announcementTopic = crypto.Keccak256Hash([]byte("Announcement(uint256,address,address,bytes,bytes)"))
	depositTopic      = crypto.Keccak256Hash([]byte("Deposit(bytes32,uint32,uint256)"))

	announcementArgs abi.Arguments
)

func init() {
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	announcementArgs = abi.Arguments{{Type: bytesTy}, {Type: bytesTy}}
}

// metadata layout: viewTag(1) || token(20) || amount(32)
const metadataLen = 1 + common.AddressLength + 32

// Payment is an announcement that belongs to the scanning identity.
type Payment struct {
	StealthAddress  common.Address
	EphemeralPubKey []byte
	ViewTag         byte
	Token           common.Address
	Amount          *uint256.Int
	BlockNumber     uint64
	TxHash          common.Hash
	LogIndex        uint
}

// ScanAnnouncements fetches the announcer's logs between fromBlock and
// toBlock (inclusive) and returns the entries owned by the viewing key.
// Malformed or foreign announcements are skipped; a failed log fetch is a
// hard error since silently returning an empty result would look like "no
// payments".
func ScanAnnouncements(ctx context.Context, reader ChainReader, announcer common.Address,
	viewingPriv *btcec.PrivateKey, spendingPub *btcec.PublicKey, fromBlock, toBlock uint64) ([]Payment, error) {

	logs, err := reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{announcer},
		Topics: [][]common.Hash{
			{announcementTopic},
			{common.BigToHash(SchemeID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: fetch announcements: %w", err)
	}

	var matches []Payment
	for _, lg := range logs {
		p, ok := decodeAnnouncement(lg)
		if !ok {
			continue
		}
		if !stealth.CheckAddress(p.EphemeralPubKey, viewingPriv, spendingPub, p.StealthAddress, &p.ViewTag) {
			continue
		}
		matches = append(matches, *p)
	}
	return matches, nil
}

// decodeAnnouncement parses one announcement log. The boolean makes the
// skip-malformed policy explicit: false means "discard and keep
// scanning", never an abort.
func decodeAnnouncement(lg types.Log) (*Payment, bool) {
	if len(lg.Topics) != 4 {
		return nil, false
	}
	vals, err := announcementArgs.Unpack(lg.Data)
	if err != nil {
		return nil, false
	}
	ephemeral, ok := vals[0].([]byte)
	if !ok || len(ephemeral) == 0 {
		return nil, false
	}
	metadata, ok := vals[1].([]byte)
	if !ok || len(metadata) < metadataLen {
		return nil, false
	}
	amount := new(uint256.Int).SetBytes(metadata[1+common.AddressLength : metadataLen])
	return &Payment{
		StealthAddress:  common.BytesToAddress(lg.Topics[2].Bytes()),
		EphemeralPubKey: ephemeral,
		ViewTag:         metadata[0],
		Token:           common.BytesToAddress(metadata[1 : 1+common.AddressLength]),
		Amount:          amount,
		BlockNumber:     lg.BlockNumber,
		TxHash:          lg.TxHash,
		LogIndex:        lg.Index,
	}, true
}
