package scanner

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/veilswap/veilswap-go/note"
)

// Deposit is one confirmed pool deposit.
type Deposit struct {
	Commitment  *big.Int
	LeafIndex   uint32
	Timestamp   *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// FetchDeposits reads the pool's Deposit events between fromBlock and
// toBlock. Unlike announcement scanning this is not best-effort: a
// malformed payload here means the pool contract and this client
// disagree about the ABI, which must surface.
func FetchDeposits(ctx context.Context, reader ChainReader, pool common.Address, fromBlock, toBlock uint64) ([]Deposit, error) {
	logs, err := reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{pool},
		Topics:    [][]common.Hash{{depositTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: fetch deposits: %w", err)
	}

	deposits := make([]Deposit, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) != 2 {
			return nil, fmt.Errorf("%w: deposit log with %d topics", ErrLogFormat, len(lg.Topics))
		}
		if len(lg.Data) < 64 {
			return nil, fmt.Errorf("%w: deposit payload %d bytes", ErrLogFormat, len(lg.Data))
		}
		leafIndex := new(big.Int).SetBytes(lg.Data[:32])
		if !leafIndex.IsUint64() || leafIndex.Uint64() > 1<<32-1 {
			return nil, fmt.Errorf("%w: leaf index out of uint32", ErrLogFormat)
		}
		deposits = append(deposits, Deposit{
			Commitment:  new(big.Int).SetBytes(lg.Topics[1].Bytes()),
			LeafIndex:   uint32(leafIndex.Uint64()),
			Timestamp:   new(big.Int).SetBytes(lg.Data[32:64]),
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
		})
	}
	return deposits, nil
}

// RestoreLeafIndex assigns the note's tree position from the deposit list.
// The wire format deliberately omits the index, so a restored note always
// passes through here (or an equivalent re-scan) before proving.
func RestoreLeafIndex(n *note.DepositNote, deposits []Deposit) error {
	for _, d := range deposits {
		if d.Commitment.Cmp(n.Commitment) == 0 {
			return n.SetLeafIndex(d.LeafIndex)
		}
	}
	return fmt.Errorf("%w: commitment %s not found in deposit log", note.ErrNoLeafIndex, note.FormatCommitment(n.Commitment))
}
