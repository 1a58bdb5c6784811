package scanner

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/veilswap/veilswap-go/stealth"
)

var (
	testAnnouncer = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	testPool      = common.HexToAddress("0x0000000000000000000000000000000000900001")
	testToken     = common.HexToAddress("0x00000000000000000000000000000000000f00d1")
	testCaller    = common.HexToAddress("0x0000000000000000000000000000000000caller")
)

// fakeReader serves canned logs and records the queries it saw.
type fakeReader struct {
	mu      sync.Mutex
	logs    []types.Log
	head    uint64
	err     error
	queries []ethereum.FilterQuery
}

func (f *fakeReader) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.logs, nil
}

func (f *fakeReader) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func announcementLog(t *testing.T, addr *stealth.Address, token common.Address, amount *uint256.Int, block uint64) types.Log {
	t.Helper()
	metadata := make([]byte, 0, metadataLen)
	metadata = append(metadata, addr.ViewTag)
	metadata = append(metadata, token.Bytes()...)
	amountWord := amount.Bytes32()
	metadata = append(metadata, amountWord[:]...)

	data, err := announcementArgs.Pack(addr.EphemeralPubKey, metadata)
	require.NoError(t, err)

	return types.Log{
		Address: testAnnouncer,
		Topics: []common.Hash{
			announcementTopic,
			common.BigToHash(SchemeID),
			common.BytesToHash(addr.StealthAddress.Bytes()),
			common.BytesToHash(testCaller.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xbeef"),
		Index:       3,
	}
}

func TestScanAnnouncementsMatchesOwnPayment(t *testing.T) {
	keys, err := stealth.GenerateKeys()
	require.NoError(t, err)
	addr, err := stealth.GenerateAddress(keys.MetaAddress())
	require.NoError(t, err)

	amount := uint256.NewInt(5_000_000)
	reader := &fakeReader{logs: []types.Log{announcementLog(t, addr, testToken, amount, 120)}}

	payments, err := ScanAnnouncements(context.Background(), reader, testAnnouncer,
		keys.ViewingPrivateKey, keys.SpendingPublicKey, 100, 200)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	p := payments[0]
	require.Equal(t, addr.StealthAddress, p.StealthAddress)
	require.Equal(t, addr.EphemeralPubKey, p.EphemeralPubKey)
	require.Equal(t, addr.ViewTag, p.ViewTag)
	require.Equal(t, testToken, p.Token)
	require.Zero(t, amount.Cmp(p.Amount))
	require.Equal(t, uint64(120), p.BlockNumber)
	require.Equal(t, uint(3), p.LogIndex)

	// the filter asks the node for exactly the announcer's scheme-1 logs
	require.Len(t, reader.queries, 1)
	q := reader.queries[0]
	require.Equal(t, []common.Address{testAnnouncer}, q.Addresses)
	require.Equal(t, big.NewInt(100), q.FromBlock)
	require.Equal(t, big.NewInt(200), q.ToBlock)
	require.Equal(t, announcementTopic, q.Topics[0][0])
	require.Equal(t, common.BigToHash(SchemeID), q.Topics[1][0])
}

func TestScanAnnouncementsSkipsForeign(t *testing.T) {
	keys, err := stealth.GenerateKeys()
	require.NoError(t, err)
	stranger, err := stealth.GenerateKeys()
	require.NoError(t, err)
	addr, err := stealth.GenerateAddress(stranger.MetaAddress())
	require.NoError(t, err)

	reader := &fakeReader{logs: []types.Log{announcementLog(t, addr, testToken, uint256.NewInt(1), 10)}}
	payments, err := ScanAnnouncements(context.Background(), reader, testAnnouncer,
		keys.ViewingPrivateKey, keys.SpendingPublicKey, 0, 100)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestScanAnnouncementsSkipsMalformed(t *testing.T) {
	keys, err := stealth.GenerateKeys()
	require.NoError(t, err)
	addr, err := stealth.GenerateAddress(keys.MetaAddress())
	require.NoError(t, err)
	good := announcementLog(t, addr, testToken, uint256.NewInt(7), 42)

	truncated := good
	truncated.Data = good.Data[:16]

	threeTopics := good
	threeTopics.Topics = good.Topics[:3]

	shortMetadata, err := announcementArgs.Pack(addr.EphemeralPubKey, []byte{addr.ViewTag, 0x01})
	require.NoError(t, err)
	badMetadata := good
	badMetadata.Data = shortMetadata

	reader := &fakeReader{logs: []types.Log{truncated, threeTopics, badMetadata, good}}
	payments, err := ScanAnnouncements(context.Background(), reader, testAnnouncer,
		keys.ViewingPrivateKey, keys.SpendingPublicKey, 0, 100)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, uint64(42), payments[0].BlockNumber)
}

func TestScanAnnouncementsFetchError(t *testing.T) {
	keys, err := stealth.GenerateKeys()
	require.NoError(t, err)
	boom := errors.New("rpc down")
	reader := &fakeReader{err: boom}
	_, err = ScanAnnouncements(context.Background(), reader, testAnnouncer,
		keys.ViewingPrivateKey, keys.SpendingPublicKey, 0, 100)
	require.ErrorIs(t, err, boom)
}

func depositLog(commitment *big.Int, leafIndex uint32, timestamp int64, block uint64) types.Log {
	data := make([]byte, 64)
	big.NewInt(int64(leafIndex)).FillBytes(data[:32])
	big.NewInt(timestamp).FillBytes(data[32:64])
	return types.Log{
		Address:     testPool,
		Topics:      []common.Hash{depositTopic, common.BigToHash(commitment)},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xdada"),
	}
}

func TestFetchDeposits(t *testing.T) {
	c1 := big.NewInt(111111)
	c2 := big.NewInt(222222)
	reader := &fakeReader{logs: []types.Log{
		depositLog(c1, 0, 1700000000, 50),
		depositLog(c2, 1, 1700000600, 51),
	}}

	deposits, err := FetchDeposits(context.Background(), reader, testPool, 0, 100)
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	require.Zero(t, c1.Cmp(deposits[0].Commitment))
	require.Equal(t, uint32(0), deposits[0].LeafIndex)
	require.Equal(t, int64(1700000000), deposits[0].Timestamp.Int64())
	require.Equal(t, uint32(1), deposits[1].LeafIndex)

	require.Equal(t, []common.Address{testPool}, reader.queries[0].Addresses)
	require.Equal(t, depositTopic, reader.queries[0].Topics[0][0])
}

func TestFetchDepositsSurfacesBadPayload(t *testing.T) {
	short := depositLog(big.NewInt(1), 0, 0, 1)
	short.Data = short.Data[:31]
	reader := &fakeReader{logs: []types.Log{short}}
	_, err := FetchDeposits(context.Background(), reader, testPool, 0, 10)
	require.ErrorIs(t, err, ErrLogFormat)

	oneTopic := depositLog(big.NewInt(1), 0, 0, 1)
	oneTopic.Topics = oneTopic.Topics[:1]
	reader = &fakeReader{logs: []types.Log{oneTopic}}
	_, err = FetchDeposits(context.Background(), reader, testPool, 0, 10)
	require.ErrorIs(t, err, ErrLogFormat)

	huge := depositLog(big.NewInt(1), 0, 0, 1)
	huge.Data[0] = 0xff
	reader = &fakeReader{logs: []types.Log{huge}}
	_, err = FetchDeposits(context.Background(), reader, testPool, 0, 10)
	require.ErrorIs(t, err, ErrLogFormat)
}

func TestWatcherDeliversAndStops(t *testing.T) {
	keys, err := stealth.GenerateKeys()
	require.NoError(t, err)
	addr, err := stealth.GenerateAddress(keys.MetaAddress())
	require.NoError(t, err)

	reader := &fakeReader{
		logs: []types.Log{announcementLog(t, addr, testToken, uint256.NewInt(9), 5)},
		head: 10,
	}

	delivered := make(chan Payment, 16)
	w := WatchAnnouncements(reader, testAnnouncer,
		keys.ViewingPrivateKey, keys.SpendingPublicKey,
		0, 5*time.Millisecond, zerolog.Nop(),
		func(p Payment) { delivered <- p })

	select {
	case p := <-delivered:
		require.Equal(t, addr.StealthAddress, p.StealthAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never delivered the payment")
	}
	w.Stop()

	// the loop has exited; no further queries land after Stop returns
	reader.mu.Lock()
	seen := len(reader.queries)
	reader.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	reader.mu.Lock()
	require.Equal(t, seen, len(reader.queries))
	reader.mu.Unlock()
}
