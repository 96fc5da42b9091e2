package worker

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

// fakeConfigStore is a minimal in-memory store.ConfigStore for exercising
// the worker loop without a database.
type fakeConfigStore struct {
	indexer domain.Indexer
	network domain.Network
	tokens  []domain.Token

	lastBlockCalls []uint64
}

func (f *fakeConfigStore) Indexer(ctx context.Context, name string) (domain.Indexer, error) {
	return f.indexer, nil
}

func (f *fakeConfigStore) Network(ctx context.Context, id int64) (domain.Network, error) {
	return f.network, nil
}

func (f *fakeConfigStore) Tokens(ctx context.Context, ids []int64) ([]domain.Token, error) {
	return f.tokens, nil
}

func (f *fakeConfigStore) UpdateLastBlock(ctx context.Context, indexerID int64, lastBlock uint64) error {
	f.lastBlockCalls = append(f.lastBlockCalls, lastBlock)
	f.indexer.LastBlock = lastBlock
	return nil
}

func (f *fakeConfigStore) SetStatus(ctx context.Context, indexerID int64, status domain.IndexerStatus) error {
	f.indexer.Status = status
	return nil
}

// fakeClient is a minimal rpcclient.Client; only LatestBlock is exercised
// by the boundary test below.
type fakeClient struct {
	latest    uint64
	latestErr error
}

func (f *fakeClient) LatestBlock(ctx context.Context) (uint64, error) { return f.latest, f.latestErr }
func (f *fakeClient) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	return nil, nil
}
func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, nil
}
func (f *fakeClient) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
func (f *fakeClient) NewFilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}
func (f *fakeClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return nil, nil
}
func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return nil, nil
}
func (f *fakeClient) Close() {}

type fakePersistence struct{}

func (fakePersistence) SaveTransfer(ctx context.Context, tokenID, fetchedBy int64, record transfer.Record) error {
	return nil
}
func (fakePersistence) UpsertBalance(ctx context.Context, row domain.TokenBalance) error { return nil }
func (fakePersistence) InsertEnumerableTokenID(ctx context.Context, row domain.TokenBalance) error {
	return nil
}
func (fakePersistence) DeleteEnumerableTokenID(ctx context.Context, tokenID int64, holder string, id *big.Int) error {
	return nil
}
func (fakePersistence) CurrentAmount(ctx context.Context, tokenID int64, holder string) (*big.Int, bool, error) {
	return nil, false, nil
}
func (fakePersistence) CurrentTokenIDs(ctx context.Context, tokenID int64, holder string) ([]*big.Int, error) {
	return nil, nil
}
func (fakePersistence) DistinctParticipants(ctx context.Context, tokenID int64) ([]string, error) {
	return nil, nil
}

// Boundary behavior: from_block == to_block performs no fetcher calls and
// reports longSleep=true.
func TestTransferIndexer_Cycle_FromEqualsToNoOpsAndSleepsLong(t *testing.T) {
	configStore := &fakeConfigStore{
		indexer: domain.Indexer{
			ID: 1, Name: "eth-usdc-recipient", NetworkID: 1,
			Type: domain.IndexerTransfer, Strategy: domain.StrategyTokenScan,
			LastBlock: 100, ShortSleepSeconds: 1, LongSleepSeconds: 10,
		},
		network: domain.Network{ChainID: 1, MaxStep: 10, Type: domain.NetworkFilterable},
	}
	client := &fakeClient{latest: 100}

	w, err := NewTransferIndexer(context.Background(), configStore, fakePersistence{}, client, configStore.indexer, zap.NewNop())
	require.NoError(t, err)

	longSleep, err := w.cycle(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, longSleep)
	assert.Empty(t, configStore.lastBlockCalls, "watermark must not move when from == to")
}

func TestTransferIndexer_Cycle_AdvancesWatermarkWhenBehind(t *testing.T) {
	configStore := &fakeConfigStore{
		indexer: domain.Indexer{
			ID: 1, Name: "eth-usdc-scan", NetworkID: 1,
			Type: domain.IndexerTransfer, Strategy: domain.StrategyTokenScan,
			LastBlock: 100, ShortSleepSeconds: 1, LongSleepSeconds: 10,
		},
		network: domain.Network{ChainID: 1, MaxStep: 10, Type: domain.NetworkFilterable},
		tokens: []domain.Token{{
			ID: 1, Name: "usdc", Address: &tokenAddress, NetworkID: 1,
			Type: domain.TokenERC20, Strategy: domain.StrategyEventBasedTransfer,
		}},
	}
	client := &fakeClient{latest: 200}

	w, err := NewTransferIndexer(context.Background(), configStore, fakePersistence{}, client, configStore.indexer, zap.NewNop())
	require.NoError(t, err)

	longSleep, err := w.cycle(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, longSleep)
	// from=100, to=min(100+MaxStep, 200)=110; the fetcher returns no logs,
	// so the watermark advances to 110.
	assert.Equal(t, []uint64{110}, configStore.lastBlockCalls)
}

var tokenAddress = "0x1111111111111111111111111111111111111111"
