package strategy

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

const addrA = "0x1111111111111111111111111111111111111111"
const addrB = "0x2222222222222222222222222222222222222222"

// idempotentStore mimics the unique-constraint skip behaviour of
// store.Postgres.SaveTransfer: the same tx_hash/recipient pair persists
// once no matter how many times Start is invoked with it.
type idempotentStore struct {
	seen map[string]bool
	rows []transfer.Record
}

func newIdempotentStore() *idempotentStore {
	return &idempotentStore{seen: map[string]bool{}}
}

func (s *idempotentStore) persist(ctx context.Context, token domain.Token, record transfer.Record) error {
	key := record.(transfer.Fungible).TxHash + "|" + record.(transfer.Fungible).Recipient
	if s.seen[key] {
		return nil
	}
	s.seen[key] = true
	s.rows = append(s.rows, record)
	return nil
}

// S5 — recipient strategy filter with idempotent re-run.
func TestFilterStrategy_RecipientFilterAndIdempotence(t *testing.T) {
	indexer := domain.Indexer{
		Name:     "recipient-indexer",
		Type:     domain.IndexerTransfer,
		Strategy: domain.StrategyRecipient,
		StrategyParams: map[string]any{
			"recipient": addrA,
		},
	}
	strat, err := NewTransfer(indexer)
	require.NoError(t, err)

	records := []transfer.Record{
		transfer.Fungible{Sender: "0xs1", Recipient: addrA, Amount: big.NewInt(1), TxHash: "0xaaa"},
		transfer.Fungible{Sender: "0xs2", Recipient: addrB, Amount: big.NewInt(2), TxHash: "0xbbb"},
		transfer.Fungible{Sender: "0xs3", Recipient: addrA, Amount: big.NewInt(3), TxHash: "0xccc"},
	}
	token := domain.Token{ID: 1, Type: domain.TokenERC20, Strategy: domain.StrategyEventBasedTransfer}

	store := newIdempotentStore()
	require.NoError(t, strat.Start(context.Background(), token, records, store.persist))
	assert.Len(t, store.rows, 2)

	// Re-running with the same inputs must persist zero new rows.
	require.NoError(t, strat.Start(context.Background(), token, records, store.persist))
	assert.Len(t, store.rows, 2)
}

func TestFilterStrategy_SenderFilter(t *testing.T) {
	indexer := domain.Indexer{
		Name:           "sender-indexer",
		Type:           domain.IndexerTransfer,
		Strategy:       domain.StrategySender,
		StrategyParams: map[string]any{"sender": addrA},
	}
	strat, err := NewTransfer(indexer)
	require.NoError(t, err)

	records := []transfer.Record{
		transfer.Fungible{Sender: addrA, Recipient: addrB, Amount: big.NewInt(1), TxHash: "0xaaa"},
		transfer.Fungible{Sender: addrB, Recipient: addrA, Amount: big.NewInt(2), TxHash: "0xbbb"},
	}
	token := domain.Token{ID: 1}

	store := newIdempotentStore()
	require.NoError(t, strat.Start(context.Background(), token, records, store.persist))
	require.Len(t, store.rows, 1)
	assert.Equal(t, addrA, store.rows[0].(transfer.Fungible).Sender)
}

func TestFilterStrategy_TokenScanPersistsEverything(t *testing.T) {
	indexer := domain.Indexer{Name: "scan", Type: domain.IndexerTransfer, Strategy: domain.StrategyTokenScan}
	strat, err := NewTransfer(indexer)
	require.NoError(t, err)

	records := []transfer.Record{
		transfer.Fungible{Sender: addrA, Recipient: addrB, Amount: big.NewInt(1), TxHash: "0xaaa"},
		transfer.Fungible{Sender: addrB, Recipient: addrA, Amount: big.NewInt(2), TxHash: "0xbbb"},
	}
	store := newIdempotentStore()
	require.NoError(t, strat.Start(context.Background(), domain.Token{}, records, store.persist))
	assert.Len(t, store.rows, 2)
}

func TestNewTransfer_MissingRequiredParam(t *testing.T) {
	_, err := NewTransfer(domain.Indexer{Strategy: domain.StrategyRecipient})
	assert.Error(t, err)
}

func TestNewTransfer_UnknownStrategy(t *testing.T) {
	_, err := NewTransfer(domain.Indexer{Strategy: domain.StrategySpecifiedHolders})
	assert.Error(t, err)
}

type fakeParticipants struct {
	holders []string
	err     error
}

func (f fakeParticipants) DistinctParticipants(ctx context.Context, tokenID int64) ([]string, error) {
	return f.holders, f.err
}

func TestNewBalance_SpecifiedHolders(t *testing.T) {
	indexer := domain.Indexer{
		Strategy:       domain.StrategySpecifiedHolders,
		StrategyParams: map[string]any{"holders": []any{addrA, addrB}},
	}
	strat, err := NewBalance(indexer, nil)
	require.NoError(t, err)

	holders, err := strat.Start(context.Background(), domain.Token{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		common.HexToAddress(addrA).Hex(), common.HexToAddress(addrB).Hex(),
	}, holders)
}

func TestNewBalance_TransfersParticipants(t *testing.T) {
	indexer := domain.Indexer{Strategy: domain.StrategyTransfersParticipants}
	strat, err := NewBalance(indexer, fakeParticipants{holders: []string{addrA}})
	require.NoError(t, err)

	holders, err := strat.Start(context.Background(), domain.Token{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{addrA}, holders)
}

func TestNewBalance_UnknownStrategy(t *testing.T) {
	_, err := NewBalance(domain.Indexer{Strategy: domain.StrategyRecipient}, nil)
	assert.Error(t, err)
}
