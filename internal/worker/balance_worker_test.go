package worker

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/balance"
	"github.com/csic-platform/evm-indexer/internal/domain"
)

type recordingPersistence struct {
	fakePersistence
	upserts []domain.TokenBalance
	inserts []domain.TokenBalance
	deletes []*big.Int
}

func (r *recordingPersistence) UpsertBalance(ctx context.Context, row domain.TokenBalance) error {
	r.upserts = append(r.upserts, row)
	return nil
}

func (r *recordingPersistence) InsertEnumerableTokenID(ctx context.Context, row domain.TokenBalance) error {
	r.inserts = append(r.inserts, row)
	return nil
}

func (r *recordingPersistence) DeleteEnumerableTokenID(ctx context.Context, tokenID int64, holder string, id *big.Int) error {
	r.deletes = append(r.deletes, id)
	return nil
}

type fakeCaller struct {
	rows []domain.TokenBalance
	err  error
}

func (f fakeCaller) GetBalance(ctx context.Context, holder string) ([]domain.TokenBalance, error) {
	return f.rows, f.err
}

type fakeEnumerableDiffer struct {
	deltas []balance.Delta
	err    error
}

func (f fakeEnumerableDiffer) Diff(ctx context.Context, holder string) ([]balance.Delta, error) {
	return f.deltas, f.err
}

func TestBalanceIndexer_ApplyUpsert_PersistsEachRow(t *testing.T) {
	rp := &recordingPersistence{}
	w := &BalanceIndexer{indexer: domain.Indexer{Name: "native-watch"}, persistence: rp, logger: zap.NewNop()}

	caller := fakeCaller{rows: []domain.TokenBalance{{TokenID: 1, Holder: "0xabc", Amount: big.NewInt(42)}}}
	w.applyUpsert(context.Background(), domain.Token{}, caller, "0xabc")

	require.Len(t, rp.upserts, 1)
	assert.Equal(t, big.NewInt(42), rp.upserts[0].Amount)
}

func TestBalanceIndexer_ApplyUpsert_NoRowsOnFailureOrNoChange(t *testing.T) {
	rp := &recordingPersistence{}
	w := &BalanceIndexer{indexer: domain.Indexer{Name: "native-watch"}, persistence: rp, logger: zap.NewNop()}

	w.applyUpsert(context.Background(), domain.Token{}, fakeCaller{rows: nil}, "0xabc")
	w.applyUpsert(context.Background(), domain.Token{}, fakeCaller{err: errors.New("rpc unavailable")}, "0xabc")
	assert.Empty(t, rp.upserts)
}

// S6 — enumerable reconciliation: delta routing sends removals to
// DeleteEnumerableTokenID and additions to InsertEnumerableTokenID.
func TestBalanceIndexer_ApplyEnumerableDiff_RoutesAddAndRemove(t *testing.T) {
	rp := &recordingPersistence{}
	w := &BalanceIndexer{indexer: domain.Indexer{Name: "nft-watch"}, persistence: rp, logger: zap.NewNop()}

	differ := fakeEnumerableDiffer{deltas: []balance.Delta{
		{ToAdd: false, Row: domain.TokenBalance{TokenID: 1, Holder: "0xabc", TokenIDRef: big.NewInt(1)}},
		{ToAdd: true, Row: domain.TokenBalance{TokenID: 1, Holder: "0xabc", TokenIDRef: big.NewInt(5)}},
	}}

	w.applyEnumerableDiff(context.Background(), domain.Token{}, differ, "0xabc")

	require.Len(t, rp.deletes, 1)
	assert.Equal(t, big.NewInt(1), rp.deletes[0])
	require.Len(t, rp.inserts, 1)
	assert.Equal(t, big.NewInt(5), rp.inserts[0].TokenIDRef)
}
