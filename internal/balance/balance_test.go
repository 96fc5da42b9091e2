package balance

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigs(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func ints(vals []*big.Int) []int64 {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = v.Int64()
	}
	return out
}

// S6 — holder reconciliation: stored {1,2,3}, current {2,3,5} diffs to
// toAdd={5}, toRemove={1}.
func TestDiffTokenIDs_S6_HolderReconciliation(t *testing.T) {
	stored := bigs(1, 2, 3)
	current := bigs(2, 3, 5)

	toAdd, toRemove := diffTokenIDs(stored, current)

	assert.Equal(t, []int64{5}, ints(toAdd))
	assert.Equal(t, []int64{1}, ints(toRemove))
}

func TestDiffTokenIDs_NoChange(t *testing.T) {
	stored := bigs(1, 2, 3)
	current := bigs(1, 2, 3)

	toAdd, toRemove := diffTokenIDs(stored, current)
	assert.Empty(t, toAdd)
	assert.Empty(t, toRemove)
}

func TestDiffTokenIDs_OnlyAdditions(t *testing.T) {
	toAdd, toRemove := diffTokenIDs(bigs(1), bigs(1, 2))
	assert.Equal(t, []int64{2}, ints(toAdd))
	assert.Empty(t, toRemove)
}

func TestDiffTokenIDs_OnlyRemovals(t *testing.T) {
	toAdd, toRemove := diffTokenIDs(bigs(1, 2), bigs(1))
	assert.Empty(t, toAdd)
	assert.Equal(t, []int64{2}, ints(toRemove))
}

type fakeReader struct {
	amount   *big.Int
	found    bool
	amountErr error
	tokenIDs []*big.Int
	idsErr   error
}

func (f fakeReader) CurrentAmount(ctx context.Context, tokenID int64, holder string) (*big.Int, bool, error) {
	return f.amount, f.found, f.amountErr
}

func (f fakeReader) CurrentTokenIDs(ctx context.Context, tokenID int64, holder string) ([]*big.Int, error) {
	return f.tokenIDs, f.idsErr
}

func TestUpsertIfChanged_NoPriorRow(t *testing.T) {
	reader := fakeReader{found: false}
	rows, err := upsertIfChanged(context.Background(), reader, 1, "0xabc", big.NewInt(100), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, big.NewInt(100), rows[0].Amount)
}

func TestUpsertIfChanged_UnchangedAmountSkipped(t *testing.T) {
	reader := fakeReader{found: true, amount: big.NewInt(100)}
	rows, err := upsertIfChanged(context.Background(), reader, 1, "0xabc", big.NewInt(100), 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpsertIfChanged_ChangedAmountPersisted(t *testing.T) {
	reader := fakeReader{found: true, amount: big.NewInt(100)}
	rows, err := upsertIfChanged(context.Background(), reader, 1, "0xabc", big.NewInt(150), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, big.NewInt(150), rows[0].Amount)
}
