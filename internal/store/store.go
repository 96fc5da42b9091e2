// Package store implements the relational persistence ports from spec.md
// §4.6: idempotent transfer inserts keyed on tx_hash, upsert-if-changed
// balances, and the enumerable set-diff's explicit delete/insert pair.
package store

import (
	"context"
	"math/big"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

// ConfigStore reads the configuration rows an indexer process needs at
// startup and on every cycle reload (spec.md §4.7, §4.9).
type ConfigStore interface {
	Indexer(ctx context.Context, name string) (domain.Indexer, error)
	Network(ctx context.Context, id int64) (domain.Network, error)
	Tokens(ctx context.Context, ids []int64) ([]domain.Token, error)
	UpdateLastBlock(ctx context.Context, indexerID int64, lastBlock uint64) error
	SetStatus(ctx context.Context, indexerID int64, status domain.IndexerStatus) error
}

// Persistence is the write/read surface the strategies and balance callers
// use (spec.md §4.4, §4.6).
type Persistence interface {
	// SaveTransfer attaches tokenID and fetchedBy to record and inserts it,
	// skipping silently on a tx_hash conflict (errs.KindPersistenceConflict
	// is swallowed here, not returned).
	SaveTransfer(ctx context.Context, tokenID, fetchedBy int64, record transfer.Record) error

	// UpsertBalance writes row only if the stored amount differs; row.Amount
	// must be set and row.TokenIDRef nil (non-enumerable path).
	UpsertBalance(ctx context.Context, row domain.TokenBalance) error

	// InsertEnumerableTokenID and DeleteEnumerableTokenID implement the
	// enumerable balance caller's explicit diff writes; no update-in-place.
	InsertEnumerableTokenID(ctx context.Context, row domain.TokenBalance) error
	DeleteEnumerableTokenID(ctx context.Context, tokenID int64, holder string, id *big.Int) error

	// CurrentAmount and CurrentTokenIDs satisfy balance.Reader.
	CurrentAmount(ctx context.Context, tokenID int64, holder string) (*big.Int, bool, error)
	CurrentTokenIDs(ctx context.Context, tokenID int64, holder string) ([]*big.Int, error)

	// DistinctParticipants satisfies strategy.ParticipantsReader.
	DistinctParticipants(ctx context.Context, tokenID int64) ([]string, error)
}
