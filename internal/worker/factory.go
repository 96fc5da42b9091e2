package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
	"github.com/csic-platform/evm-indexer/internal/rpcclient"
	"github.com/csic-platform/evm-indexer/internal/store"
)

// Runner is the loop interface cmd/indexer drives: Run blocks until ctx is
// cancelled. Fatal configuration errors surface from New, before Run starts.
type Runner interface {
	Run(ctx context.Context) error
}

// New builds the Runner matching indexer.Type, per spec.md §4.9: the
// worker process looks up its row and dispatches on indexer.type.
func New(ctx context.Context, configStore store.ConfigStore, persistence store.Persistence, client rpcclient.Client, indexer domain.Indexer, logger *zap.Logger) (Runner, error) {
	switch indexer.Type {
	case domain.IndexerTransfer:
		return NewTransferIndexer(ctx, configStore, persistence, client, indexer, logger)
	case domain.IndexerBalance:
		return NewBalanceIndexer(ctx, configStore, persistence, client, indexer, logger)
	default:
		return nil, errs.Configurationf("worker.New", "indexer %q: unknown type %q", indexer.Name, indexer.Type)
	}
}
