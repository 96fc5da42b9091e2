package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/balance"
	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
	"github.com/csic-platform/evm-indexer/internal/metrics"
	"github.com/csic-platform/evm-indexer/internal/rpcclient"
	"github.com/csic-platform/evm-indexer/internal/store"
	"github.com/csic-platform/evm-indexer/internal/strategy"
)

// tokenBalance pairs a token, its balance caller, and its holder-deriving
// strategy for one watched token.
type tokenBalance struct {
	token    domain.Token
	caller   balance.Caller
	strategy strategy.BalanceStrategy
}

// BalanceIndexer runs the polling loop from spec.md §4.8: no watermark,
// a one-second pause between holders to throttle the RPC.
type BalanceIndexer struct {
	configStore store.ConfigStore
	persistence store.Persistence
	logger      *zap.Logger

	indexer domain.Indexer
	network domain.Network
	tokens  []tokenBalance
}

// NewBalanceIndexer loads the indexer's network and tokens, builds one
// balance caller and one holder strategy per token.
func NewBalanceIndexer(ctx context.Context, configStore store.ConfigStore, persistence store.Persistence, client rpcclient.Client, indexer domain.Indexer, logger *zap.Logger) (*BalanceIndexer, error) {
	if err := indexer.ValidateStrategy(); err != nil {
		return nil, err
	}

	network, err := configStore.Network(ctx, indexer.NetworkID)
	if err != nil {
		return nil, errs.Configurationf("worker.NewBalanceIndexer", "load network: %v", err)
	}

	tokens, err := configStore.Tokens(ctx, indexer.TokenIDs)
	if err != nil {
		return nil, errs.Configurationf("worker.NewBalanceIndexer", "load tokens: %v", err)
	}

	entries := make([]tokenBalance, 0, len(tokens))
	for _, token := range tokens {
		if err := token.Validate(); err != nil {
			return nil, err
		}
		caller, err := balance.New(client, persistence, network, token, indexer.ID, logger)
		if err != nil {
			return nil, err
		}
		balanceStrategy, err := strategy.NewBalance(indexer, persistence)
		if err != nil {
			return nil, err
		}
		entries = append(entries, tokenBalance{token: token, caller: caller, strategy: balanceStrategy})
	}

	return &BalanceIndexer{
		configStore: configStore,
		persistence: persistence,
		logger:      logger,
		indexer:     indexer,
		network:     network,
		tokens:      entries,
	}, nil
}

// Run loops forever, one cycle per spec.md §4.8, until ctx is cancelled.
func (w *BalanceIndexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(w.indexer.ShortSleepSeconds) * time.Second):
		}

		if err := w.cycle(ctx); err != nil {
			w.logger.Error("balance indexer cycle failed", zap.String("indexer", w.indexer.Name), zap.Error(err))
		}
	}
}

func (w *BalanceIndexer) cycle(ctx context.Context) error {
	reloaded, err := w.configStore.Indexer(ctx, w.indexer.Name)
	if err != nil {
		return errs.Transientf("worker.BalanceIndexer.cycle", "reload indexer: %v", err)
	}
	w.indexer = reloaded

	for _, tb := range w.tokens {
		holders, err := tb.strategy.Start(ctx, tb.token)
		if err != nil {
			w.logger.Warn("balance strategy failed", zap.String("indexer", w.indexer.Name), zap.String("token", tb.token.Name), zap.Error(err))
			continue
		}

		enumerable, isEnumerable := tb.caller.(enumerableDiffer)

		for i, holder := range holders {
			if isEnumerable {
				w.applyEnumerableDiff(ctx, tb.token, enumerable, holder)
			} else {
				w.applyUpsert(ctx, tb.token, tb.caller, holder)
			}

			if i < len(holders)-1 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
			}
		}
	}
	return nil
}

// enumerableDiffer is the extra surface balance.New returns for
// ERC721Enumerable tokens: the raw add/remove split the generic
// Caller.GetBalance interface collapses away.
type enumerableDiffer interface {
	Diff(ctx context.Context, holder string) ([]balance.Delta, error)
}

func (w *BalanceIndexer) applyUpsert(ctx context.Context, token domain.Token, caller balance.Caller, holder string) {
	rows, err := caller.GetBalance(ctx, holder)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(w.indexer.Name).Inc()
		w.logger.Warn("balance caller failed", zap.String("indexer", w.indexer.Name), zap.String("holder", holder), zap.Error(err))
		return
	}
	for _, row := range rows {
		if err := w.persistence.UpsertBalance(ctx, row); err != nil {
			w.logger.Warn("failed to persist balance row", zap.String("indexer", w.indexer.Name), zap.String("holder", holder), zap.Error(err))
			continue
		}
		metrics.RecordsPersisted.WithLabelValues(w.indexer.Name, "balance").Inc()
	}
}

func (w *BalanceIndexer) applyEnumerableDiff(ctx context.Context, token domain.Token, caller enumerableDiffer, holder string) {
	deltas, err := caller.Diff(ctx, holder)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(w.indexer.Name).Inc()
		w.logger.Warn("enumerable balance diff failed", zap.String("indexer", w.indexer.Name), zap.String("holder", holder), zap.Error(err))
		return
	}
	for _, delta := range deltas {
		var err error
		if delta.ToAdd {
			err = w.persistence.InsertEnumerableTokenID(ctx, delta.Row)
		} else {
			err = w.persistence.DeleteEnumerableTokenID(ctx, delta.Row.TokenID, delta.Row.Holder, delta.Row.TokenIDRef)
		}
		if err != nil {
			w.logger.Warn("failed to apply enumerable balance delta", zap.String("indexer", w.indexer.Name), zap.String("holder", holder), zap.Error(err))
			continue
		}
		metrics.RecordsPersisted.WithLabelValues(w.indexer.Name, "balance").Inc()
	}
}
