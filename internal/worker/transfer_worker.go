// Package worker implements the two indexer loops spec.md §4.7-§4.9
// describe: a transfer indexer advancing a shared block watermark across
// its fetchers, and a balance indexer polling a holder set on a fixed
// cadence with no watermark at all.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
	"github.com/csic-platform/evm-indexer/internal/fetch"
	"github.com/csic-platform/evm-indexer/internal/metrics"
	"github.com/csic-platform/evm-indexer/internal/rpcclient"
	"github.com/csic-platform/evm-indexer/internal/store"
	"github.com/csic-platform/evm-indexer/internal/strategy"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

// tokenFetcher pairs a token with the Fetcher built for it, preserving the
// stable iteration order spec.md §4.7 step 6 requires.
type tokenFetcher struct {
	token   domain.Token
	fetcher fetch.Fetcher
}

// TransferIndexer runs the event-extraction loop from spec.md §4.7.
type TransferIndexer struct {
	configStore store.ConfigStore
	persistence store.Persistence
	client      rpcclient.Client
	logger      *zap.Logger

	indexer  domain.Indexer
	network  domain.Network
	fetchers []tokenFetcher
	strategy strategy.TransferStrategy
}

// NewTransferIndexer loads the indexer's network and tokens, builds one
// fetcher per token, and validates the configured strategy eagerly.
func NewTransferIndexer(ctx context.Context, configStore store.ConfigStore, persistence store.Persistence, client rpcclient.Client, indexer domain.Indexer, logger *zap.Logger) (*TransferIndexer, error) {
	if err := indexer.ValidateStrategy(); err != nil {
		return nil, err
	}

	network, err := configStore.Network(ctx, indexer.NetworkID)
	if err != nil {
		return nil, errs.Configurationf("worker.NewTransferIndexer", "load network: %v", err)
	}

	tokens, err := configStore.Tokens(ctx, indexer.TokenIDs)
	if err != nil {
		return nil, errs.Configurationf("worker.NewTransferIndexer", "load tokens: %v", err)
	}

	fetchers := make([]tokenFetcher, 0, len(tokens))
	for _, token := range tokens {
		if err := token.Validate(); err != nil {
			return nil, err
		}
		f, err := fetch.New(client, network, token, logger)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, tokenFetcher{token: token, fetcher: f})
	}

	transferStrategy, err := strategy.NewTransfer(indexer)
	if err != nil {
		return nil, err
	}

	return &TransferIndexer{
		configStore: configStore,
		persistence: persistence,
		client:      client,
		logger:      logger,
		indexer:     indexer,
		network:     network,
		fetchers:    fetchers,
		strategy:    transferStrategy,
	}, nil
}

// Run loops forever, one cycle per spec.md §4.7, until ctx is cancelled.
func (w *TransferIndexer) Run(ctx context.Context) error {
	chainID := fmt.Sprintf("%d", w.network.ChainID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(w.indexer.ShortSleepSeconds) * time.Second):
		}

		longSleep, err := w.cycle(ctx, chainID)
		if err != nil {
			w.logger.Error("transfer indexer cycle failed", zap.String("indexer", w.indexer.Name), zap.Error(err))
			continue
		}
		if longSleep {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(w.indexer.LongSleepSeconds) * time.Second):
			}
		}
	}
}

// cycle runs one iteration of spec.md §4.7 steps 2-6 and reports whether
// the caller should take the long sleep (from == to, nothing to do).
func (w *TransferIndexer) cycle(ctx context.Context, chainID string) (longSleep bool, err error) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues(w.indexer.Name, chainID).Observe(time.Since(start).Seconds())
	}()

	reloaded, err := w.configStore.Indexer(ctx, w.indexer.Name)
	if err != nil {
		return false, errs.Transientf("worker.TransferIndexer.cycle", "reload indexer: %v", err)
	}
	w.indexer = reloaded

	latest, err := w.client.LatestBlock(ctx)
	if err != nil {
		w.logger.Warn("failed to read latest block", zap.String("indexer", w.indexer.Name), zap.Error(err))
		return false, nil
	}

	from := w.indexer.LastBlock
	to := from + w.network.MaxStep
	if to > latest {
		to = latest
	}
	if from == to {
		return true, nil
	}

	for _, tf := range w.fetchers {
		records, err := tf.fetcher.GetTransfers(ctx, from, to)
		if err != nil {
			metrics.FetchErrors.WithLabelValues(w.indexer.Name).Inc()
			w.logger.Warn("fetcher failed, watermark held",
				zap.String("indexer", w.indexer.Name), zap.String("token", tf.token.Name), zap.Error(err))
			continue
		}

		if len(records) == 0 {
			if err := w.configStore.UpdateLastBlock(ctx, w.indexer.ID, to); err != nil {
				return false, errs.Transientf("worker.TransferIndexer.cycle", "advance watermark: %v", err)
			}
			w.indexer.LastBlock = to
			metrics.LastProcessedBlock.WithLabelValues(w.indexer.Name, chainID).Set(float64(to))
			continue
		}

		if err := w.strategy.Start(ctx, tf.token, records, w.persistFunc(tf.token.ID)); err != nil {
			w.logger.Warn("strategy failed, watermark held",
				zap.String("indexer", w.indexer.Name), zap.String("token", tf.token.Name), zap.Error(err))
			continue
		}

		if err := w.configStore.UpdateLastBlock(ctx, w.indexer.ID, to); err != nil {
			return false, errs.Transientf("worker.TransferIndexer.cycle", "advance watermark: %v", err)
		}
		w.indexer.LastBlock = to
		metrics.LastProcessedBlock.WithLabelValues(w.indexer.Name, chainID).Set(float64(to))
		metrics.RecordsPersisted.WithLabelValues(w.indexer.Name, "transfer").Add(float64(len(records)))
	}

	return false, nil
}

func (w *TransferIndexer) persistFunc(tokenID int64) strategy.PersistFunc {
	return func(ctx context.Context, token domain.Token, record transfer.Record) error {
		return w.persistence.SaveTransfer(ctx, tokenID, w.indexer.ID, record)
	}
}
