package fetch

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/rpcclient"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

// ReceiptFetcher extracts native-currency transfers by walking every block
// in range and every successful transaction's receipt (spec.md §4.3.2).
// It is the only fetcher not bound to a contract address.
type ReceiptFetcher struct {
	client rpcclient.Client
	logger *zap.Logger
}

func (f *ReceiptFetcher) GetTransfers(ctx context.Context, fromBlock, toBlock uint64) ([]transfer.Record, error) {
	var records []transfer.Record

	for n := fromBlock; n <= toBlock; n++ {
		block, err := f.client.BlockByNumber(ctx, n)
		if err != nil {
			return nil, err
		}

		for _, tx := range block.Transactions() {
			if tx.Value() == nil || tx.Value().Sign() == 0 {
				continue
			}
			to := tx.To()
			if to == nil {
				// contract creation: no recipient to credit.
				continue
			}

			receipt, err := f.client.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				if f.logger != nil {
					f.logger.Warn("skipping transaction: receipt fetch failed",
						zap.String("tx_hash", tx.Hash().Hex()), zap.Error(err))
				}
				continue
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				continue
			}

			from, err := senderOf(tx)
			if err != nil {
				if f.logger != nil {
					f.logger.Warn("skipping transaction: sender recovery failed",
						zap.String("tx_hash", tx.Hash().Hex()), zap.Error(err))
				}
				continue
			}

			records = append(records, transfer.Native{
				Sender:    from,
				Recipient: to.Hex(),
				Amount:    new(big.Int).Set(tx.Value()),
				TxHash:    tx.Hash().Hex(),
			})
		}
	}

	return records, nil
}

func senderOf(tx *types.Transaction) (string, error) {
	signer := types.LatestSignerForChainID(tx.ChainId())
	from, err := types.Sender(signer, tx)
	if err != nil {
		return "", err
	}
	return from.Hex(), nil
}
