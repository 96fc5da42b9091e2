// Package strategy implements the policy layer from spec.md §4.5: which
// records a transfer indexer keeps, and which holders a balance indexer
// polls. Both are built from an Indexer's strategy_params map and validated
// before a single record is touched.
package strategy

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
	"github.com/csic-platform/evm-indexer/internal/transfer"
)

// PersistFunc is the idempotent-save step from spec.md §4.6; strategies
// call it once per surviving record, bound to a specific token.
type PersistFunc func(ctx context.Context, token domain.Token, record transfer.Record) error

// TransferStrategy filters and persists the records a fetcher produced for
// one token, per spec.md §4.5's transfer strategy contract.
type TransferStrategy interface {
	Start(ctx context.Context, token domain.Token, records []transfer.Record, persist PersistFunc) error
}

// ParticipantsReader supplies the distinct union of senders/recipients
// persisted so far for a token, for the transfers_participants balance
// strategy.
type ParticipantsReader interface {
	DistinctParticipants(ctx context.Context, tokenID int64) ([]string, error)
}

// BalanceStrategy derives the holder set a balance indexer should poll for
// one token, per spec.md §4.5's balance strategy contract.
type BalanceStrategy interface {
	Start(ctx context.Context, token domain.Token) ([]string, error)
}

// NewTransfer builds the TransferStrategy named by indexer.Strategy,
// validating indexer.StrategyParams eagerly (spec.md §4.5: "raises
// ConfigurationError before any record is touched").
func NewTransfer(indexer domain.Indexer) (TransferStrategy, error) {
	switch indexer.Strategy {
	case domain.StrategyRecipient:
		addr, err := requiredAddress(indexer.StrategyParams, "recipient")
		if err != nil {
			return nil, err
		}
		return &filterStrategy{match: func(r transfer.Record) string { return recipientOf(r) }, want: addr}, nil
	case domain.StrategySender:
		addr, err := requiredAddress(indexer.StrategyParams, "sender")
		if err != nil {
			return nil, err
		}
		return &filterStrategy{match: func(r transfer.Record) string { return senderOf(r) }, want: addr}, nil
	case domain.StrategyTokenScan:
		return &filterStrategy{match: nil, want: ""}, nil
	default:
		return nil, errs.Configurationf("strategy.NewTransfer", "indexer %q: strategy %q is not a transfer strategy", indexer.Name, indexer.Strategy)
	}
}

// NewBalance builds the BalanceStrategy named by indexer.Strategy.
func NewBalance(indexer domain.Indexer, participants ParticipantsReader) (BalanceStrategy, error) {
	switch indexer.Strategy {
	case domain.StrategySpecifiedHolders:
		holders, err := requiredAddressList(indexer.StrategyParams, "holders")
		if err != nil {
			return nil, err
		}
		return &specifiedHoldersStrategy{holders: holders}, nil
	case domain.StrategyTransfersParticipants:
		return &transfersParticipantsStrategy{reader: participants}, nil
	default:
		return nil, errs.Configurationf("strategy.NewBalance", "indexer %q: strategy %q is not a balance strategy", indexer.Name, indexer.Strategy)
	}
}

// filterStrategy implements recipient, sender, and token_scan: all three
// are "persist every record matching an optional predicate" (spec.md §4.5).
type filterStrategy struct {
	match func(transfer.Record) string
	want  string
}

func (s *filterStrategy) Start(ctx context.Context, token domain.Token, records []transfer.Record, persist PersistFunc) error {
	for _, record := range records {
		if s.match != nil && !strings.EqualFold(s.match(record), s.want) {
			continue
		}
		if err := persist(ctx, token, record); err != nil {
			return err
		}
	}
	return nil
}

type specifiedHoldersStrategy struct {
	holders []string
}

func (s *specifiedHoldersStrategy) Start(ctx context.Context, token domain.Token) ([]string, error) {
	return s.holders, nil
}

type transfersParticipantsStrategy struct {
	reader ParticipantsReader
}

func (s *transfersParticipantsStrategy) Start(ctx context.Context, token domain.Token) ([]string, error) {
	holders, err := s.reader.DistinctParticipants(ctx, token.ID)
	if err != nil {
		return nil, errs.Transientf("strategy.transfersParticipantsStrategy", "%v", err)
	}
	return holders, nil
}

func requiredAddress(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", errs.Configurationf("strategy.requiredAddress", "missing required param %q", key)
	}
	s, ok := raw.(string)
	if !ok || !common.IsHexAddress(s) {
		return "", errs.Configurationf("strategy.requiredAddress", "param %q must be a well-formed address", key)
	}
	return common.HexToAddress(s).Hex(), nil
}

func requiredAddressList(params map[string]any, key string) ([]string, error) {
	raw, ok := params[key]
	if !ok {
		return nil, errs.Configurationf("strategy.requiredAddressList", "missing required param %q", key)
	}
	list, ok := raw.([]string)
	if !ok {
		if anyList, ok := raw.([]any); ok {
			list = make([]string, 0, len(anyList))
			for _, v := range anyList {
				s, ok := v.(string)
				if !ok {
					return nil, errs.Configurationf("strategy.requiredAddressList", "param %q must be a list of addresses", key)
				}
				list = append(list, s)
			}
		} else {
			return nil, errs.Configurationf("strategy.requiredAddressList", "param %q must be a list of addresses", key)
		}
	}
	if len(list) == 0 {
		return nil, errs.Configurationf("strategy.requiredAddressList", "param %q must be non-empty", key)
	}
	normalized := make([]string, 0, len(list))
	for _, s := range list {
		if !common.IsHexAddress(s) {
			return nil, errs.Configurationf("strategy.requiredAddressList", "param %q contains an invalid address %q", key, s)
		}
		normalized = append(normalized, common.HexToAddress(s).Hex())
	}
	return normalized, nil
}

func recipientOf(r transfer.Record) string {
	switch v := r.(type) {
	case transfer.Native:
		return v.Recipient
	case transfer.Fungible:
		return v.Recipient
	case transfer.NonFungible:
		return v.Recipient
	case transfer.MultiToken:
		return v.Recipient
	default:
		return ""
	}
}

func senderOf(r transfer.Record) string {
	switch v := r.(type) {
	case transfer.Native:
		return v.Sender
	case transfer.Fungible:
		return v.Sender
	case transfer.NonFungible:
		return v.Sender
	case transfer.MultiToken:
		return v.Sender
	default:
		return ""
	}
}
