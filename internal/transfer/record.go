// Package transfer implements the TransferRecord sum type and its two
// decoders (spec.md §4.2): from a pre-parsed event-log entry, and from a
// raw {topics, data} log. Both decoders are pure: no RPC calls, no
// persistence.
package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/csic-platform/evm-indexer/internal/domain"
)

// Kind tags which TransferRecord variant a Record value holds.
type Kind string

const (
	KindNative      Kind = "native"
	KindFungible    Kind = "fungible"
	KindNonFungible Kind = "non_fungible"
	KindMultiToken  Kind = "multi_token"
)

// Record is the tagged-variant interface spec.md §9 calls for in place of
// the source's runtime dispatch: every concrete transfer shape knows its
// own Kind and how to flatten itself into a persisted TokenTransfer.
type Record interface {
	Kind() Kind
	ToPersisted(tokenID, fetchedBy int64) domain.TokenTransfer
}

// Native is a plain-currency transfer, produced only by the receipt
// fetcher (spec.md §4.3.2); it has no log-based decoder.
type Native struct {
	Sender    string
	Recipient string
	Amount    *big.Int
	TxHash    string
}

func (Native) Kind() Kind { return KindNative }

// ToPersisted maps a Native record: amount set, token_id and operator
// both nil (spec.md §4.2).
func (r Native) ToPersisted(tokenID, fetchedBy int64) domain.TokenTransfer {
	return domain.TokenTransfer{
		TokenID:   tokenID,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		TxHash:    r.TxHash,
		Amount:    r.Amount,
		FetchedBy: fetchedBy,
	}
}

// Fungible is an ERC-20/ERC-777-style transfer.
type Fungible struct {
	Sender    string
	Recipient string
	Amount    *big.Int
	TxHash    string
}

func (Fungible) Kind() Kind { return KindFungible }

// ToPersisted maps a Fungible record: amount set, token_id nil.
func (r Fungible) ToPersisted(tokenID, fetchedBy int64) domain.TokenTransfer {
	return domain.TokenTransfer{
		TokenID:   tokenID,
		Sender:    r.Sender,
		Recipient: r.Recipient,
		TxHash:    r.TxHash,
		Amount:    r.Amount,
		FetchedBy: fetchedBy,
	}
}

// NonFungible is an ERC-721-style transfer.
type NonFungible struct {
	Sender    string
	Recipient string
	TokenID   *big.Int
	TxHash    string
}

func (NonFungible) Kind() Kind { return KindNonFungible }

// ToPersisted maps a NonFungible record: token_id set, amount nil.
func (r NonFungible) ToPersisted(tokenID, fetchedBy int64) domain.TokenTransfer {
	return domain.TokenTransfer{
		TokenID:    tokenID,
		Sender:     r.Sender,
		Recipient:  r.Recipient,
		TxHash:     r.TxHash,
		TokenIDRef: r.TokenID,
		FetchedBy:  fetchedBy,
	}
}

// MultiToken is an ERC-1155-style transfer (single or one leg of a batch).
type MultiToken struct {
	Operator  string
	Sender    string
	Recipient string
	TokenID   *big.Int
	Amount    *big.Int
	TxHash    string
}

func (MultiToken) Kind() Kind { return KindMultiToken }

// ToPersisted maps a MultiToken record: both amount and token_id set,
// operator set.
func (r MultiToken) ToPersisted(tokenID, fetchedBy int64) domain.TokenTransfer {
	op := r.Operator
	return domain.TokenTransfer{
		TokenID:    tokenID,
		Operator:   &op,
		Sender:     r.Sender,
		Recipient:  r.Recipient,
		TxHash:     r.TxHash,
		TokenIDRef: r.TokenID,
		Amount:     r.Amount,
		FetchedBy:  fetchedBy,
	}
}

// addr normalizes a hex address string to its EIP-55 checksum form so
// records from both decoders compare byte-identical (spec.md §8 round-trip
// property A).
func addr(s string) string {
	if s == "" {
		return s
	}
	return common.HexToAddress(s).Hex()
}
