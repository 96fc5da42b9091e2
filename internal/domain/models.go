// Package domain holds the persisted and configuration types the indexer
// engine operates on: Networks, Tokens, Indexers, and the rows they produce.
package domain

import (
	"math/big"
	"regexp"
	"time"

	"github.com/csic-platform/evm-indexer/internal/errs"
)

// ConfigErrorf builds a KindConfiguration error rooted at the domain
// validation that produced it.
func ConfigErrorf(format string, args ...any) error {
	return errs.Configurationf("domain.Validate", format, args...)
}

// NetworkType selects the RPC dialect a network's node speaks.
type NetworkType string

const (
	NetworkFilterable NetworkType = "filterable"
	NetworkNoFilters  NetworkType = "no_filters"
)

// Network is the identity of a chain the indexer fleet can tail.
type Network struct {
	ChainID     int64
	Name        string
	RPCURL      string
	MaxStep     uint64
	Type        NetworkType
	NeedPOA     bool
	ExplorerURL string
}

// TokenType enumerates the asset kinds a Token row can describe.
type TokenType string

const (
	TokenNative           TokenType = "native"
	TokenERC20            TokenType = "erc20"
	TokenERC721           TokenType = "erc721"
	TokenERC721Enumerable TokenType = "erc721enumerable"
	TokenERC777           TokenType = "erc777"
	TokenERC1155          TokenType = "erc1155"
)

// TransferStrategyKind selects how a token's transfers are extracted.
type TransferStrategyKind string

const (
	StrategyEventBasedTransfer   TransferStrategyKind = "event_based_transfer"
	StrategyReceiptBasedTransfer TransferStrategyKind = "receipt_based_transfer"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Token is one indexed asset on one network.
type Token struct {
	ID        int64
	Address   *string // nil exactly when Type == TokenNative
	Name      string
	NetworkID int64
	Type      TokenType
	Strategy  TransferStrategyKind
}

// Validate enforces the invariants in spec.md §3: native tokens carry no
// address and are receipt-based; non-native tokens carry a well-formed
// 20-byte address and are event-based.
//
// Open Question 2 in spec.md §9 flags the original source's validator as
// inverted for non-native tokens. This port implements the corrected,
// evidently-intended check rather than the source's bug.
func (t Token) Validate() error {
	if t.Type == TokenNative {
		if t.Address != nil {
			return ConfigErrorf("native token %q must not have an address", t.Name)
		}
		if t.Strategy != StrategyReceiptBasedTransfer {
			return ConfigErrorf("native token %q must use receipt_based_transfer", t.Name)
		}
		return nil
	}
	if t.Address == nil || !addressPattern.MatchString(*t.Address) {
		return ConfigErrorf("non-native token %q requires a well-formed 20-byte address", t.Name)
	}
	if t.Strategy != StrategyEventBasedTransfer {
		return ConfigErrorf("non-native token %q must use event_based_transfer", t.Name)
	}
	return nil
}

// IndexerType selects which worker loop an Indexer row drives.
type IndexerType string

const (
	IndexerTransfer IndexerType = "transfer_indexer"
	IndexerBalance  IndexerType = "balance_indexer"
)

// IndexerStrategy names the policy module an Indexer row uses.
type IndexerStrategy string

const (
	StrategyRecipient             IndexerStrategy = "recipient"
	StrategySender                IndexerStrategy = "sender"
	StrategyTokenScan             IndexerStrategy = "token_scan"
	StrategySpecifiedHolders      IndexerStrategy = "specified_holders"
	StrategyTransfersParticipants IndexerStrategy = "transfers_participants"
)

// IndexerStatus is the operator-facing on/off switch for a worker.
type IndexerStatus string

const (
	IndexerOn  IndexerStatus = "on"
	IndexerOff IndexerStatus = "off"
)

var indexerNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]+$`)

// Indexer is one worker definition: the unit the lifecycle manager
// creates, restarts, and removes as a container.
type Indexer struct {
	ID                int64
	Name              string
	NetworkID         int64
	TokenIDs          []int64
	Type              IndexerType
	Strategy          IndexerStrategy
	StrategyParams    map[string]any
	LastBlock         uint64
	ShortSleepSeconds int
	LongSleepSeconds  int
	Status            IndexerStatus
}

// ValidateName enforces the container-name-compatible pattern from spec.md §3.
func (i Indexer) ValidateName() error {
	if !indexerNamePattern.MatchString(i.Name) {
		return ConfigErrorf("indexer name %q must match ^[a-z][a-z0-9-]+$", i.Name)
	}
	return nil
}

// allowedStrategies is the strategy↔indexer-type admissibility matrix from
// spec.md §4.5.
var allowedStrategies = map[IndexerType]map[IndexerStrategy]bool{
	IndexerTransfer: {
		StrategyRecipient: true,
		StrategySender:    true,
		StrategyTokenScan: true,
	},
	IndexerBalance: {
		StrategySpecifiedHolders:      true,
		StrategyTransfersParticipants: true,
	},
}

// ValidateStrategy checks the indexer's strategy against the admissibility
// matrix, independent of the strategy's own parameter validation.
func (i Indexer) ValidateStrategy() error {
	allowed, ok := allowedStrategies[i.Type]
	if !ok {
		return ConfigErrorf("unknown indexer type %q", i.Type)
	}
	if !allowed[i.Strategy] {
		return ConfigErrorf("strategy %q is not admissible for indexer type %q", i.Strategy, i.Type)
	}
	return nil
}

// TokenTransfer is the flat, persisted shape of a TransferRecord.
// Exactly one of (Amount set, TokenIDRef nil), (TokenIDRef set, Amount
// nil), or (both set, Operator set) holds — spec.md §3, §8 invariant 2.
type TokenTransfer struct {
	ID         int64
	TokenID    int64
	Operator   *string
	Sender     string
	Recipient  string
	TxHash     string
	TokenIDRef *big.Int
	Amount     *big.Int
	FetchedBy  int64 // Indexer.ID
	CreatedAt  time.Time
}

// TokenBalance is a (holder, token) row, optionally keyed further by
// TokenIDRef for enumerable NFTs (spec.md §3).
type TokenBalance struct {
	ID         int64
	TokenID    int64
	Holder     string
	Amount     *big.Int
	TokenIDRef *big.Int
	TrackedBy  int64 // Indexer.ID
	UpdatedAt  time.Time
}
