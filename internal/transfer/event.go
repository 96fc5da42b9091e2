package transfer

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/csic-platform/evm-indexer/internal/domain"
)

// EventEntry is the DecodedLog shape spec.md §9 calls for: the RPC-boundary
// normalization of whatever loosely-typed map the node returns for a
// filter-log entry, carrying the event name and its named arguments.
type EventEntry struct {
	EventName string
	TxHash    string
	From      string
	To        string
	Operator  string
	Value     *big.Int
	TokenID   *big.Int
	IDs       []*big.Int
	Values    []*big.Int
}

// FromEventEntry decodes one filter-log entry into zero or more
// TransferRecords (spec.md §4.2). tokenType disambiguates the identically
// named "Transfer" event between fungible and non-fungible semantics,
// since both ERC-20 and ERC-721 emit the same event name.
func FromEventEntry(entry EventEntry, tokenType domain.TokenType, logger *zap.Logger) []Record {
	switch entry.EventName {
	case "Transfer":
		if isNonFungible(tokenType) {
			return []Record{NonFungible{
				Sender:    addr(entry.From),
				Recipient: addr(entry.To),
				TokenID:   entry.TokenID,
				TxHash:    entry.TxHash,
			}}
		}
		return []Record{Fungible{
			Sender:    addr(entry.From),
			Recipient: addr(entry.To),
			Amount:    entry.Value,
			TxHash:    entry.TxHash,
		}}
	case "TransferSingle":
		return []Record{MultiToken{
			Operator:  addr(entry.Operator),
			Sender:    addr(entry.From),
			Recipient: addr(entry.To),
			TokenID:   entry.TokenID,
			Amount:    entry.Value,
			TxHash:    entry.TxHash,
		}}
	case "TransferBatch":
		if len(entry.IDs) != len(entry.Values) {
			if logger != nil {
				logger.Warn("dropping TransferBatch event: ids/values length mismatch",
					zap.Int("ids", len(entry.IDs)),
					zap.Int("values", len(entry.Values)),
					zap.String("tx_hash", entry.TxHash))
			}
			return nil
		}
		records := make([]Record, 0, len(entry.IDs))
		for i := range entry.IDs {
			records = append(records, MultiToken{
				Operator:  addr(entry.Operator),
				Sender:    addr(entry.From),
				Recipient: addr(entry.To),
				TokenID:   entry.IDs[i],
				Amount:    entry.Values[i],
				TxHash:    entry.TxHash,
			})
		}
		return records
	default:
		return nil
	}
}

func isNonFungible(tokenType domain.TokenType) bool {
	return tokenType == domain.TokenERC721 || tokenType == domain.TokenERC721Enumerable
}
