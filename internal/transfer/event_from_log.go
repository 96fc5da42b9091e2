package transfer

import (
	"math/big"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// transferEvent, transferSingleEvent and transferBatchEvent mirror the
// named arguments of the three events the indexer watches for. Field names
// must match the ABI argument names (case-insensitively, per
// accounts/abi's UnpackIntoInterface/ParseTopics convention) so go-ethereum
// can fill them from the event's data and indexed topics.
type transferEvent struct {
	From    common.Address
	To      common.Address
	Value   *big.Int
	TokenId *big.Int
}

type transferSingleEvent struct {
	Operator common.Address
	From     common.Address
	To       common.Address
	Id       *big.Int
	Value    *big.Int
}

type transferBatchEvent struct {
	Operator common.Address
	From     common.Address
	To       common.Address
	Ids      []*big.Int
	Values   []*big.Int
}

// EventEntryFromLog decodes a raw log into an EventEntry using the
// contract's parsed ABI, the way a filterable network's
// eth_newFilter/eth_getFilterLogs result is meant to be read (spec.md
// §4.3.1): indexed arguments come off log.Topics[1:], non-indexed ones are
// unpacked from log.Data, both keyed by the event descriptor the ABI
// resolves from log.Topics[0].
func EventEntryFromLog(log types.Log, parsedABI ethabi.ABI) (EventEntry, bool) {
	if len(log.Topics) == 0 {
		return EventEntry{}, false
	}
	descr, err := parsedABI.EventByID(log.Topics[0])
	if err != nil {
		return EventEntry{}, false
	}

	var indexed ethabi.Arguments
	for _, arg := range descr.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics) < len(indexed)+1 {
		return EventEntry{}, false
	}

	switch descr.Name {
	case "Transfer":
		var ev transferEvent
		if err := unpackEvent(&ev, parsedABI, descr.Name, log, indexed); err != nil {
			return EventEntry{}, false
		}
		entry := EventEntry{EventName: descr.Name, TxHash: log.TxHash.Hex(), From: ev.From.Hex(), To: ev.To.Hex()}
		if ev.TokenId != nil {
			entry.TokenID = ev.TokenId
		} else {
			entry.Value = ev.Value
		}
		return entry, true
	case "TransferSingle":
		var ev transferSingleEvent
		if err := unpackEvent(&ev, parsedABI, descr.Name, log, indexed); err != nil {
			return EventEntry{}, false
		}
		return EventEntry{
			EventName: descr.Name,
			TxHash:    log.TxHash.Hex(),
			Operator:  ev.Operator.Hex(),
			From:      ev.From.Hex(),
			To:        ev.To.Hex(),
			TokenID:   ev.Id,
			Value:     ev.Value,
		}, true
	case "TransferBatch":
		var ev transferBatchEvent
		if err := unpackEvent(&ev, parsedABI, descr.Name, log, indexed); err != nil {
			return EventEntry{}, false
		}
		return EventEntry{
			EventName: descr.Name,
			TxHash:    log.TxHash.Hex(),
			Operator:  ev.Operator.Hex(),
			From:      ev.From.Hex(),
			To:        ev.To.Hex(),
			IDs:       ev.Ids,
			Values:    ev.Values,
		}, true
	default:
		return EventEntry{}, false
	}
}

func unpackEvent(out interface{}, parsedABI ethabi.ABI, name string, log types.Log, indexed ethabi.Arguments) error {
	if len(log.Data) > 0 {
		if err := parsedABI.UnpackIntoInterface(out, name, log.Data); err != nil {
			return err
		}
	}
	return ethabi.ParseTopics(out, indexed, log.Topics[1:])
}
