package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	gethabi "github.com/csic-platform/evm-indexer/internal/abi"
	"github.com/csic-platform/evm-indexer/internal/domain"
)

// FromRawLog decodes one raw {topics, data, transactionHash} log into zero
// or more TransferRecords (spec.md §4.2, §6). It is the decoder used on
// no_filters networks, where every log returned for an address must be
// classified client-side: an unrecognized topics[0], too few topics, or a
// data payload too short for the required slot all yield an empty result.
func FromRawLog(log types.Log, tokenType domain.TokenType) []Record {
	if len(log.Topics) == 0 {
		return nil
	}
	sig := log.Topics[0]
	txHash := log.TxHash.Hex()

	switch {
	case sig == fungibleTransferSig && tokenType != domain.TokenERC1155:
		return decodeTransferLog(log, tokenType, txHash)
	case sig == transferSingleSig && tokenType == domain.TokenERC1155:
		return decodeTransferSingleLog(log, txHash)
	case sig == transferBatchSig && tokenType == domain.TokenERC1155:
		return decodeTransferBatchLog(log, txHash)
	default:
		return nil
	}
}

func decodeTransferLog(log types.Log, tokenType domain.TokenType, txHash string) []Record {
	if len(log.Topics) < 3 {
		return nil
	}
	from := common.BytesToAddress(log.Topics[1].Bytes()).Hex()
	to := common.BytesToAddress(log.Topics[2].Bytes()).Hex()

	amountOrID := slotFromTopicsOrData(log, 3, 0)
	if amountOrID == nil {
		return nil
	}

	if isNonFungible(tokenType) {
		return []Record{NonFungible{Sender: from, Recipient: to, TokenID: amountOrID, TxHash: txHash}}
	}
	return []Record{Fungible{Sender: from, Recipient: to, Amount: amountOrID, TxHash: txHash}}
}

func decodeTransferSingleLog(log types.Log, txHash string) []Record {
	if len(log.Topics) < 4 {
		return nil
	}
	operator := common.BytesToAddress(log.Topics[1].Bytes()).Hex()
	from := common.BytesToAddress(log.Topics[2].Bytes()).Hex()
	to := common.BytesToAddress(log.Topics[3].Bytes()).Hex()

	var id, value []byte
	if len(log.Topics) == 6 {
		id = log.Topics[4].Bytes()
		value = log.Topics[5].Bytes()
	} else {
		if len(log.Data) < 64 {
			return nil
		}
		id = log.Data[0:32]
		value = log.Data[32:64]
	}

	tokenID := gethabi.WordToUint256(id)
	amount := gethabi.WordToUint256(value)
	if tokenID == nil || amount == nil {
		return nil
	}

	return []Record{MultiToken{
		Operator:  operator,
		Sender:    from,
		Recipient: to,
		TokenID:   tokenID,
		Amount:    amount,
		TxHash:    txHash,
	}}
}

func decodeTransferBatchLog(log types.Log, txHash string) []Record {
	if len(log.Topics) < 4 {
		return nil
	}
	operator := common.BytesToAddress(log.Topics[1].Bytes()).Hex()
	from := common.BytesToAddress(log.Topics[2].Bytes()).Hex()
	to := common.BytesToAddress(log.Topics[3].Bytes()).Hex()

	if len(log.Data) < 64 {
		return nil
	}
	offIDs := gethabi.WordToUint256(log.Data[0:32])
	offValues := gethabi.WordToUint256(log.Data[32:64])
	if offIDs == nil || offValues == nil || !offIDs.IsInt64() || !offValues.IsInt64() {
		return nil
	}

	ids := gethabi.DecodeUint256Array(log.Data, int(offIDs.Int64()))
	values := gethabi.DecodeUint256Array(log.Data, int(offValues.Int64()))
	if ids == nil || values == nil || len(ids) != len(values) {
		return nil
	}

	records := make([]Record, 0, len(ids))
	for i := range ids {
		records = append(records, MultiToken{
			Operator:  operator,
			Sender:    from,
			Recipient: to,
			TokenID:   ids[i],
			Amount:    values[i],
			TxHash:    txHash,
		})
	}
	return records
}

// slotFromTopicsOrData implements the "topics[N] if exactly that many
// topics, else data[0:32)" rule shared by the fungible and non-fungible
// raw-log families (spec.md §4.2 table).
func slotFromTopicsOrData(log types.Log, topicCountForTopicSlot, dataOffset int) *big.Int {
	if len(log.Topics) == topicCountForTopicSlot+1 {
		return gethabi.WordToUint256(log.Topics[topicCountForTopicSlot].Bytes())
	}
	end := dataOffset + 32
	if len(log.Data) < end {
		return nil
	}
	return gethabi.WordToUint256(log.Data[dataOffset:end])
}
