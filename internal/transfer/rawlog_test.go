package transfer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csic-platform/evm-indexer/internal/domain"
)

func topicFromAddress(a string) common.Hash {
	return common.BytesToHash(common.HexToAddress(a).Bytes())
}

func topicFromUint(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}

func wordBytes(n int64) []byte {
	b := make([]byte, 32)
	big.NewInt(n).FillBytes(b)
	return b
}

const sender = "0xdb6f0f4a09b5e9f4f5f0e09b1f8c7e6c8db0af76"
const recipient = "0x7ab6e5e5c5c5e5c5c5e5c5c5e5c5c5e5c5c5cccf"
const txHash = "0xa35c00000000000000000000000000000000000000000000000000000debd"

// S1 — fungible transfer, data-carried amount.
func TestFromRawLog_S1_FungibleDataCarriedAmount(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{
			fungibleTransferSig,
			topicFromAddress(sender),
			topicFromAddress(recipient),
		},
		Data:   wordBytes(1709210771),
		TxHash: common.HexToHash(txHash),
	}

	records := FromRawLog(log, domain.TokenERC20)
	require.Len(t, records, 1)
	fungible, ok := records[0].(Fungible)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(sender).Hex(), fungible.Sender)
	assert.Equal(t, common.HexToAddress(recipient).Hex(), fungible.Recipient)
	assert.Equal(t, big.NewInt(1709210771), fungible.Amount)
	assert.Equal(t, common.HexToHash(txHash).Hex(), fungible.TxHash)
}

// S2 — same as S1 but amount carried in topics[3], empty data. Result must
// be identical to S1.
func TestFromRawLog_S2_FungibleTopicCarriedAmount(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{
			fungibleTransferSig,
			topicFromAddress(sender),
			topicFromAddress(recipient),
			topicFromUint(1709210771),
		},
		Data:   nil,
		TxHash: common.HexToHash(txHash),
	}

	records := FromRawLog(log, domain.TokenERC20)
	require.Len(t, records, 1)
	fungible, ok := records[0].(Fungible)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1709210771), fungible.Amount)
	assert.Equal(t, common.HexToAddress(sender).Hex(), fungible.Sender)
	assert.Equal(t, common.HexToAddress(recipient).Hex(), fungible.Recipient)
}

// S3 — non-fungible transfer, token id carried in topics.
func TestFromRawLog_S3_NonFungibleTokenIDInTopics(t *testing.T) {
	zero := "0x0000000000000000000000000000000000000000"
	nftRecipient := "0xc985000000000000000000000000000000051dd0"

	log := types.Log{
		Topics: []common.Hash{
			fungibleTransferSig,
			topicFromAddress(zero),
			topicFromAddress(nftRecipient),
			topicFromUint(14176665),
		},
		Data:   nil,
		TxHash: common.HexToHash(txHash),
	}

	records := FromRawLog(log, domain.TokenERC721)
	require.Len(t, records, 1)
	nft, ok := records[0].(NonFungible)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(zero).Hex(), nft.Sender)
	assert.Equal(t, common.HexToAddress(nftRecipient).Hex(), nft.Recipient)
	assert.Equal(t, big.NewInt(14176665), nft.TokenID)
}

// S4 — ERC-1155 TransferBatch with ids=[5,7,0], amounts=[500,700,0].
func TestFromRawLog_S4_ERC1155Batch(t *testing.T) {
	operator := "0x1111111111111111111111111111111111111111"
	from := "0x2222222222222222222222222222222222222222"
	to := "0x3333333333333333333333333333333333333333"

	data := buildBatchData(
		[]int64{5, 7, 0},
		[]int64{500, 700, 0},
	)

	log := types.Log{
		Topics: []common.Hash{
			transferBatchSig,
			topicFromAddress(operator),
			topicFromAddress(from),
			topicFromAddress(to),
		},
		Data:   data,
		TxHash: common.HexToHash(txHash),
	}

	records := FromRawLog(log, domain.TokenERC1155)
	require.Len(t, records, 3)

	wantIDs := []int64{5, 7, 0}
	wantAmounts := []int64{500, 700, 0}
	for i, r := range records {
		mt, ok := r.(MultiToken)
		require.True(t, ok)
		assert.Equal(t, common.HexToAddress(operator).Hex(), mt.Operator)
		assert.Equal(t, common.HexToAddress(from).Hex(), mt.Sender)
		assert.Equal(t, common.HexToAddress(to).Hex(), mt.Recipient)
		assert.Equal(t, big.NewInt(wantIDs[i]), mt.TokenID)
		assert.Equal(t, big.NewInt(wantAmounts[i]), mt.Amount)
		assert.Equal(t, common.HexToHash(txHash).Hex(), mt.TxHash)
	}
}

// Round-trip B: encoding ids=[5,7,0]/amounts=[500,700,0] and decoding
// produces the three pairings in the same order.
func TestFromRawLog_RoundTripB_BatchOrderPreserved(t *testing.T) {
	data := buildBatchData([]int64{5, 7, 0}, []int64{500, 700, 0})
	log := types.Log{
		Topics: []common.Hash{
			transferBatchSig,
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
			topicFromAddress("0x3333333333333333333333333333333333333333"),
		},
		Data:   data,
		TxHash: common.HexToHash(txHash),
	}

	records := FromRawLog(log, domain.TokenERC1155)
	require.Len(t, records, 3)
	for i, want := range [][2]int64{{5, 500}, {7, 700}, {0, 0}} {
		mt := records[i].(MultiToken)
		assert.Equal(t, big.NewInt(want[0]), mt.TokenID)
		assert.Equal(t, big.NewInt(want[1]), mt.Amount)
	}
}

func TestFromRawLog_UnknownSignature(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{common.HexToHash("0xdeadbeef")},
		Data:   nil,
	}
	assert.Empty(t, FromRawLog(log, domain.TokenERC20))
}

func TestFromRawLog_NoTopics(t *testing.T) {
	assert.Empty(t, FromRawLog(types.Log{}, domain.TokenERC20))
}

func TestFromRawLog_BatchLengthMismatch(t *testing.T) {
	// 3 ids, 2 amounts: malformed, must decode to [].
	idsWord := append(wordBytes(3), append(wordBytes(1), append(wordBytes(2), wordBytes(3)...)...)...)
	valuesWord := append(wordBytes(2), append(wordBytes(10), wordBytes(20)...)...)

	// offsets: ids at 64, values at 64+len(idsWord)
	offIDs := int64(64)
	offValues := int64(64 + len(idsWord))

	data := append(wordBytes(offIDs), wordBytes(offValues)...)
	data = append(data, idsWord...)
	data = append(data, valuesWord...)

	log := types.Log{
		Topics: []common.Hash{
			transferBatchSig,
			topicFromAddress("0x1111111111111111111111111111111111111111"),
			topicFromAddress("0x2222222222222222222222222222222222222222"),
			topicFromAddress("0x3333333333333333333333333333333333333333"),
		},
		Data: data,
	}
	assert.Empty(t, FromRawLog(log, domain.TokenERC1155))
}

func TestFromRawLog_FungibleThreeTopicsEmptyData(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{
			fungibleTransferSig,
			topicFromAddress(sender),
			topicFromAddress(recipient),
		},
		Data: nil,
	}
	assert.Empty(t, FromRawLog(log, domain.TokenERC20))
}

func buildFungibleRawLog(from, to string, amount int64) types.Log {
	return types.Log{
		Topics: []common.Hash{
			fungibleTransferSig,
			topicFromAddress(from),
			topicFromAddress(to),
		},
		Data:   wordBytes(amount),
		TxHash: common.HexToHash(txHash),
	}
}

// buildBatchData packs a TransferBatch data payload: two head words (offset
// to ids array, offset to values array), then each dynamic array's
// length-prefixed elements, matching Solidity's ABI encoding for
// uint256[] parameters.
func buildBatchData(ids, values []int64) []byte {
	idsEncoded := encodeUint256Array(ids)
	valuesEncoded := encodeUint256Array(values)

	offIDs := int64(64)
	offValues := offIDs + int64(len(idsEncoded))

	data := append([]byte{}, wordBytes(offIDs)...)
	data = append(data, wordBytes(offValues)...)
	data = append(data, idsEncoded...)
	data = append(data, valuesEncoded...)
	return data
}

func encodeUint256Array(vals []int64) []byte {
	out := append([]byte{}, wordBytes(int64(len(vals)))...)
	for _, v := range vals {
		out = append(out, wordBytes(v)...)
	}
	return out
}
