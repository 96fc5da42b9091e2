package transfer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gethabi "github.com/csic-platform/evm-indexer/internal/abi"
	"github.com/csic-platform/evm-indexer/internal/domain"
)

func TestEventEntryFromLog_ERC20Transfer(t *testing.T) {
	parsedABI, err := gethabi.Load(domain.TokenERC20)
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{
			fungibleTransferSig,
			topicFromAddress(sender),
			topicFromAddress(recipient),
		},
		Data:   wordBytes(500),
		TxHash: common.HexToHash(txHash),
	}

	entry, ok := EventEntryFromLog(log, parsedABI)
	require.True(t, ok)
	assert.Equal(t, "Transfer", entry.EventName)
	require.NotNil(t, entry.Value)
	assert.Equal(t, int64(500), entry.Value.Int64())
	assert.Nil(t, entry.TokenID)

	records := FromEventEntry(entry, domain.TokenERC20, nil)
	require.Len(t, records, 1)
	fungible, ok := records[0].(Fungible)
	require.True(t, ok)
	assert.Equal(t, int64(500), fungible.Amount.Int64())
}

func TestEventEntryFromLog_ERC721Transfer(t *testing.T) {
	parsedABI, err := gethabi.Load(domain.TokenERC721)
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{
			fungibleTransferSig,
			topicFromAddress(sender),
			topicFromAddress(recipient),
			topicFromUint(42),
		},
		TxHash: common.HexToHash(txHash),
	}

	entry, ok := EventEntryFromLog(log, parsedABI)
	require.True(t, ok)
	require.NotNil(t, entry.TokenID)
	assert.Equal(t, int64(42), entry.TokenID.Int64())
	assert.Nil(t, entry.Value)

	records := FromEventEntry(entry, domain.TokenERC721, nil)
	require.Len(t, records, 1)
	nft, ok := records[0].(NonFungible)
	require.True(t, ok)
	assert.Equal(t, int64(42), nft.TokenID.Int64())
}

func TestEventEntryFromLog_UnknownSignatureFails(t *testing.T) {
	parsedABI, err := gethabi.Load(domain.TokenERC20)
	require.NoError(t, err)

	log := types.Log{Topics: []common.Hash{topicFromUint(9999)}}

	_, ok := EventEntryFromLog(log, parsedABI)
	assert.False(t, ok)
}
