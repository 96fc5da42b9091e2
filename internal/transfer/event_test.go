package transfer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csic-platform/evm-indexer/internal/domain"
)

func TestFromEventEntry_Fungible(t *testing.T) {
	entry := EventEntry{
		EventName: "Transfer",
		TxHash:    txHash,
		From:      sender,
		To:        recipient,
		Value:     big.NewInt(1709210771),
	}

	records := FromEventEntry(entry, domain.TokenERC20, nil)
	require.Len(t, records, 1)
	fungible := records[0].(Fungible)
	assert.Equal(t, big.NewInt(1709210771), fungible.Amount)
}

func TestFromEventEntry_TransferBatch_LengthMismatchDropped(t *testing.T) {
	entry := EventEntry{
		EventName: "TransferBatch",
		IDs:       []*big.Int{big.NewInt(1), big.NewInt(2)},
		Values:    []*big.Int{big.NewInt(10)},
	}
	assert.Empty(t, FromEventEntry(entry, domain.TokenERC1155, nil))
}

func TestFromEventEntry_UnknownEventName(t *testing.T) {
	entry := EventEntry{EventName: "Approval"}
	assert.Empty(t, FromEventEntry(entry, domain.TokenERC20, nil))
}

// Round-trip A: FromEventEntry and FromRawLog describing the same fungible
// transfer yield byte-identical sender/recipient/amount.
func TestRoundTripA_EventEntryAndRawLogAgree(t *testing.T) {
	entry := EventEntry{
		EventName: "Transfer",
		TxHash:    txHash,
		From:      sender,
		To:        recipient,
		Value:     big.NewInt(1709210771),
	}
	fromEntry := FromEventEntry(entry, domain.TokenERC20, nil)[0].(Fungible)

	rawLog := buildFungibleRawLog(sender, recipient, 1709210771)
	fromLog := FromRawLog(rawLog, domain.TokenERC20)[0].(Fungible)

	assert.Equal(t, fromEntry.Sender, fromLog.Sender)
	assert.Equal(t, fromEntry.Recipient, fromLog.Recipient)
	assert.Equal(t, fromEntry.Amount, fromLog.Amount)
}
