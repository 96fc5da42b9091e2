package abi

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(n int64) []byte {
	b := make([]byte, 32)
	big.NewInt(n).FillBytes(b)
	return b
}

func TestWordToUint256(t *testing.T) {
	assert.Equal(t, big.NewInt(42), WordToUint256(word(42)))
	assert.Nil(t, WordToUint256([]byte{1, 2, 3}))
}

func TestWordToAddress(t *testing.T) {
	w := make([]byte, 32)
	addrBytes := []byte{
		0x74, 0x2d, 0x35, 0xCc, 0x66, 0x34, 0xC0, 0x53, 0x29, 0x25,
		0xa3, 0xb8, 0x44, 0xBc, 0x45, 0x4e, 0x44, 0x38, 0xf4, 0x4e,
	}
	copy(w[12:], addrBytes)

	got := WordToAddress(w)
	require.NotEmpty(t, got)
	assert.Equal(t, "0x", got[:2])
	assert.Len(t, got, 42)

	assert.Equal(t, "", WordToAddress([]byte{0x01}))
}

func TestDecodeUint256Array(t *testing.T) {
	// length=2 words, elements 7 and 9, all at offset 0.
	data := append(append([]byte{}, word(2)...), append(word(7), word(9)...)...)

	arr := DecodeUint256Array(data, 0)
	require.Len(t, arr, 2)
	assert.Equal(t, big.NewInt(7), arr[0])
	assert.Equal(t, big.NewInt(9), arr[1])
}

func TestDecodeUint256Array_TruncatedElements(t *testing.T) {
	// length says 2 elements but only one word of payload follows.
	data := append(append([]byte{}, word(2)...), word(7)...)
	assert.Nil(t, DecodeUint256Array(data, 0))
}

func TestDecodeUint256Array_OffsetOutOfRange(t *testing.T) {
	assert.Nil(t, DecodeUint256Array(word(1), 64))
	assert.Nil(t, DecodeUint256Array(word(1), -1))
}

func TestDecodeUint256Array_ImplausibleLength(t *testing.T) {
	huge := word(1 << 40)
	assert.Nil(t, DecodeUint256Array(huge, 0))
}
