// Package abi implements the pure, stateless word-decoding helpers spec.md
// §4.1 calls for: parsing 32-byte ABI slots into integers, addresses, and
// dynamic uint256 arrays. None of these functions touch the network or any
// other external state.
package abi

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const wordSize = 32

// WordToUint256 interprets a 32-byte big-endian word as an unsigned
// integer. It returns nil if word is shorter than one ABI word.
func WordToUint256(word []byte) *big.Int {
	if len(word) < wordSize {
		return nil
	}
	return new(big.Int).SetBytes(word[:wordSize])
}

// WordToAddress takes the low 20 bytes of a 32-byte word and returns its
// EIP-55 checksum-cased hex form. It returns "" if word is shorter than
// one ABI word.
func WordToAddress(word []byte) string {
	if len(word) < wordSize {
		return ""
	}
	return common.BytesToAddress(word[wordSize-20 : wordSize]).Hex()
}

// DecodeUint256Array decodes a dynamic uint256[] at the given byte offset
// into data: the word at offset is the array length L, followed by L
// 32-byte words. It returns nil if data is too short to hold the length
// word or any of the L element words.
func DecodeUint256Array(data []byte, offset int) []*big.Int {
	if offset < 0 || offset+wordSize > len(data) {
		return nil
	}
	length := WordToUint256(data[offset : offset+wordSize])
	if length == nil || !length.IsUint64() {
		return nil
	}
	n := length.Uint64()
	// A length this large could never fit in a real log payload; treat it
	// as malformed rather than attempting to allocate it.
	if n > uint64(len(data)) {
		return nil
	}
	start := offset + wordSize
	out := make([]*big.Int, 0, n)
	for i := uint64(0); i < n; i++ {
		wordStart := start + int(i)*wordSize
		wordEnd := wordStart + wordSize
		if wordEnd > len(data) {
			return nil
		}
		out = append(out, WordToUint256(data[wordStart:wordEnd]))
	}
	return out
}
