package transfer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event topic[0] signatures, computed once at package init so every
// decoder compares against the same bit-exact hash (spec.md §6).
var (
	fungibleTransferSig    = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	transferSingleSig      = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))
	transferBatchSig       = crypto.Keccak256Hash([]byte("TransferBatch(address,address,address,uint256[],uint256[])"))
)

// FungibleTransferSignature exposes the shared ERC-20/ERC-721 Transfer
// topic hash; both families use the same event shape and are disambiguated
// only by how their amount/tokenId slot is interpreted downstream.
func FungibleTransferSignature() common.Hash { return fungibleTransferSig }

// TransferSingleSignature is the ERC-1155 TransferSingle topic hash.
func TransferSingleSignature() common.Hash { return transferSingleSig }

// TransferBatchSignature is the ERC-1155 TransferBatch topic hash.
func TransferBatchSignature() common.Hash { return transferBatchSig }
