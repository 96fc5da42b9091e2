package abi

import (
	"embed"
	"fmt"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
)

//go:embed abidata/*.json
var abiFiles embed.FS

// EventNames returns the ABI event list a fetcher should watch for, per
// spec.md §4.3.1: Transfer for ERC-20/721/721Enumerable, TransferSingle and
// TransferBatch for ERC-1155.
func EventNames(tokenType domain.TokenType) ([]string, error) {
	switch tokenType {
	case domain.TokenERC20, domain.TokenERC721, domain.TokenERC721Enumerable, domain.TokenERC777:
		return []string{"Transfer"}, nil
	case domain.TokenERC1155:
		return []string{"TransferSingle", "TransferBatch"}, nil
	default:
		return nil, errs.Configurationf("abi.EventNames", "token type %q has no event ABI", tokenType)
	}
}

// filenameFor maps a token type to the fixed ABI JSON file that describes
// it. ERC721Enumerable shares ERC721's file: the extra enumeration methods
// it needs (tokenOfOwnerByIndex) already live there.
func filenameFor(tokenType domain.TokenType) (string, error) {
	switch tokenType {
	case domain.TokenERC20, domain.TokenERC777:
		return "abidata/erc20.json", nil
	case domain.TokenERC721, domain.TokenERC721Enumerable:
		return "abidata/erc721.json", nil
	case domain.TokenERC1155:
		return "abidata/erc1155.json", nil
	default:
		return "", errs.Configurationf("abi.filenameFor", "token type %q has no ABI file", tokenType)
	}
}

// Load parses the fixed ABI JSON file for a token type. Fetchers call this
// once at construction, per spec.md §4.3.1.
func Load(tokenType domain.TokenType) (gethabi.ABI, error) {
	name, err := filenameFor(tokenType)
	if err != nil {
		return gethabi.ABI{}, err
	}
	raw, err := abiFiles.ReadFile(name)
	if err != nil {
		return gethabi.ABI{}, errs.Configurationf("abi.Load", "read %s: %v", name, err)
	}
	parsed, err := gethabi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return gethabi.ABI{}, fmt.Errorf("abi.Load: parse %s: %w", name, err)
	}
	return parsed, nil
}
