// Package rpcclient wraps go-ethereum's ethclient/rpc clients behind the
// narrow interface the fetchers and balance callers need (spec.md §6),
// converts RPC failures into errs.KindTransient, and wires in the POA
// middleware for networks that need it.
package rpcclient

import (
	"context"
	"math/big"
	"net/http"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
)

// Client is the subset of JSON-RPC operations spec.md §6 lists: latest
// block, full blocks, receipts, logs (both filter-backed and raw), eth_call
// (for balanceOf / tokenOfOwnerByIndex), and eth_getBalance.
type Client interface {
	LatestBlock(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	NewFilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	Close()
}

type client struct {
	eth *ethclient.Client
	rpc *rpc.Client
}

// Dial connects to network.RPCURL, wrapping the transport with the POA
// header-decoding middleware when network.NeedPOA is set (spec.md §6).
func Dial(ctx context.Context, network domain.Network) (Client, error) {
	httpClient := http.DefaultClient
	if network.NeedPOA {
		httpClient = &http.Client{Transport: NewPOARoundTripper(http.DefaultTransport)}
	}

	rpcClient, err := rpc.DialOptions(ctx, network.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errs.Transientf("rpcclient.Dial", "dial %s: %v", network.RPCURL, err)
	}

	return &client{eth: ethclient.NewClient(rpcClient), rpc: rpcClient}, nil
}

func (c *client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, errs.Transientf("rpcclient.LatestBlock", "%v", err)
	}
	return n, nil
}

func (c *client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, errs.Transientf("rpcclient.BlockByNumber", "block %d: %v", number, err)
	}
	return block, nil
}

func (c *client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, errs.Transientf("rpcclient.TransactionReceipt", "tx %s: %v", txHash.Hex(), err)
	}
	return receipt, nil
}

// GetLogs issues a stateless eth_getLogs call: the no_filters dialect from
// spec.md §4.3.1.
func (c *client) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, errs.Transientf("rpcclient.GetLogs", "%v", err)
	}
	return logs, nil
}

// NewFilterLogs issues the eth_newFilter + eth_getFilterLogs pair: the
// filterable dialect from spec.md §4.3.1. ethclient has no first-class
// wrapper for the stateful filter RPCs, so this goes through the raw
// *rpc.Client the way go-ethereum's own ethclient does internally.
func (c *client) NewFilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	arg, err := toFilterArg(q)
	if err != nil {
		return nil, errs.Transientf("rpcclient.NewFilterLogs", "build filter: %v", err)
	}

	var filterID string
	if err := c.rpc.CallContext(ctx, &filterID, "eth_newFilter", arg); err != nil {
		return nil, errs.Transientf("rpcclient.NewFilterLogs", "eth_newFilter: %v", err)
	}

	var logs []types.Log
	if err := c.rpc.CallContext(ctx, &logs, "eth_getFilterLogs", filterID); err != nil {
		return nil, errs.Transientf("rpcclient.NewFilterLogs", "eth_getFilterLogs: %v", err)
	}
	return logs, nil
}

func (c *client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errs.Transientf("rpcclient.BalanceAt", "%s: %v", account.Hex(), err)
	}
	return balance, nil
}

func (c *client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errs.Transientf("rpcclient.CallContract", "%v", err)
	}
	return out, nil
}

func (c *client) Close() {
	c.eth.Close()
}

func toFilterArg(q ethereum.FilterQuery) (map[string]any, error) {
	arg := map[string]any{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
		return arg, nil
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "0x0"
	} else {
		arg["fromBlock"] = toBlockNumArg(q.FromBlock)
	}
	if q.ToBlock == nil {
		arg["toBlock"] = "latest"
	} else {
		arg["toBlock"] = toBlockNumArg(q.ToBlock)
	}
	return arg, nil
}

func toBlockNumArg(number *big.Int) string {
	return "0x" + number.Text(16)
}
