// Package balance implements the get_balance(holder) contract from
// spec.md §4.4: one Caller per token type, each returning the delta rows
// a worker cycle should persist, never a partial write on RPC failure.
package balance

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	gethabi "github.com/csic-platform/evm-indexer/internal/abi"
	"github.com/csic-platform/evm-indexer/internal/domain"
	"github.com/csic-platform/evm-indexer/internal/errs"
	"github.com/csic-platform/evm-indexer/internal/rpcclient"
)

// Reader is the narrow slice of store.Persistence the enumerable diff-guard
// and the upsert-if-changed callers need: the previously persisted state
// for one (token, holder) pair. Declared here rather than imported from
// store to keep balance free of a dependency on the persistence layer's
// concrete driver.
type Reader interface {
	CurrentAmount(ctx context.Context, tokenID int64, holder string) (*big.Int, bool, error)
	CurrentTokenIDs(ctx context.Context, tokenID int64, holder string) ([]*big.Int, error)
}

// Caller is the common contract every balance extraction strategy
// implements (spec.md §4.4).
type Caller interface {
	GetBalance(ctx context.Context, holder string) ([]domain.TokenBalance, error)
}

// New builds the Caller matching token.Type.
func New(client rpcclient.Client, reader Reader, network domain.Network, token domain.Token, trackedBy int64, logger *zap.Logger) (Caller, error) {
	switch token.Type {
	case domain.TokenNative:
		return &nativeCaller{client: client, reader: reader, token: token, trackedBy: trackedBy, logger: logger}, nil
	case domain.TokenERC20, domain.TokenERC777:
		contractABI, err := gethabi.Load(token.Type)
		if err != nil {
			return nil, err
		}
		return &contractBalanceCaller{
			client: client, reader: reader, token: token, trackedBy: trackedBy, logger: logger,
			abi: contractABI, address: common.HexToAddress(*token.Address),
		}, nil
	case domain.TokenERC721:
		contractABI, err := gethabi.Load(token.Type)
		if err != nil {
			return nil, err
		}
		return &contractBalanceCaller{
			client: client, reader: reader, token: token, trackedBy: trackedBy, logger: logger,
			abi: contractABI, address: common.HexToAddress(*token.Address),
		}, nil
	case domain.TokenERC721Enumerable:
		contractABI, err := gethabi.Load(token.Type)
		if err != nil {
			return nil, err
		}
		return &enumerableCaller{
			client: client, reader: reader, token: token, trackedBy: trackedBy, logger: logger,
			abi: contractABI, address: common.HexToAddress(*token.Address),
		}, nil
	default:
		return nil, errs.Configurationf("balance.New", "token %q: type %q has no balance caller", token.Name, token.Type)
	}
}

// nativeCaller calls eth_getBalance and upserts one row if changed
// (spec.md §4.4 NativeBalanceCaller).
type nativeCaller struct {
	client    rpcclient.Client
	reader    Reader
	token     domain.Token
	trackedBy int64
	logger    *zap.Logger
}

func (c *nativeCaller) GetBalance(ctx context.Context, holder string) ([]domain.TokenBalance, error) {
	amount, err := c.client.BalanceAt(ctx, common.HexToAddress(holder))
	if err != nil {
		c.logger.Warn("native balance call failed", zap.String("holder", holder), zap.Error(err))
		return nil, nil
	}
	return upsertIfChanged(ctx, c.reader, c.token.ID, holder, amount, c.trackedBy)
}

// contractBalanceCaller covers ERC-20/ERC-777's balanceOf and ERC-721's
// balanceOf-as-count: both are a single eth_call with an upsert-if-changed
// write (spec.md §4.4 ERC20BalanceCaller, ERC721BalanceCaller).
type contractBalanceCaller struct {
	client    rpcclient.Client
	reader    Reader
	token     domain.Token
	trackedBy int64
	logger    *zap.Logger
	abi       abi.ABI
	address   common.Address
}

func (c *contractBalanceCaller) GetBalance(ctx context.Context, holder string) ([]domain.TokenBalance, error) {
	amount, err := callBalanceOf(ctx, c.client, c.abi, c.address, holder)
	if err != nil {
		c.logger.Warn("balanceOf call failed", zap.String("holder", holder), zap.String("token", c.token.Name), zap.Error(err))
		return nil, nil
	}
	return upsertIfChanged(ctx, c.reader, c.token.ID, holder, amount, c.trackedBy)
}

// enumerableCaller implements the set-diff rule: delete stale token ids,
// insert new ones, never update in place (spec.md §4.4
// ERC721EnumerableBalanceCaller; Open Question 3 resolves the diff-guard
// to require BOTH sides empty before skipping, not either side).
type enumerableCaller struct {
	client    rpcclient.Client
	reader    Reader
	token     domain.Token
	trackedBy int64
	logger    *zap.Logger
	abi       abi.ABI
	address   common.Address
}

// Delta marks an enumerable balance row for deletion (ToAdd=false) or
// insertion (ToAdd=true); the indexer worker applies it directly.
type Delta struct {
	Row   domain.TokenBalance
	ToAdd bool
}

func (c *enumerableCaller) GetBalance(ctx context.Context, holder string) ([]domain.TokenBalance, error) {
	deltas, err := c.Diff(ctx, holder)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.TokenBalance, 0, len(deltas))
	for _, d := range deltas {
		rows = append(rows, d.Row)
	}
	return rows, nil
}

// Diff exposes the raw add/remove deltas so the worker can route deletes
// and inserts to the store's distinct delete/insert calls.
func (c *enumerableCaller) Diff(ctx context.Context, holder string) ([]Delta, error) {
	count, err := callBalanceOf(ctx, c.client, c.abi, c.address, holder)
	if err != nil {
		c.logger.Warn("enumerable balanceOf call failed", zap.String("holder", holder), zap.String("token", c.token.Name), zap.Error(err))
		return nil, nil
	}

	current, err := c.currentTokenIDs(ctx, holder, count)
	if err != nil {
		c.logger.Warn("tokenOfOwnerByIndex call failed", zap.String("holder", holder), zap.String("token", c.token.Name), zap.Error(err))
		return nil, nil
	}

	stored, err := c.reader.CurrentTokenIDs(ctx, c.token.ID, holder)
	if err != nil {
		return nil, errs.Transientf("balance.enumerableCaller.Diff", "%v", err)
	}

	toAdd, toRemove := diffTokenIDs(stored, current)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil, nil
	}

	deltas := make([]Delta, 0, len(toAdd)+len(toRemove))
	for _, id := range toRemove {
		deltas = append(deltas, Delta{Row: domain.TokenBalance{
			TokenID: c.token.ID, Holder: holder, TokenIDRef: id, TrackedBy: c.trackedBy,
		}})
	}
	for _, id := range toAdd {
		deltas = append(deltas, Delta{ToAdd: true, Row: domain.TokenBalance{
			TokenID: c.token.ID, Holder: holder, TokenIDRef: id, TrackedBy: c.trackedBy,
		}})
	}
	return deltas, nil
}

func (c *enumerableCaller) currentTokenIDs(ctx context.Context, holder string, count *big.Int) ([]*big.Int, error) {
	if !count.IsInt64() {
		return nil, errs.Transientf("balance.enumerableCaller", "holder %s: balance too large to enumerate", holder)
	}
	n := count.Int64()
	ids := make([]*big.Int, 0, n)
	for i := int64(0); i < n; i++ {
		id, err := callTokenOfOwnerByIndex(ctx, c.client, c.abi, c.address, holder, big.NewInt(i))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// upsertIfChanged reads the currently stored amount and returns a single
// delta row only when it differs, per spec.md §4.4's idempotent-on-no-change
// rule shared by native/ERC-20/ERC-721 callers.
func upsertIfChanged(ctx context.Context, reader Reader, tokenID int64, holder string, amount *big.Int, trackedBy int64) ([]domain.TokenBalance, error) {
	stored, found, err := reader.CurrentAmount(ctx, tokenID, holder)
	if err != nil {
		return nil, errs.Transientf("balance.upsertIfChanged", "%v", err)
	}
	if found && stored != nil && stored.Cmp(amount) == 0 {
		return nil, nil
	}
	return []domain.TokenBalance{{
		TokenID:   tokenID,
		Holder:    holder,
		Amount:    amount,
		TrackedBy: trackedBy,
	}}, nil
}

func callBalanceOf(ctx context.Context, client rpcclient.Client, contractABI abi.ABI, address common.Address, holder string) (*big.Int, error) {
	input, err := contractABI.Pack("balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, errs.Transientf("balance.callBalanceOf", "pack: %v", err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &address, Data: input})
	if err != nil {
		return nil, err
	}
	results, err := contractABI.Unpack("balanceOf", out)
	if err != nil || len(results) == 0 {
		return nil, errs.Transientf("balance.callBalanceOf", "unpack: %v", err)
	}
	amount, ok := results[0].(*big.Int)
	if !ok {
		return nil, errs.Transientf("balance.callBalanceOf", "unexpected return type")
	}
	return amount, nil
}

func callTokenOfOwnerByIndex(ctx context.Context, client rpcclient.Client, contractABI abi.ABI, address common.Address, holder string, index *big.Int) (*big.Int, error) {
	input, err := contractABI.Pack("tokenOfOwnerByIndex", common.HexToAddress(holder), index)
	if err != nil {
		return nil, errs.Transientf("balance.callTokenOfOwnerByIndex", "pack: %v", err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &address, Data: input})
	if err != nil {
		return nil, err
	}
	results, err := contractABI.Unpack("tokenOfOwnerByIndex", out)
	if err != nil || len(results) == 0 {
		return nil, errs.Transientf("balance.callTokenOfOwnerByIndex", "unpack: %v", err)
	}
	id, ok := results[0].(*big.Int)
	if !ok {
		return nil, errs.Transientf("balance.callTokenOfOwnerByIndex", "unexpected return type")
	}
	return id, nil
}

// diffTokenIDs computes current-minus-stored (toAdd) and stored-minus-current
// (toRemove) over big.Int sets, keyed by decimal string since *big.Int
// values aren't comparable as map keys directly.
func diffTokenIDs(stored, current []*big.Int) (toAdd, toRemove []*big.Int) {
	storedSet := make(map[string]*big.Int, len(stored))
	for _, id := range stored {
		storedSet[id.String()] = id
	}
	currentSet := make(map[string]*big.Int, len(current))
	for _, id := range current {
		currentSet[id.String()] = id
	}

	for key, id := range currentSet {
		if _, ok := storedSet[key]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for key, id := range storedSet {
		if _, ok := currentSet[key]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}
