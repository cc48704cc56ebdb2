// Package l1 provides read-only access to the L1 chain: height, headers,
// logs, account state and raw contract calls (spec.md §2 component 3,
// "L1View"), plus the operator-lookup and forced-inclusion readers built on
// top of it (l1/inbox.go, l1/operatorscache.go).
package l1

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/rpc"
	"github.com/taikoxyz/preconf-sequencer/pkg/utils"
)

// DefaultRetryBudget bounds how long a single L1View call may spend retrying
// a TransientRpc failure before giving up (spec.md §5: "no call is unbounded").
const DefaultRetryBudget = 30 * time.Second

// View is the read-only L1 query surface every other component depends on.
type View struct {
	client     *rpc.Client
	maxElapsed time.Duration
}

// NewView wraps an already-dialed RPC client.
func NewView(client *rpc.Client) *View {
	return &View{client: client, maxElapsed: DefaultRetryBudget}
}

func (v *View) retry(ctx context.Context, op func() error) error {
	if err := utils.RetryTransient(ctx, v.maxElapsed, op); err != nil {
		return errs.Wrap(errs.KindTransientRpc, err, "L1 RPC call exhausted retries")
	}
	return nil
}

// ChainHeight returns the current L1 block number.
func (v *View) ChainHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := v.retry(ctx, func() error {
		h, err := v.client.Eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return height, err
}

// HeaderByNumber fetches a block header; number=nil means "latest".
func (v *View) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := v.retry(ctx, func() error {
		h, err := v.client.Eth.HeaderByNumber(ctx, number)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	return header, err
}

// FilterLogs fetches logs matching q, retrying transient RPC errors.
func (v *View) FilterLogs(ctx context.Context, q types.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := v.retry(ctx, func() error {
		l, err := v.client.Eth.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	return logs, err
}

// NonceAt returns account's transaction count at the given block (nil =
// latest). AnchorBuilder instead uses NonceAtHash, since it must read against
// the parent hash specifically (spec.md §4.4) — this variant serves
// TxMonitor's "pending" nonce reads.
func (v *View) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	var nonce uint64
	err := v.retry(ctx, func() error {
		n, err := v.client.Eth.NonceAt(ctx, account, blockNumber)
		if err != nil {
			return err
		}
		nonce = n
		return nil
	})
	return nonce, err
}

// NonceAtHash returns account's transaction count as of the state rooted at
// blockHash. go-ethereum's NonceAt only accepts a block number, so this goes
// through the raw JSON-RPC client with the hash wrapped per EIP-1898.
func (v *View) NonceAtHash(ctx context.Context, account common.Address, blockHash common.Hash) (uint64, error) {
	var result string
	err := v.retry(ctx, func() error {
		return v.client.Raw.CallContext(ctx, &result, "eth_getTransactionCount", account, map[string]any{
			"blockHash": blockHash,
		})
	})
	if err != nil {
		return 0, err
	}
	nonce, ok := new(big.Int).SetString(stripHexPrefix(result), 16)
	if !ok {
		return 0, errs.New(errs.KindDecodeError, fmt.Sprintf("malformed nonce response %q", result))
	}
	return nonce.Uint64(), nil
}

// BalanceAt returns account's wei balance at the given block (nil = latest).
func (v *View) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	var balance *big.Int
	err := v.retry(ctx, func() error {
		b, err := v.client.Eth.BalanceAt(ctx, account, blockNumber)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	return balance, err
}

// CallContract performs an eth_call against to/data at the given block (nil =
// latest). Used by InboxClient for single (non-batched) contract reads.
func (v *View) CallContract(ctx context.Context, to common.Address, data []byte, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := v.retry(ctx, func() error {
		res, err := v.client.Eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockNumber)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// EstimateGas estimates gas for a pending transaction, without retry: gas
// estimation reverts are classified by the caller (TxMonitor) into
// EstimationTooEarly / EstimationFailed / FatalRevert, not retried blindly.
func (v *View) EstimateGas(ctx context.Context, to, from common.Address, data []byte, value *big.Int) (uint64, error) {
	return v.client.Eth.EstimateGas(ctx, ethereum.CallMsg{To: &to, From: from, Data: data, Value: value})
}

// SuggestGasTipCap and SuggestGasPrice feed TxMonitor's fee strategy.
func (v *View) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip *big.Int
	err := v.retry(ctx, func() error {
		t, err := v.client.Eth.SuggestGasTipCap(ctx)
		if err != nil {
			return err
		}
		tip = t
		return nil
	})
	return tip, err
}

func (v *View) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return v.client.Eth.TransactionReceipt(ctx, txHash)
}

func (v *View) TraceTransaction(ctx context.Context, txHash common.Hash, result any) error {
	return v.client.Raw.CallContext(ctx, result, "debug_traceTransaction", txHash, map[string]any{"tracer": "callTracer"})
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
