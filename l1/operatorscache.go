package l1

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/rpc"
)

// operatorPair is the (current, next) operator addresses for one epoch,
// keyed by the L1 slot timestamp it was read at.
type operatorPair struct {
	timestamp uint64
	current   common.Address
	next      common.Address
}

// OperatorsCache memoizes PreconfWhitelist.getOperatorForCurrentEpoch /
// getOperatorForNextEpoch per L1 slot timestamp: operators only change once
// per L1 slot (12s) while OperatorStatus is evaluated once per L2 sub-slot
// (2s), so six of every seven calls are redundant without this cache
// (spec.md §5: "OperatorsCache: single-writer, multi-reader; keyed by
// current_slot_timestamp"). Grounded on the Pacaya whitelist's
// OperatorsCache, including its batched eth_getBlockByNumber+eth_call
// request and "too early" freshness check.
type OperatorsCache struct {
	mu    sync.RWMutex
	cache *operatorPair

	client    *rpc.Client
	whitelist common.Address
}

// NewOperatorsCache constructs an empty cache for the given whitelist
// contract address.
func NewOperatorsCache(client *rpc.Client, whitelist common.Address) *OperatorsCache {
	return &OperatorsCache{client: client, whitelist: whitelist}
}

// ErrOperatorCheckTooEarly is returned when the backend's view of "latest"
// has not yet advanced to the epoch boundary the caller is asking about; the
// caller should retry next tick rather than trust a stale read.
var ErrOperatorCheckTooEarly = fmt.Errorf("operator check too early: backend not yet at epoch boundary")

// GetOperatorsForCurrentAndNextEpoch returns (current, next) operator
// addresses, serving from cache when currentSlotTimestamp matches the last
// fetch.
func (c *OperatorsCache) GetOperatorsForCurrentAndNextEpoch(
	ctx context.Context,
	currentEpochTimestamp, currentSlotTimestamp uint64,
) (current, next common.Address, err error) {
	c.mu.RLock()
	if c.cache != nil && c.cache.timestamp == currentSlotTimestamp {
		current, next = c.cache.current, c.cache.next
		c.mu.RUnlock()
		return current, next, nil
	}
	c.mu.RUnlock()

	pair, err := c.fetch(ctx, currentEpochTimestamp)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	c.mu.Lock()
	c.cache = &operatorPair{timestamp: currentSlotTimestamp, current: pair.current, next: pair.next}
	c.mu.Unlock()

	return pair.current, pair.next, nil
}

// preconfWhitelist function selectors: getOperatorForCurrentEpoch() and
// getOperatorForNextEpoch(), both zero-argument view functions.
const (
	selectorGetOperatorForCurrentEpoch = "ec2f1a2f"
	selectorGetOperatorForNextEpoch    = "aa0a1bf7"
)

func (c *OperatorsCache) fetch(ctx context.Context, currentEpochTimestamp uint64) (*operatorPair, error) {
	currentData, _ := hex.DecodeString(selectorGetOperatorForCurrentEpoch)
	nextData, _ := hex.DecodeString(selectorGetOperatorForNextEpoch)

	var (
		blockResult   blockByNumberResult
		currentResult string
		nextResult    string
	)

	elems := []rpc.BatchElem{
		{
			Method: "eth_getBlockByNumber",
			Args:   []any{"latest", false},
			Result: &blockResult,
		},
		{
			Method: "eth_call",
			Args: []any{map[string]any{
				"to":   c.whitelist,
				"data": "0x" + hex.EncodeToString(currentData),
			}, "latest"},
			Result: &currentResult,
		},
		{
			Method: "eth_call",
			Args: []any{map[string]any{
				"to":   c.whitelist,
				"data": "0x" + hex.EncodeToString(nextData),
			}, "latest"},
			Result: &nextResult,
		},
	}

	if err := c.client.BatchCall(ctx, elems); err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "operator lookup batch call failed")
	}
	for i, e := range elems {
		if e.Error != nil {
			return nil, errs.Wrap(errs.KindTransientRpc, e.Error, fmt.Sprintf("operator lookup batch element %d failed", i))
		}
	}

	latestTimestamp, err := blockResult.timestampUint64()
	if err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode latest block timestamp")
	}
	if latestTimestamp < currentEpochTimestamp {
		return nil, ErrOperatorCheckTooEarly
	}

	current, err := decodeAddressReturn(currentResult)
	if err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode current operator")
	}
	next, err := decodeAddressReturn(nextResult)
	if err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode next operator")
	}

	return &operatorPair{current: current, next: next}, nil
}

type blockByNumberResult struct {
	Timestamp string `json:"timestamp"`
}

func (b blockByNumberResult) timestampUint64() (uint64, error) {
	ts, ok := new(big.Int).SetString(strings.TrimPrefix(b.Timestamp, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("malformed block timestamp %q", b.Timestamp)
	}
	return ts.Uint64(), nil
}

// decodeAddressReturn decodes a 32-byte abi-encoded `address` return value
// (left-padded) from its 0x-prefixed hex string.
func decodeAddressReturn(hexStr string) (common.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hex-decode return value: %w", err)
	}
	if len(raw) < 32 {
		return common.Address{}, fmt.Errorf("return value too short: %d bytes", len(raw))
	}
	return common.BytesToAddress(raw[len(raw)-20:]), nil
}
