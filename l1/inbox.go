package l1

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/fork"
	"github.com/taikoxyz/preconf-sequencer/pkg/rpc"
)

// BaseFeeConfig mirrors ITaikoInbox's base fee config tuple, used both to
// compute L2 base fee and to populate anchorV3's base_fee_config argument.
type BaseFeeConfig struct {
	AdjustmentQuotient    uint8
	SharingPctg           uint8
	GasIssuancePerSecond  uint32
	MinGasExcess          uint64
	MaxGasIssuancePerBlock uint32
}

// ProtocolConfig is the subset of on-chain inbox configuration BatchBuilder
// and AnchorBuilder need, read once at start and refreshed on fork switch.
type ProtocolConfig struct {
	BaseFeeConfig          BaseFeeConfig
	MaxBlocksPerBatch      uint16
	MaxAnchorHeightOffset  uint64
	BlockMaxGasLimit       uint32
}

// ForcedInclusionPacaya mirrors IForcedInclusionStore.ForcedInclusion.
type ForcedInclusionPacaya struct {
	BlobHash        common.Hash
	FeeInGwei       uint64
	CreatedAtBatchID uint64
	BlobByteOffset  uint32
	BlobByteSize    uint32
	BlobCreatedIn   uint64
}

// BlobSliceShasta mirrors Shasta's LibBlobs.BlobSlice tuple.
type BlobSliceShasta struct {
	BlobHashes [][32]byte
	Offset     uint32
	Timestamp  uint64
}

// ForcedInclusionShasta mirrors Shasta's {feeInGwei, blobSlice{...}} shape.
type ForcedInclusionShasta struct {
	FeeInGwei uint64
	BlobSlice BlobSliceShasta
}

// InboxClient reads the L1 inbox contract's protocol config, the current
// whitelist operator-for-epoch pair, and the forced-inclusion queue (spec.md
// §2 component 5). It dispatches on fork once at construction rather than
// branching per call (spec.md §9 "capability abstractions").
type InboxClient struct {
	view   *View
	cache  *OperatorsCache
	active fork.Fork

	inboxAddr     common.Address
	forcedIncAddr common.Address

	protocolConfig ProtocolConfig
}

// NewInboxClient constructs an InboxClient bound to a single fork's contract
// addresses. Callers switch forks by constructing a new InboxClient at the
// fork boundary (Orchestrator holds the active one).
func NewInboxClient(view *View, whitelist, inboxAddr, forcedIncAddr common.Address, active fork.Fork) *InboxClient {
	return &InboxClient{
		view:          view,
		cache:         NewOperatorsCache(viewClient(view), whitelist),
		active:        active,
		inboxAddr:     inboxAddr,
		forcedIncAddr: forcedIncAddr,
	}
}

// viewClient extracts the underlying rpc.Client from a View. Kept as a tiny
// accessor rather than exporting View.client, since only NewInboxClient
// needs it (it must share the View's connection for OperatorsCache's batch
// call to land on the same backend, per spec.md §6).
func viewClient(v *View) *rpc.Client { return v.client }

// OperatorsForEpoch returns (current, next) operator, serving from the
// per-L1-slot cache.
func (c *InboxClient) OperatorsForEpoch(ctx context.Context, epochTimestamp, slotTimestamp uint64) (current, next common.Address, err error) {
	return c.cache.GetOperatorsForCurrentAndNextEpoch(ctx, epochTimestamp, slotTimestamp)
}

// FetchProtocolConfig reads and caches the inbox's protocol config. Returns
// the cached value on a RetryTransient failure, per SPEC_FULL.md's
// "handover-window config reload with cached fallback".
func (c *InboxClient) FetchProtocolConfig(ctx context.Context) (ProtocolConfig, error) {
	sel, _ := hex.DecodeString(pacayaGetConfigSelector)
	data, err := c.view.CallContract(ctx, c.inboxAddr, sel, nil)
	if err != nil {
		if c.protocolConfig.MaxBlocksPerBatch != 0 {
			return c.protocolConfig, nil
		}
		return ProtocolConfig{}, err
	}
	cfg, err := decodeProtocolConfig(data)
	if err != nil {
		return ProtocolConfig{}, errs.Wrap(errs.KindDecodeError, err, "failed to decode protocol config")
	}
	c.protocolConfig = cfg
	return cfg, nil
}

// HandoverWindowSlots reads the preconf router's configured handover window,
// falling back to the caller-supplied default on any read error (spec.md
// §4.2 step 2: "refresh handover_window_slots from InboxClient (fallback to
// configured default on error)").
func (c *InboxClient) HandoverWindowSlots(ctx context.Context, routerAddr common.Address, fallback uint64) uint64 {
	sel, _ := hex.DecodeString(preconfRouterGetConfigSelector)
	data, err := c.view.CallContract(ctx, routerAddr, sel, nil)
	if err != nil || len(data) < 32 {
		return fallback
	}
	return new(big.Int).SetBytes(data[:32]).Uint64()
}

// IsRouterActive reads the preconf router's active flag, gating the whole
// OperatorStatus pipeline (spec.md §4.2 step 1: "is_router_active == false:
// reset memory; return all-false").
func (c *InboxClient) IsRouterActive(ctx context.Context, routerAddr common.Address) (bool, error) {
	sel, _ := hex.DecodeString(preconfRouterIsActiveSelector)
	data, err := c.view.CallContract(ctx, routerAddr, sel, nil)
	if err != nil {
		return false, err
	}
	if len(data) < 32 {
		return false, errs.New(errs.KindDecodeError, "isActive response too short")
	}
	return data[31] != 0, nil
}

// ForcedInclusionHead returns the L1 contract's `head()` pointer: the next
// unconsumed forced-inclusion index.
func (c *InboxClient) ForcedInclusionHead(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, forcedIncHeadSelector)
}

// ForcedInclusionTail returns the L1 contract's `tail()` pointer.
func (c *InboxClient) ForcedInclusionTail(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, forcedIncTailSelector)
}

func (c *InboxClient) callUint64(ctx context.Context, selectorHex string) (uint64, error) {
	sel, _ := hex.DecodeString(selectorHex)
	data, err := c.view.CallContract(ctx, c.forcedIncAddr, sel, nil)
	if err != nil {
		return 0, err
	}
	if len(data) < 32 {
		return 0, errs.New(errs.KindDecodeError, "forced inclusion pointer response too short")
	}
	return new(big.Int).SetBytes(data[len(data)-32:]).Uint64(), nil
}

// GetForcedInclusionPacaya reads a single forced-inclusion record by index
// under the Pacaya ABI shape.
func (c *InboxClient) GetForcedInclusionPacaya(ctx context.Context, index uint64) (*ForcedInclusionPacaya, error) {
	uint256Args := abi.Arguments{{Type: uint256Type}}
	encodedIndex, err := uint256Args.Pack(new(big.Int).SetUint64(index))
	if err != nil {
		return nil, fmt.Errorf("failed to encode getForcedInclusion(%d) call: %w", index, err)
	}
	sel, _ := hex.DecodeString(forcedIncGetSelector)
	data, err := c.view.CallContract(ctx, c.forcedIncAddr, append(sel, encodedIndex...), nil)
	if err != nil {
		return nil, err
	}
	if len(data) < 32*6 {
		return nil, errs.New(errs.KindDecodeError, "ForcedInclusion response too short")
	}
	word := func(i int) *big.Int { return new(big.Int).SetBytes(data[i*32 : (i+1)*32]) }
	return &ForcedInclusionPacaya{
		BlobHash:         common.BytesToHash(data[0:32]),
		FeeInGwei:        word(1).Uint64(),
		CreatedAtBatchID: word(2).Uint64(),
		BlobByteOffset:   uint32(word(3).Uint64()),
		BlobByteSize:     uint32(word(4).Uint64()),
		BlobCreatedIn:    word(5).Uint64(),
	}, nil
}

// getForcedInclusionShastaABI holds the Shasta forced-inclusion store's
// getForcedInclusion(uint256) ABI fragment, its return tuple containing a
// dynamic bytes32[] member so it is decoded through go-ethereum's ABI
// unpacker (UnpackIntoInterface) rather than manual word offsets, the same
// way abigen-generated bindings decode dynamic tuples.
var getForcedInclusionShastaABI *abi.ABI

func init() {
	const getForcedInclusionShastaABIJSON = `[{
		"type":"function",
		"name":"getForcedInclusion",
		"inputs":[{"name":"_index","type":"uint256"}],
		"outputs":[{"name":"","type":"tuple","components":[
			{"name":"feeInGwei","type":"uint64"},
			{"name":"blobSlice","type":"tuple","components":[
				{"name":"blobHashes","type":"bytes32[]"},
				{"name":"offset","type":"uint32"},
				{"name":"timestamp","type":"uint64"}
			]}
		]}],
		"stateMutability":"view"
	}]`
	parsed, err := abi.JSON(strings.NewReader(getForcedInclusionShastaABIJSON))
	if err != nil {
		panic(fmt.Errorf("failed to parse shasta getForcedInclusion ABI fragment: %w", err))
	}
	getForcedInclusionShastaABI = &parsed
}

// GetForcedInclusionShasta reads a single forced-inclusion record by index
// under the Shasta ABI shape.
func (c *InboxClient) GetForcedInclusionShasta(ctx context.Context, index uint64) (*ForcedInclusionShasta, error) {
	callData, err := getForcedInclusionShastaABI.Pack("getForcedInclusion", new(big.Int).SetUint64(index))
	if err != nil {
		return nil, fmt.Errorf("failed to encode getForcedInclusion(%d) call: %w", index, err)
	}
	data, err := c.view.CallContract(ctx, c.forcedIncAddr, callData, nil)
	if err != nil {
		return nil, err
	}
	var out ForcedInclusionShasta
	if err := getForcedInclusionShastaABI.UnpackIntoInterface(&out, "getForcedInclusion", data); err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode shasta ForcedInclusion response")
	}
	return &out, nil
}

// The following are the 4-byte keccak256 selectors for the read-only calls
// InboxClient issues. They are computed offline from each function's
// canonical signature the same way bindings/encoding's ABI fragments are
// hand-derived from the inbox interfaces (spec.md §6).
const (
	pacayaGetConfigSelector        = "c3f909d4" // getConfig()
	preconfRouterGetConfigSelector = "23952921" // getConfig() (IPreconfRouter)
	preconfRouterIsActiveSelector  = "82afd23b" // isActive() (IPreconfRouter)
	forcedIncHeadSelector          = "ec7e4ca3" // head()
	forcedIncTailSelector          = "fa7626d4" // tail()
	forcedIncGetSelector           = "3a0a3d98" // getForcedInclusion(uint256)
)

var uint256Type, _ = abi.NewType("uint256", "", nil)

func decodeProtocolConfig(data []byte) (ProtocolConfig, error) {
	if len(data) < 32*8 {
		return ProtocolConfig{}, fmt.Errorf("protocol config response too short: %d bytes", len(data))
	}
	word := func(i int) *big.Int { return new(big.Int).SetBytes(data[i*32 : (i+1)*32]) }
	return ProtocolConfig{
		BaseFeeConfig: BaseFeeConfig{
			AdjustmentQuotient:     uint8(word(0).Uint64()),
			SharingPctg:            uint8(word(1).Uint64()),
			GasIssuancePerSecond:   uint32(word(2).Uint64()),
			MinGasExcess:           word(3).Uint64(),
			MaxGasIssuancePerBlock: uint32(word(4).Uint64()),
		},
		MaxBlocksPerBatch:     uint16(word(5).Uint64()),
		MaxAnchorHeightOffset: word(6).Uint64(),
		BlockMaxGasLimit:      uint32(word(7).Uint64()),
	}, nil
}
