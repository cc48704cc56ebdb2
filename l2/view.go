// Package l2 provides read-only access to the L2 execution client: current
// head, block-by-number, anchor-tx decoding and the forced-inclusion L1
// origin marker (spec.md §2 component 4, "L2View").
package l2

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/rpc"
	"github.com/taikoxyz/preconf-sequencer/pkg/utils"
)

// View is the read-only L2 query surface BatchBuilder recovery and
// AnchorBuilder depend on.
type View struct {
	client     *rpc.Client
	maxElapsed time.Duration
}

// NewView wraps an already-dialed L2 RPC client.
func NewView(client *rpc.Client) *View {
	return &View{client: client, maxElapsed: 20 * time.Second}
}

func (v *View) retry(ctx context.Context, op func() error) error {
	if err := utils.RetryTransient(ctx, v.maxElapsed, op); err != nil {
		return errs.Wrap(errs.KindTransientRpc, err, "L2 RPC call exhausted retries")
	}
	return nil
}

// HeadNumber returns the current L2 chain head block number.
func (v *View) HeadNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := v.retry(ctx, func() error {
		h, err := v.client.Eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		n = h
		return nil
	})
	return n, err
}

// BlockByNumber fetches a full L2 block (with transaction bodies); number=nil
// means "latest".
func (v *View) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	var block *types.Block
	err := v.retry(ctx, func() error {
		b, err := v.client.Eth.BlockByNumber(ctx, number)
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	return block, err
}

// NonceAtHash returns account's transaction count as of the state rooted at
// blockHash. AnchorBuilder uses this to read the Golden Touch account's
// nonce against the anchor's own parent hash rather than L2 "latest", since
// by the time the anchor tx is signed a later block may already have landed
// (spec.md §4.4: "MUST be queried against the parent hash, never latest").
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
	nonce, ok := new(big.Int).SetString(trimHexPrefix(result), 16)
	if !ok {
		return 0, errs.New(errs.KindDecodeError, fmt.Sprintf("malformed nonce response %q", result))
	}
	return nonce.Uint64(), nil
}

// AnchorTxInput decodes the anchor transaction parameters embedded in block's
// first transaction. BatchBuilder's recovery path uses this to extract the
// proposal id / anchor params of the latest L2 block (spec.md §4.3 "Recovery").
func AnchorTxInput(block *types.Block) ([]byte, error) {
	txs := block.Transactions()
	if len(txs) == 0 {
		return nil, errs.New(errs.KindDecodeError, "block has no anchor transaction")
	}
	return txs[0].Data(), nil
}

// DecodePacayaAnchorV3 decodes an anchorV3(...) call's arguments from the
// first transaction's calldata, using the same selector-stripped raw-word
// approach as l1.decodeProtocolConfig: anchorV3(uint64 anchorBlockId, bytes32
// anchorStateRoot, uint32 parentGasUsed, BaseFeeConfig, uint256[] signalSlots).
func DecodePacayaAnchorV3(data []byte) (anchorBlockID uint64, anchorStateRoot common.Hash, parentGasUsed uint32, err error) {
	if len(data) < 4+32*3 {
		return 0, common.Hash{}, 0, errs.New(errs.KindDecodeError, "anchorV3 calldata too short")
	}
	body := data[4:]
	anchorBlockID = new(big.Int).SetBytes(body[0:32]).Uint64()
	anchorStateRoot = common.BytesToHash(body[32:64])
	parentGasUsed = uint32(new(big.Int).SetBytes(body[64:96]).Uint64())
	return anchorBlockID, anchorStateRoot, parentGasUsed, nil
}

// L1OriginByID mirrors `taiko_l1OriginByID(blockId) -> {isForcedInclusion}`,
// used to validate forced-inclusion recovery (spec.md §6, SPEC_FULL.md C.4).
type L1Origin struct {
	IsForcedInclusion bool `json:"isForcedInclusion"`
}

func (v *View) L1OriginByID(ctx context.Context, blockID uint64) (*L1Origin, error) {
	var raw json.RawMessage
	err := v.retry(ctx, func() error {
		return v.client.Raw.CallContext(ctx, &raw, "taiko_l1OriginByID", fmt.Sprintf("%d", blockID))
	})
	if err != nil {
		return nil, err
	}
	var origin L1Origin
	if err := json.Unmarshal(raw, &origin); err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode taiko_l1OriginByID response")
	}
	return &origin, nil
}

// headL1OriginResponse mirrors `taiko_headL1Origin -> {blockID: "0x..."}`.
type headL1OriginResponse struct {
	BlockID string `json:"blockID"`
}

// HeadL1Origin returns the block id of the L2 head's L1 origin record.
func (v *View) HeadL1Origin(ctx context.Context) (uint64, error) {
	var resp headL1OriginResponse
	err := v.retry(ctx, func() error {
		return v.client.Raw.CallContext(ctx, &resp, "taiko_headL1Origin")
	})
	if err != nil {
		return 0, err
	}
	id, ok := new(big.Int).SetString(trimHexPrefix(resp.BlockID), 16)
	if !ok {
		return 0, errs.New(errs.KindDecodeError, fmt.Sprintf("malformed taiko_headL1Origin blockID %q", resp.BlockID))
	}
	return id.Uint64(), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
