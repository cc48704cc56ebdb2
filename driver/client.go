// Package driver talks to the L2 execution-layer driver's JSON-RPC surface:
// submitting preconfirmed block bodies and reading back its sync status
// (spec.md §2 component 8, "DriverClient"; §4.5, §6).
package driver

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/taikoxyz/preconf-sequencer/batchbuilder"
	"github.com/taikoxyz/preconf-sequencer/operator"
	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/rpc"
)

// Intent selects which of the driver's two accept paths preconfBlocks takes
// (spec.md §4.5: "preconf_blocks(req, intent ∈ {Preconfirm, Reanchor})").
type Intent string

const (
	Preconfirm Intent = "PRECONFIRM"
	Reanchor   Intent = "REANCHOR"
)

// ExecutableData is exactly the L2 block body the driver accepts (spec.md
// §4.5: "req.executable_data").
type ExecutableData struct {
	BaseFeePerGas *big.Int
	BlockNumber   uint64
	ExtraData     [2]byte
	FeeRecipient  common.Address
	GasLimit      uint64
	ParentHash    common.Hash
	Timestamp     uint64
	TxListBytes   []byte // RLP-encoded, zlib-compressed.
}

// PackExtraData builds the 2-byte extra_data word (spec.md §4.5:
// "(basefee_sharing_pctg<<8) | is_low_bond").
func PackExtraData(basefeeSharingPctg uint8, isLowBond bool) [2]byte {
	var lowBond uint8
	if isLowBond {
		lowBond = 1
	}
	return [2]byte{basefeeSharingPctg, lowBond}
}

// preconfBlocksRequest mirrors the driver's preconfBlocks JSON-RPC param
// object (spec.md §6: "{executable_data, end_of_sequencing,
// is_forced_inclusion}").
type preconfBlocksRequest struct {
	ExecutableData   executableDataJSON `json:"executableData"`
	EndOfSequencing  bool               `json:"endOfSequencing"`
	IsForcedInclusion bool              `json:"isForcedInclusion"`
	Intent           Intent             `json:"intent"`
}

type executableDataJSON struct {
	BaseFeePerGas string `json:"baseFeePerGas"`
	BlockNumber   string `json:"blockNumber"`
	ExtraData     string `json:"extraData"`
	FeeRecipient  string `json:"feeRecipient"`
	GasLimit      string `json:"gasLimit"`
	ParentHash    string `json:"parentHash"`
	Timestamp     string `json:"timestamp"`
	TxListBytes   string `json:"txListBytes"`
}

func (d ExecutableData) toJSON() executableDataJSON {
	return executableDataJSON{
		BaseFeePerGas: hexBig(d.BaseFeePerGas),
		BlockNumber:   hexUint(d.BlockNumber),
		ExtraData:     "0x" + hex.EncodeToString(d.ExtraData[:]),
		FeeRecipient:  d.FeeRecipient.Hex(),
		GasLimit:      hexUint(d.GasLimit),
		ParentHash:    d.ParentHash.Hex(),
		Timestamp:     hexUint(d.Timestamp),
		TxListBytes:   "0x" + hex.EncodeToString(d.TxListBytes),
	}
}

func hexUint(v uint64) string { return fmt.Sprintf("0x%x", v) }

func hexBig(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", v)
}

// CompressTxList RLP-encodes then zlib-compresses a list of raw signed
// transactions, the payload shape req.executable_data.tx_list_bytes expects
// (spec.md §4.5).
func CompressTxList(rlpEncodable any) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(rlpEncodable)
	if err != nil {
		return nil, fmt.Errorf("failed to rlp-encode tx list: %w", err)
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to zlib-compress tx list: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush zlib writer: %w", err)
	}
	return buf.Bytes(), nil
}

// statusResponse mirrors the driver's taikoStatus response (spec.md §6:
// "taikoStatus → {endOfSequencingBlockHash, highestUnsafeL2PayloadBlockId}").
type statusResponse struct {
	EndOfSequencingBlockHash      common.Hash `json:"endOfSequencingBlockHash"`
	HighestUnsafeL2PayloadBlockID string      `json:"highestUnsafeL2PayloadBlockId"`
}

// Client is the authenticated JSON-RPC surface against the L2 driver.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the driver's authenticated JSON-RPC endpoint. secret is
// the 32-byte JWT secret read via jwt.ParseSecretFromFile; node.NewJWTAuth
// mints and attaches a fresh bearer token on every outgoing request, so the
// Client never has to manage token freshness itself.
func Dial(ctx context.Context, url string, secret []byte) (*Client, error) {
	var key [32]byte
	copy(key[:], secret)

	client, err := rpc.Dial(ctx, url, rpc.WithHTTPAuth(node.NewJWTAuth(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to dial L2 driver endpoint %s: %w", url, err)
	}
	return &Client{rpc: client}, nil
}

// PreconfBlocks submits one L2 block to the driver under the given intent.
// A non-nil error is always either KindDriverRejectedRecoverable (caller
// should undo the BatchBuilder append) or KindDriverRejectedFatal (caller
// should critical-cancel), per spec.md §7.
func (c *Client) PreconfBlocks(ctx context.Context, data ExecutableData, intent Intent, endOfSequencing, isForcedInclusion bool) error {
	req := preconfBlocksRequest{
		ExecutableData:    data.toJSON(),
		EndOfSequencing:   endOfSequencing,
		IsForcedInclusion: isForcedInclusion,
		Intent:            intent,
	}

	var raw json.RawMessage
	callCtx, cancel := c.rpc.WithTimeoutContext(ctx)
	defer cancel()
	if err := c.rpc.Raw.CallContext(callCtx, &raw, "preconfBlocks", req); err != nil {
		return classifyDriverError(err)
	}
	return nil
}

// classifyDriverError maps a raw JSON-RPC error from preconfBlocks into the
// DriverRejected taxonomy (spec.md §7). Unknown-parent and similarly
// unrecoverable shapes are fatal; everything else recoverable.
func classifyDriverError(err error) error {
	msg := err.Error()
	for _, fatal := range []string{"unknown parent", "invalid chain", "reorg"} {
		if strings.Contains(msg, fatal) {
			return errs.Wrap(errs.KindDriverRejectedFatal, err, "driver rejected block: unrecoverable")
		}
	}
	return errs.Wrap(errs.KindDriverRejectedRecoverable, err, "driver rejected block")
}

// TaikoStatus reads the driver's current sync status, feeding
// operator.Inputs.Driver each tick (spec.md §4.8 step 3).
func (c *Client) TaikoStatus(ctx context.Context) (operator.DriverStatus, error) {
	var resp statusResponse
	callCtx, cancel := c.rpc.WithTimeoutContext(ctx)
	defer cancel()
	if err := c.rpc.Raw.CallContext(callCtx, &resp, "taikoStatus"); err != nil {
		return operator.DriverStatus{}, errs.Wrap(errs.KindTransientRpc, err, "failed to read taikoStatus")
	}

	blockID, ok := new(big.Int).SetString(trimHexPrefix(resp.HighestUnsafeL2PayloadBlockID), 16)
	if !ok {
		log.Warn("malformed taikoStatus highestUnsafeL2PayloadBlockId, treating as zero", "raw", resp.HighestUnsafeL2PayloadBlockID)
		blockID = new(big.Int)
	}

	return operator.DriverStatus{
		HighestUnsafeL2PayloadBlockID: blockID.Uint64(),
		EndOfSequencingBlockHash:      resp.EndOfSequencingBlockHash,
	}, nil
}

// txPoolContentResponse mirrors the driver's txPoolContentWithMinTip
// response: one pre-built transaction list per max-bytes-size chunk.
type txPoolContentResponse struct {
	TxLists []struct {
		Transactions     json.RawMessage `json:"txs"`
		EstimatedGasUsed uint64          `json:"estimatedGasUsed"`
		BytesLength      uint64          `json:"bytesLength"`
	} `json:"txLists"`
}

// PendingTxList pulls the single highest-priority pre-built transaction list
// from the driver's mempool, bounded by maxBytes and maxGas (spec.md §4.8
// step 5: "pulls a pending tx list from the driver"). Returns nil if the pool
// has nothing worth including this tick.
func (c *Client) PendingTxList(ctx context.Context, beneficiary common.Address, maxBytes uint64, maxGas uint64, minTipWei uint64) (*batchbuilder.PreBuiltTxList, error) {
	var resp txPoolContentResponse
	callCtx, cancel := c.rpc.WithTimeoutContext(ctx)
	defer cancel()
	if err := c.rpc.Raw.CallContext(callCtx, &resp, "txPoolContentWithMinTip",
		beneficiary, maxBytes, maxGas, minTipWei,
	); err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "failed to read pending tx pool content")
	}
	if len(resp.TxLists) == 0 {
		return nil, nil
	}

	first := resp.TxLists[0]
	var txs types.Transactions
	if len(first.Transactions) > 0 {
		if err := json.Unmarshal(first.Transactions, &txs); err != nil {
			return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode pending tx list")
		}
	}
	return &batchbuilder.PreBuiltTxList{
		Transactions:     txs,
		EstimatedGasUsed: first.EstimatedGasUsed,
		BytesLength:      first.BytesLength,
	}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
