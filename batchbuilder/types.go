// Package batchbuilder accumulates preconfirmed L2 blocks into one in-flight
// batch, enforces the size/block-count/time-shift/anchor-offset limits,
// enqueues finalized batches, and tracks the recovery pointer used after a
// restart (spec.md §2 component 9, "BatchBuilder"; §4.3).
package batchbuilder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MinAnchorOffset is the floor on how far behind L1 head an anchor block may
// be (spec.md §3, "AnchorBlockInfo").
const MinAnchorOffset = 2

// AnchorGasLimit is the protocol-fixed gas an anchor transaction consumes,
// subtracted from parent_gas_limit to get parent_gas_limit_without_anchor
// (spec.md §3, "L2SlotInfo").
const AnchorGasLimit = 1_000_000

// Limits bounds one batch's growth, sourced from the active fork's protocol
// config (l1.ProtocolConfig) plus the node's local configuration.
type Limits struct {
	MaxBytesSizeOfBatch        uint64
	MaxBlocksPerBatch          uint16
	MaxTimeShiftBetweenBlocks  uint8
	MaxAnchorHeightOffsetSlots uint64
	L1SlotDurationSec          uint64
}

// L2SlotInfo is the per-tick L2 execution state BatchBuilder and
// AnchorBuilder both read (spec.md §3, "L2SlotInfo").
type L2SlotInfo struct {
	BaseFee                      *big.Int
	SlotTimestampSec             uint64
	ParentID                     uint64
	ParentHash                   common.Hash
	ParentGasUsed                uint32
	ParentGasLimitWithoutAnchor  uint64
	ParentTimestampSec           uint64
}

// AnchorBlockInfo is the L1 block a batch's blocks are anchored against
// (spec.md §3, "AnchorBlockInfo").
type AnchorBlockInfo struct {
	ID          uint64
	TimestampSec uint64
	Hash        common.Hash
	StateRoot   common.Hash
}

// PreBuiltTxList is an ordered sequence of already-signed L2 transactions
// pulled from the driver, plus the metadata BatchBuilder's invariants need
// (spec.md §3, "PreBuiltTxList").
type PreBuiltTxList struct {
	Transactions      types.Transactions
	EstimatedGasUsed  uint64
	BytesLength       uint64
}

// L2Block is one preconfirmed block inside a batch (spec.md §3, "L2Block").
type L2Block struct {
	TxList        PreBuiltTxList
	TimestampSec  uint64
}

// Batch is the in-flight or finalized accumulator invariants apply to at
// finalization time (spec.md §3, "Batch / Proposal").
type Batch struct {
	ID                  uint64
	Coinbase            common.Address
	Anchor              AnchorBlockInfo
	NumForcedInclusion   uint8
	L2Blocks            []L2Block
	BondInstructions    [][]byte // Shasta-only; nil on Pacaya.

	totalBytes uint64
}

// TotalBytes is the sum of every block's tx-list byte length plus the
// forced-inclusion placeholder, if any.
func (b *Batch) TotalBytes() uint64 { return b.totalBytes }

// State is a Batch's position in the lifecycle spec.md §3 names.
type State int

const (
	StateInFlight State = iota
	StateFinalized
	StateSubmitting
	StateAccepted
	StateRejectedRecoverable
	StateRejectedFatal
)

func (s State) String() string {
	switch s {
	case StateInFlight:
		return "InFlight"
	case StateFinalized:
		return "Finalized"
	case StateSubmitting:
		return "Submitting"
	case StateAccepted:
		return "Accepted"
	case StateRejectedRecoverable:
		return "RejectedRecoverable"
	case StateRejectedFatal:
		return "RejectedFatal"
	default:
		return "Unknown"
	}
}
