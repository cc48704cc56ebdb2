// Package anchor builds the deterministic anchor transaction that must
// prefix every L2 block (spec.md §2 component 7, "AnchorBuilder"; §4.4).
package anchor

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/taikoxyz/preconf-sequencer/bindings/encoding"
	"github.com/taikoxyz/preconf-sequencer/l1"
	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/fork"
	"github.com/taikoxyz/preconf-sequencer/signer"
)

// anchorGasLimit is the protocol-fixed gas limit for every anchor
// transaction (spec.md §3, §4.4).
const anchorGasLimit = 1_000_000

// L2SlotInfo is the minimal slice of batchbuilder.L2SlotInfo AnchorBuilder
// needs; defined locally to avoid an import cycle with batchbuilder (which
// itself calls into AnchorBuilder indirectly via the Orchestrator).
type L2SlotInfo struct {
	BaseFee    *big.Int
	ParentHash common.Hash
	ParentID   uint64
}

// AnchorBlock is the L1 anchor point a block is built against.
type AnchorBlock struct {
	ID        uint64
	Timestamp uint64
	Hash      common.Hash
	StateRoot common.Hash
}

// Builder constructs fork-specific anchor transactions, signed by the fixed
// Golden Touch key (spec.md §4.4: "same contract" across both forks).
type Builder struct {
	l2Anchor     common.Address
	shastaAnchor common.Address
	l2View       nonceReader
	golden       *signer.GoldenTouchSigner
	chainID      *big.Int
	active       fork.Fork
	baseFeeCfg   l1.BaseFeeConfig
}

// nonceReader is the minimal L2View surface needed: reading the Golden
// Touch account's nonce as of a specific parent hash (spec.md §4.4: "MUST be
// queried against the parent hash, never latest").
type nonceReader interface {
	NonceAtHash(ctx context.Context, account common.Address, blockHash common.Hash) (uint64, error)
}

// NewBuilder constructs an AnchorBuilder for the given fork.
func NewBuilder(l2Anchor, shastaAnchor common.Address, l2View nonceReader, golden *signer.GoldenTouchSigner, chainID *big.Int, active fork.Fork, baseFeeCfg l1.BaseFeeConfig) *Builder {
	return &Builder{
		l2Anchor:     l2Anchor,
		shastaAnchor: shastaAnchor,
		l2View:       l2View,
		golden:       golden,
		chainID:      chainID,
		active:       active,
		baseFeeCfg:   baseFeeCfg,
	}
}

// ConstructAnchorTx builds, signs and returns the anchor transaction for the
// active fork. parentGasUsed and signalSlots are only meaningful for the
// fork that consumes them; callers pass zero values for the other.
func (b *Builder) ConstructAnchorTx(ctx context.Context, slot L2SlotInfo, anchorBlock AnchorBlock, parentGasUsed uint32, signalSlots [][32]byte) (*types.Transaction, error) {
	nonce, err := b.l2View.NonceAtHash(ctx, signer.GoldenTouchAddress, slot.ParentHash)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "failed to read golden touch nonce at parent hash")
	}

	var (
		to   common.Address
		data []byte
	)
	switch b.active {
	case fork.Pacaya:
		to = b.l2Anchor
		data, err = encodeAnchorV3(anchorBlock, parentGasUsed, b.baseFeeCfg)
	case fork.Shasta:
		to = b.shastaAnchor
		data, err = encodeAnchorV4WithSignalSlots(anchorBlock, signalSlots)
	default:
		return nil, errs.New(errs.KindCritical, "unknown fork in AnchorBuilder")
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to encode anchor payload")
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.chainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(0),
		GasFeeCap: new(big.Int).Set(slot.BaseFee),
		Gas:       anchorGasLimit,
		To:        &to,
		Data:      data,
	})

	signed, err := b.golden.SignTx(tx)
	if err != nil {
		return nil, errs.Wrap(errs.KindCritical, err, "failed to sign anchor transaction")
	}
	return signed, nil
}

func encodeAnchorV3(anchorBlock AnchorBlock, parentGasUsed uint32, cfg l1.BaseFeeConfig) ([]byte, error) {
	return encoding.EncodeAnchorV3(encoding.AnchorV3Params{
		AnchorBlockID:     anchorBlock.ID,
		AnchorStateRoot:   anchorBlock.StateRoot,
		ParentGasUsed:     parentGasUsed,
		BaseFeeConfig:     encoding.BaseFeeConfig(cfg),
		SignalSlots:       nil,
	})
}

func encodeAnchorV4WithSignalSlots(anchorBlock AnchorBlock, signalSlots [][32]byte) ([]byte, error) {
	return encoding.EncodeAnchorV4WithSignalSlots(encoding.Checkpoint{
		BlockNumber: anchorBlock.ID,
		BlockHash:   anchorBlock.Hash,
		StateRoot:   anchorBlock.StateRoot,
	}, signalSlots)
}
