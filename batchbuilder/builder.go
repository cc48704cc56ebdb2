package batchbuilder

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
)

// Builder accumulates L2 blocks into a single in-flight Batch, finalizes it
// into a FIFO submit queue, and tracks the forced-inclusion recovery pointer.
// Mutated only by the Orchestrator (spec.md §5: "BatchBuilder: mutated only
// by the Orchestrator").
type Builder struct {
	mu sync.Mutex

	limits   Limits
	nextID   uint64
	current  *Batch
	queue    []*Batch
	lastAnchorUsed uint64
}

// New constructs an empty Builder. nextID seeds the first batch's id, used
// by recovery to resume the proposal-id sequence after a restart.
func New(limits Limits, nextID uint64) *Builder {
	return &Builder{limits: limits, nextID: nextID}
}

// HasBatches reports whether the finalized queue is non-empty.
func (b *Builder) HasBatches() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) > 0
}

// HasCurrentBatch reports whether a batch is currently in flight (open for
// new blocks). A false return means the next call site must open one via
// CreateNewBatch before adding a block.
func (b *Builder) HasCurrentBatch() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil
}

// RemainingByteBudget reports how many more tx-list bytes the current batch
// can accept before hitting MaxBytesSizeOfBatch. With no current batch, the
// full per-batch budget is available.
func (b *Builder) RemainingByteBudget() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return b.limits.MaxBytesSizeOfBatch
	}
	if b.current.totalBytes >= b.limits.MaxBytesSizeOfBatch {
		return 0
	}
	return b.limits.MaxBytesSizeOfBatch - b.current.totalBytes
}

// CanConsumeL2Block reports whether appending block to the current batch
// keeps all finalization invariants, including the u8 time-shift fit
// (spec.md §4.3: "can_consume_l2_block").
func (b *Builder) CanConsumeL2Block(block L2Block) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canConsumeLocked(block)
}

func (b *Builder) canConsumeLocked(block L2Block) bool {
	if b.current == nil {
		return true
	}
	if uint16(len(b.current.L2Blocks)) >= b.limits.MaxBlocksPerBatch {
		return false
	}
	if b.current.totalBytes+block.TxList.BytesLength > b.limits.MaxBytesSizeOfBatch {
		return false
	}
	if len(b.current.L2Blocks) > 0 {
		last := b.current.L2Blocks[len(b.current.L2Blocks)-1]
		if !timeShiftFits(last.TimestampSec, block.TimestampSec, b.limits.MaxTimeShiftBetweenBlocks) {
			return false
		}
	}
	return true
}

// timeShiftFits reports whether to-from fits in a u8 and is within the
// configured max time shift (spec.md §3 invariant (d)).
func timeShiftFits(from, to uint64, maxShift uint8) bool {
	if to < from {
		return false
	}
	shift := to - from
	return shift <= 255 && shift <= uint64(maxShift)
}

// CreateNewBatch finalizes the current batch (if any) and starts a fresh one
// anchored at anchor (spec.md §4.3: "create_new_batch"). Callers must only
// call this when current is absent or full.
func (b *Builder) CreateNewBatch(coinbase common.Address, anchor AnchorBlockInfo, bondInstructions [][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if anchor.ID < b.lastAnchorUsed {
		return errs.New(errs.KindCritical, fmt.Sprintf("anchor block id %d regressed below last used %d", anchor.ID, b.lastAnchorUsed))
	}
	if anchor.ID < MinAnchorOffset {
		return errs.New(errs.KindCritical, fmt.Sprintf("anchor block id %d below minimum offset %d", anchor.ID, MinAnchorOffset))
	}

	if b.current != nil {
		b.finalizeLocked()
	}

	b.current = &Batch{
		ID:               b.nextID,
		Coinbase:         coinbase,
		Anchor:           anchor,
		BondInstructions: bondInstructions,
	}
	b.nextID++
	b.lastAnchorUsed = anchor.ID
	return nil
}

// IncForcedInclusion marks the current batch as carrying exactly one forced
// block. Must be called before any normal block is added (spec.md §4.3:
// "inc_forced_inclusion").
func (b *Builder) IncForcedInclusion() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return errs.New(errs.KindCritical, "inc_forced_inclusion called with no current batch")
	}
	if len(b.current.L2Blocks) > 0 {
		return errs.New(errs.KindCritical, "inc_forced_inclusion called after a normal block was already added")
	}
	b.current.NumForcedInclusion = 1
	return nil
}

// AddL2BlockAndGetCurrent appends block to the current batch, returning the
// updated batch on success (spec.md §4.3: "add_l2_block_and_get_current").
func (b *Builder) AddL2BlockAndGetCurrent(block L2Block) (*Batch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, errs.New(errs.KindCritical, "add_l2_block_and_get_current called with no current batch")
	}
	if !b.canConsumeLocked(block) {
		return nil, errs.New(errs.KindDriverRejectedRecoverable, "appending block would violate batch invariants")
	}
	b.current.L2Blocks = append(b.current.L2Blocks, block)
	b.current.totalBytes += block.TxList.BytesLength
	return b.current, nil
}

// RemoveLastL2Block pops the most recently appended block, used only for
// post-submit recovery after a driver failure (spec.md §4.3).
func (b *Builder) RemoveLastL2Block() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || len(b.current.L2Blocks) == 0 {
		return errs.New(errs.KindCritical, "remove_last_l2_block called with no blocks to remove")
	}
	last := b.current.L2Blocks[len(b.current.L2Blocks)-1]
	b.current.L2Blocks = b.current.L2Blocks[:len(b.current.L2Blocks)-1]
	b.current.totalBytes -= last.TxList.BytesLength
	return nil
}

// IsEmptyBlockRequired reports whether an empty keep-alive block must be
// emitted this tick: either the next time shift would overflow u8, or the
// batch is at the last L1 slot before its anchor offset expires (spec.md
// §4.3: "try_creating_l2_block").
func (b *Builder) IsEmptyBlockRequired(l2SlotTimestampSec uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || len(b.current.L2Blocks) == 0 {
		return false
	}
	last := b.current.L2Blocks[len(b.current.L2Blocks)-1]
	if l2SlotTimestampSec < last.TimestampSec {
		return false
	}
	nextShift := l2SlotTimestampSec - last.TimestampSec
	// Shift is about to overflow u8 on the NEXT tick if we wait any longer.
	if nextShift >= 255 || nextShift >= uint64(b.limits.MaxTimeShiftBetweenBlocks) {
		return true
	}
	return false
}

// TryCreatingL2Block decides whether a new L2Block must be produced this
// tick, given a possibly-empty pending tx list (spec.md §4.3:
// "try_creating_l2_block"). A nil return means no block should be built.
func (b *Builder) TryCreatingL2Block(pending *PreBuiltTxList, l2SlotTimestampSec uint64, endOfSequencing bool) *L2Block {
	hasPending := pending != nil && len(pending.Transactions) > 0
	if !hasPending && !b.IsEmptyBlockRequired(l2SlotTimestampSec) && !endOfSequencing {
		return nil
	}
	txList := PreBuiltTxList{}
	if pending != nil {
		txList = *pending
	}
	return &L2Block{TxList: txList, TimestampSec: l2SlotTimestampSec}
}

// finalizeLocked moves current onto the submit queue if it satisfies the
// non-empty invariant, then clears current. Caller holds b.mu.
func (b *Builder) finalizeLocked() {
	if b.current == nil {
		return
	}
	if len(b.current.L2Blocks) == 0 && b.current.NumForcedInclusion == 0 {
		log.Warn("discarding empty batch with no forced inclusion at finalize", "id", b.current.ID)
		b.current = nil
		return
	}
	b.queue = append(b.queue, b.current)
	b.current = nil
}

// Finalize forces the current batch onto the submit queue (spec.md §3
// lifecycle: "Finalized (appended to submit queue on any of: size limit,
// block-count limit, time-shift exhaustion, anchor-offset exhaustion,
// end-of-sequencing)").
func (b *Builder) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalizeLocked()
}

// IsFull reports whether the current batch has hit its block-count or byte
// size limit and must be finalized before another block can be added.
func (b *Builder) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return false
	}
	return uint16(len(b.current.L2Blocks)) >= b.limits.MaxBlocksPerBatch ||
		b.current.totalBytes >= b.limits.MaxBytesSizeOfBatch
}

// IsAnchorOffsetExhausted reports whether the batch's anchor is too far
// behind currentL1TimestampSec to still be used (spec.md §3 invariant (e)).
func (b *Builder) IsAnchorOffsetExhausted(currentL1TimestampSec uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return false
	}
	maxAge := b.limits.MaxAnchorHeightOffsetSlots * b.limits.L1SlotDurationSec
	if currentL1TimestampSec < b.current.Anchor.TimestampSec {
		return false
	}
	return currentL1TimestampSec-b.current.Anchor.TimestampSec >= maxAge
}

// submitter is the TxMonitor surface try_submit_oldest_batch needs.
type submitter interface {
	InFlight() bool
}

// TrySubmitOldestBatch implements spec.md §4.3's try_submit_oldest_batch:
// finalizes the current batch if submitOnlyFullBatches doesn't block it,
// then — if no tx is in flight and the queue is non-empty — returns the
// oldest queued batch for the caller (Orchestrator) to hand to TxMonitor.
// The caller is responsible for popping on success via PopOldest, and for
// calling DropAllQueued on a fatal send error.
func (b *Builder) TrySubmitOldestBatch(mon submitter, submitOnlyFullBatches bool) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		atLimit := uint16(len(b.current.L2Blocks)) >= b.limits.MaxBlocksPerBatch
		if !submitOnlyFullBatches || atLimit {
			b.finalizeLocked()
		}
	}

	if mon.InFlight() || len(b.queue) == 0 {
		return nil
	}
	return b.queue[0]
}

// PopOldest removes the oldest queued batch after a successful submission
// (spec.md §3 lifecycle: "Accepted on receipt success → popped").
func (b *Builder) PopOldest() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return
	}
	b.queue = b.queue[1:]
}

// DropAllQueued discards every queued batch after a fatal (non-retryable)
// send error, since they share anchor state and bond chain (spec.md §4.3
// step 3).
func (b *Builder) DropAllQueued() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
	b.current = nil
}

// QueueLength reports how many batches are waiting submission.
func (b *Builder) QueueLength() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// RecoverFromL2Block reconstructs builder state from the latest L2 block's
// decoded anchor parameters: either continuing an existing in-flight
// proposal (same id) or starting a new one (spec.md §4.3:
// "recover_from_l2_block"). forcedInclusion must be true only when the
// recovered block is the sole block of its proposal.
func (b *Builder) RecoverFromL2Block(ctx context.Context, proposalID uint64, anchor AnchorBlockInfo, coinbase common.Address, forcedInclusion bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil && b.current.ID == proposalID {
		return
	}

	b.current = &Batch{ID: proposalID, Coinbase: coinbase, Anchor: anchor}
	if forcedInclusion {
		b.current.NumForcedInclusion = 1
	}
	if proposalID >= b.nextID {
		b.nextID = proposalID + 1
	}
	b.lastAnchorUsed = anchor.ID

	log.Info("recovered batch builder state from L2 block", "proposalID", proposalID, "anchorID", anchor.ID, "forcedInclusion", forcedInclusion)
}
