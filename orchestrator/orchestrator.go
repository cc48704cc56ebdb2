// Package orchestrator runs the single-threaded heartbeat loop that drives
// every other component: SlotClock, L1View/L2View, InboxClient,
// OperatorStatus, BatchBuilder, AnchorBuilder, DriverClient, TxMonitor,
// ForcedInclusionMgr and Watchdog (spec.md §2 component 12, "Orchestrator";
// §4.8).
package orchestrator

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/eth"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/taikoxyz/preconf-sequencer/batchbuilder"
	"github.com/taikoxyz/preconf-sequencer/bindings/encoding"
	"github.com/taikoxyz/preconf-sequencer/driver"
	"github.com/taikoxyz/preconf-sequencer/driver/anchor"
	"github.com/taikoxyz/preconf-sequencer/forcedinclusion"
	"github.com/taikoxyz/preconf-sequencer/internal/metrics"
	"github.com/taikoxyz/preconf-sequencer/l1"
	"github.com/taikoxyz/preconf-sequencer/l2"
	"github.com/taikoxyz/preconf-sequencer/operator"
	"github.com/taikoxyz/preconf-sequencer/pkg/cancel"
	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/fork"
	"github.com/taikoxyz/preconf-sequencer/pkg/slotclock"
	"github.com/taikoxyz/preconf-sequencer/txmonitor"
	"github.com/taikoxyz/preconf-sequencer/watchdog"
)

// Config is the node's static, per-run configuration.
type Config struct {
	HeartbeatInterval time.Duration

	OperatorAddr       common.Address
	Coinbase           common.Address
	FeeRecipient       common.Address
	BasefeeSharingPctg uint8
	IsLowBond          bool

	RouterAddr          common.Address
	InboxAddr           common.Address
	HandoverWindowSlots uint64

	HandoverStartBufferMs uint64

	// L1HeightLag is how many blocks behind L1 head to read the anchor block
	// from, clamped down to batchbuilder.MinAnchorOffset when smaller
	// (spec.md §3, "AnchorBlockInfo").
	L1HeightLag uint64

	SimulateNotSubmittingAtEndOfEpoch bool

	MinTipWei        uint64
	PendingTxListGas uint64
}

// Orchestrator is the node's cooperative tick loop. It is the only writer of
// BatchBuilder, ForcedInclusionMgr and OperatorStatus's Memory, per spec.md §5
// single-writer discipline.
type Orchestrator struct {
	cfg Config

	clock  *slotclock.SlotClock
	l1View *l1.View
	l2View *l2.View
	inbox  *l1.InboxClient

	batches      *batchbuilder.Builder
	anchorBuild  *anchor.Builder
	driverClient *driver.Client
	txMon        *txmonitor.TxMonitor
	forcedInc    *forcedinclusion.Manager
	wd           *watchdog.Watchdog
	token        *cancel.Token

	schedule fork.Schedule
	mem      operator.Memory

	lastPreconfer atomic.Bool
	lastSubmitter atomic.Bool
}

// IsPreconfer reports whether the most recently evaluated tick considered
// this node the active preconfer. Satisfies healthserver.StatusProvider.
func (o *Orchestrator) IsPreconfer() bool { return o.lastPreconfer.Load() }

// IsSubmitter mirrors IsPreconfer for the submitter role.
func (o *Orchestrator) IsSubmitter() bool { return o.lastSubmitter.Load() }

// QueuedBatches reports how many finalized batches are waiting submission.
func (o *Orchestrator) QueuedBatches() int { return o.batches.QueueLength() }

// WatchdogFailureStreak reports the current consecutive-tick-failure count.
func (o *Orchestrator) WatchdogFailureStreak() uint64 { return o.wd.Counter() }

// New wires every component into a ready-to-run Orchestrator.
func New(
	cfg Config,
	clock *slotclock.SlotClock,
	l1View *l1.View,
	l2View *l2.View,
	inbox *l1.InboxClient,
	batches *batchbuilder.Builder,
	anchorBuild *anchor.Builder,
	driverClient *driver.Client,
	txMon *txmonitor.TxMonitor,
	forcedInc *forcedinclusion.Manager,
	wd *watchdog.Watchdog,
	token *cancel.Token,
	schedule fork.Schedule,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		clock:        clock,
		l1View:       l1View,
		l2View:       l2View,
		inbox:        inbox,
		batches:      batches,
		anchorBuild:  anchorBuild,
		driverClient: driverClient,
		txMon:        txMon,
		forcedInc:    forcedInc,
		wd:           wd,
		token:        token,
		schedule:     schedule,
	}
}

// Run drives the heartbeat loop until the token is cancelled. It resyncs to
// the next L1 slot boundary before the first tick, then ticks on a fixed
// interval with a skip-missed-tick policy: if a tick overruns, the loop does
// not fire twice to catch up, it simply waits for the next scheduled instant
// (spec.md §4.8 step 1, §5 "Suspension points").
func (o *Orchestrator) Run(ctx context.Context) {
	if err := o.syncToNextSlotBoundary(ctx); err != nil {
		log.Warn("failed to sync to next L1 slot boundary, starting immediately", "err", err)
	}

	ticker := time.NewTicker(o.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.token.Done():
			log.Info("orchestrator shutting down", "critical", o.token.IsCritical())
			return
		case <-ticker.C:
			o.runTick(ctx)
		}
	}
}

func (o *Orchestrator) syncToNextSlotBoundary(ctx context.Context) error {
	slot, err := o.clock.CurrentSlot()
	if err != nil {
		return err
	}
	nextBoundary := o.clock.SlotBeginTimestamp(slot + 1)
	now := o.clock.CurrentTimestampSec()
	if nextBoundary <= now {
		return nil
	}
	timer := time.NewTimer(time.Duration(nextBoundary-now) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-o.token.Done():
	}
	return nil
}

// runTick executes one heartbeat tick end-to-end, timing it and feeding the
// watchdog (spec.md §4.8 step 7: "On any error: Watchdog.increment(), else
// Watchdog.reset()").
func (o *Orchestrator) runTick(ctx context.Context) {
	start := time.Now()
	err := o.tick(ctx)
	metrics.TickDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TickFailures.Inc()
		log.Error("orchestrator tick failed", "err", err)
		o.wd.Increment()
		if errs.IsCritical(err) {
			metrics.CriticalCancellations.Inc()
			o.token.CancelCritical()
		}
		return
	}
	o.wd.Reset()
}

func (o *Orchestrator) tick(ctx context.Context) error {
	// Step 2: read L2SlotInfo.
	l2Slot, err := o.readL2SlotInfo(ctx)
	if err != nil {
		return err
	}

	// Step 3: read DriverClient status.
	driverStatus, err := o.driverClient.TaikoStatus(ctx)
	if err != nil {
		return err
	}

	// Step 4: compute OperatorStatus.
	status, err := o.evaluateOperatorStatus(ctx, l2Slot, driverStatus)
	if err != nil {
		return err
	}
	metrics.IsPreconfer.Set(boolToFloat(status.Preconfer))
	metrics.IsSubmitter.Set(boolToFloat(status.Submitter))
	o.lastPreconfer.Store(status.Preconfer)
	o.lastSubmitter.Store(status.Submitter)

	// Step 5: extend the L2 head if we are the preconfer.
	if status.Preconfer {
		if err := o.tryExtendL2Head(ctx, l2Slot, status.EndOfSequencing); err != nil {
			return err
		}
	}

	// Step 6: submit the oldest finalized batch if we are the submitter.
	if status.Submitter && o.batches.HasBatches() {
		if err := o.trySubmitOldestBatch(ctx, !status.EndOfSequencing); err != nil {
			return err
		}
	}

	return nil
}

// readL2SlotInfo fetches the current L2 head and turns it into the shared
// L2SlotInfo both BatchBuilder and AnchorBuilder read (spec.md §4.8 step 2:
// "taiko.get_l2_slot_info").
func (o *Orchestrator) readL2SlotInfo(ctx context.Context) (batchbuilder.L2SlotInfo, error) {
	block, err := o.l2View.BlockByNumber(ctx, nil)
	if err != nil {
		return batchbuilder.L2SlotInfo{}, err
	}
	h := block.Header()

	return batchbuilder.L2SlotInfo{
		BaseFee:                     h.BaseFee,
		SlotTimestampSec:            o.clock.CurrentTimestampSec(),
		ParentID:                    h.Number.Uint64(),
		ParentHash:                  h.Hash(),
		ParentGasUsed:               uint32(h.GasUsed),
		ParentGasLimitWithoutAnchor: h.GasLimit - batchbuilder.AnchorGasLimit,
		ParentTimestampSec:          h.Time,
	}, nil
}

// evaluateOperatorStatus assembles operator.Inputs from the node's L1/L2
// reads and runs the decision core (spec.md §4.8 step 4).
func (o *Orchestrator) evaluateOperatorStatus(ctx context.Context, l2Slot batchbuilder.L2SlotInfo, driverStatus operator.DriverStatus) (operator.Status, error) {
	slot, err := o.clock.CurrentSlot()
	if err != nil {
		return operator.Status{}, errs.Wrap(errs.KindCritical, err, "slot clock desynced before genesis")
	}
	epoch := o.clock.EpochOfSlot(slot)
	l2Subslot, err := o.clock.CurrentL2SubSlotWithinL1Slot()
	if err != nil {
		return operator.Status{}, errs.Wrap(errs.KindCritical, err, "slot clock desynced before genesis")
	}

	active := o.schedule.ActiveAt(l2Slot.SlotTimestampSec)

	isRouterActive, err := o.inbox.IsRouterActive(ctx, o.cfg.RouterAddr)
	if err != nil {
		return operator.Status{}, errs.Wrap(errs.KindTransientRpc, err, "failed to read router active flag")
	}

	epochBeginTs := o.clock.EpochBeginTimestamp(epoch)
	slotBeginTs := o.clock.SlotBeginTimestamp(slot)
	current, _, err := o.inbox.OperatorsForEpoch(ctx, epochBeginTs, slotBeginTs)
	if err != nil {
		return operator.Status{}, err
	}
	isCurrentOperator := current == o.cfg.OperatorAddr

	fetchIsNextOperator := func(ctx context.Context) (bool, error) {
		_, next, err := o.inbox.OperatorsForEpoch(ctx, epochBeginTs, slotBeginTs)
		if err != nil {
			return false, err
		}
		return next == o.cfg.OperatorAddr, nil
	}

	var msSinceHandoverStart uint64
	if d, err := o.clock.TimeFromLastNSlotsOfEpoch(slot, o.cfg.HandoverWindowSlots); err == nil {
		msSinceHandoverStart = uint64(d.Milliseconds())
	}

	l1HeightOfL2InboxTip, err := o.l1View.ChainHeight(ctx)
	if err != nil {
		return operator.Status{}, err
	}

	in := operator.Inputs{
		L2Slot: operator.L2SlotInfo{
			ParentID:           l2Slot.ParentID,
			ParentHash:         l2Slot.ParentHash,
			ParentTimestampSec: l2Slot.ParentTimestampSec,
		},
		Driver:                               driverStatus,
		IsRouterActive:                       isRouterActive,
		IsCurrentOperator:                    isCurrentOperator,
		FetchIsNextOperator:                  fetchIsNextOperator,
		L1HeightOfL2InboxTip:                 l1HeightOfL2InboxTip,
		Epoch:                                epoch,
		L1Slot:                               slot,
		SlotsPerEpoch:                        o.clock.Config().SlotsPerEpoch,
		L2Subslot:                            l2Subslot,
		L2SubslotsPerL1:                      o.clock.Config().L2SubSlotsPerL1(),
		HandoverWindowSlots:                  func(ctx context.Context) uint64 { return o.inbox.HandoverWindowSlots(ctx, o.cfg.RouterAddr, o.cfg.HandoverWindowSlots) },
		ConfiguredDefaultHandoverWindowSlots: o.cfg.HandoverWindowSlots,
		HandoverStartBufferMs:                o.cfg.HandoverStartBufferMs,
		MsSinceHandoverStart:                 msSinceHandoverStart,
		ActiveFork:                           active,
		InTransitionPeriod:                   o.schedule.IsTransitionPeriod(time.Unix(int64(l2Slot.SlotTimestampSec), 0)),
		SimulateNotSubmittingAtEndOfEpoch:    o.cfg.SimulateNotSubmittingAtEndOfEpoch,
		L2SlotsPerEpoch:                      o.clock.L2SlotsPerEpoch(),
	}

	status := operator.Evaluate(ctx, in, &o.mem, o.token)
	if !status.IsDriverSynced {
		log.Warn("L2 driver desynced from L1 inbox tip", "parentID", l2Slot.ParentID, "l1Tip", l1HeightOfL2InboxTip)
	}
	return status, nil
}

// tryExtendL2Head implements spec.md §4.8 step 5: pull a forced-inclusion or
// pending tx list, decide whether a block is needed, build it through
// BatchBuilder, sign its anchor, and push it to the driver; undo the append
// on driver rejection.
func (o *Orchestrator) tryExtendL2Head(ctx context.Context, l2Slot batchbuilder.L2SlotInfo, endOfSequencing bool) error {
	needsNewBatch := !o.batches.HasCurrentBatch()
	if !needsNewBatch && o.batches.IsAnchorOffsetExhausted(o.clock.CurrentTimestampSec()) {
		o.batches.Finalize()
		needsNewBatch = true
	}

	var forcedTxs types.Transactions
	if needsNewBatch {
		txs, err := o.forcedInc.DecodeCurrent(ctx)
		if err != nil {
			return err
		}
		forcedTxs = txs
	}

	var pending *batchbuilder.PreBuiltTxList
	if len(forcedTxs) > 0 {
		pending = &batchbuilder.PreBuiltTxList{Transactions: forcedTxs}
	} else {
		p, err := o.driverClient.PendingTxList(ctx, o.cfg.FeeRecipient, o.batches.RemainingByteBudget(), o.cfg.PendingTxListGas, o.cfg.MinTipWei)
		if err != nil {
			return err
		}
		pending = p
	}

	block := o.batches.TryCreatingL2Block(pending, l2Slot.SlotTimestampSec, endOfSequencing)
	if block == nil {
		return nil
	}
	isForcedInclusion := len(forcedTxs) > 0

	if needsNewBatch {
		anchorBlock, err := o.readAnchorBlock(ctx)
		if err != nil {
			return err
		}
		if err := o.batches.CreateNewBatch(o.cfg.Coinbase, anchorBlock, nil); err != nil {
			return err
		}
		if isForcedInclusion {
			if err := o.batches.IncForcedInclusion(); err != nil {
				return err
			}
		}
	}

	current, err := o.batches.AddL2BlockAndGetCurrent(*block)
	if err != nil {
		return err
	}
	if isForcedInclusion {
		o.forcedInc.Consume()
	}

	anchorTx, err := o.buildAnchorTx(ctx, l2Slot, current.Anchor)
	if err != nil {
		if undoErr := o.batches.RemoveLastL2Block(); undoErr != nil {
			log.Error("failed to undo appended L2 block after anchor build failure", "err", undoErr)
		}
		if isForcedInclusion {
			o.forcedInc.Release()
		}
		return err
	}

	txs := append(types.Transactions{anchorTx}, block.TxList.Transactions...)
	txListBytes, err := driver.CompressTxList(txs)
	if err != nil {
		if undoErr := o.batches.RemoveLastL2Block(); undoErr != nil {
			log.Error("failed to undo appended L2 block after compression failure", "err", undoErr)
		}
		if isForcedInclusion {
			o.forcedInc.Release()
		}
		return errs.Wrap(errs.KindDecodeError, err, "failed to compress pending tx list")
	}

	data := driver.ExecutableData{
		BaseFeePerGas: l2Slot.BaseFee,
		BlockNumber:   l2Slot.ParentID + 1,
		ExtraData:     driver.PackExtraData(o.cfg.BasefeeSharingPctg, o.cfg.IsLowBond),
		FeeRecipient:  o.cfg.FeeRecipient,
		GasLimit:      l2Slot.ParentGasLimitWithoutAnchor + batchbuilder.AnchorGasLimit,
		ParentHash:    l2Slot.ParentHash,
		Timestamp:     block.TimestampSec,
		TxListBytes:   txListBytes,
	}

	if err := o.driverClient.PreconfBlocks(ctx, data, driver.Preconfirm, endOfSequencing, isForcedInclusion); err != nil {
		if undoErr := o.batches.RemoveLastL2Block(); undoErr != nil {
			log.Error("failed to undo appended L2 block after driver rejection", "err", undoErr)
		}
		if isForcedInclusion {
			o.forcedInc.Release()
		}
		return err
	}
	if isForcedInclusion {
		metrics.ForcedInclusionsConsumed.Inc()
	}
	return nil
}

// buildAnchorTx signs the anchor transaction that must prefix the L2 block
// about to be preconfirmed, dispatching on the active fork (spec.md §4.4).
// anchorBlock is the batch's own anchor point, so every block within one
// batch anchors against the same L1 block regardless of which tick built it.
func (o *Orchestrator) buildAnchorTx(ctx context.Context, l2Slot batchbuilder.L2SlotInfo, anchorBlock batchbuilder.AnchorBlockInfo) (*types.Transaction, error) {
	return o.anchorBuild.ConstructAnchorTx(ctx, anchor.L2SlotInfo{
		BaseFee:    l2Slot.BaseFee,
		ParentHash: l2Slot.ParentHash,
		ParentID:   l2Slot.ParentID,
	}, anchor.AnchorBlock{
		ID:        anchorBlock.ID,
		Timestamp: anchorBlock.TimestampSec,
		Hash:      anchorBlock.Hash,
		StateRoot: anchorBlock.StateRoot,
	}, l2Slot.ParentGasUsed, nil)
}

// trySubmitOldestBatch implements spec.md §4.8 step 6 / §4.3
// "try_submit_oldest_batch".
func (o *Orchestrator) trySubmitOldestBatch(ctx context.Context, submitOnlyFullBatches bool) error {
	batch := o.batches.TrySubmitOldestBatch(o.txMon, submitOnlyFullBatches)
	if batch == nil {
		return nil
	}

	calldataCandidate, blobCandidate, err := o.buildSubmitCandidates(batch)
	if err != nil {
		return errs.Wrap(errs.KindDecodeError, err, "failed to build submission candidates")
	}

	receipt, err := o.txMon.Submit(ctx, calldataCandidate, blobCandidate)
	if err != nil {
		if errs.Is(err, errs.KindFatalSubmit) {
			o.batches.DropAllQueued()
			if _, syncErr := o.forcedInc.SyncQueueIndexWithHead(ctx); syncErr != nil {
				log.Error("failed to resync forced inclusion index after fatal submit", "err", syncErr)
			}
		}
		return err
	}

	if receipt != nil {
		o.batches.PopOldest()
		metrics.BatchesFinalized.Inc()
		metrics.BatchBlocksCount.Observe(float64(len(batch.L2Blocks)))
	}
	return nil
}

// buildSubmitCandidates builds the calldata (and, on Shasta, blob) submission
// shapes for batch, fork-dispatched once (spec.md §9 "capability
// abstractions").
func (o *Orchestrator) buildSubmitCandidates(batch *batchbuilder.Batch) (txmonitor.Candidate, *txmonitor.Candidate, error) {
	switch o.schedule.ActiveAt(batch.Anchor.TimestampSec) {
	case fork.Pacaya:
		return o.buildPacayaCandidates(batch)
	case fork.Shasta:
		return o.buildShastaCandidates(batch)
	default:
		return txmonitor.Candidate{}, nil, errs.New(errs.KindCritical, "unknown fork in submission path")
	}
}

func (o *Orchestrator) buildPacayaCandidates(batch *batchbuilder.Batch) (txmonitor.Candidate, *txmonitor.Candidate, error) {
	blocks := make([]encoding.BlockParams, len(batch.L2Blocks))
	var allTxs types.Transactions
	var lastTs uint64
	for i, b := range batch.L2Blocks {
		var shift uint8
		if i > 0 {
			shift = uint8(b.TimestampSec - lastTs)
		}
		lastTs = b.TimestampSec
		blocks[i] = encoding.BlockParams{NumTransactions: uint16(len(b.TxList.Transactions)), TimeShift: shift}
		allTxs = append(allTxs, b.TxList.Transactions...)
	}

	txListBytes, err := driver.CompressTxList(allTxs)
	if err != nil {
		return txmonitor.Candidate{}, nil, err
	}

	params := &encoding.BatchParams{
		Proposer:           o.cfg.OperatorAddr,
		Coinbase:           batch.Coinbase,
		AnchorBlockID:      batch.Anchor.ID,
		LastBlockTimestamp: lastTs,
		Blocks:             blocks,
	}

	calldata, err := encoding.EncodeProposeBatchCalldata(params, txListBytes)
	if err != nil {
		return txmonitor.Candidate{}, nil, err
	}

	return txmonitor.Candidate{Mode: "calldata", To: o.cfg.InboxAddr, Data: calldata}, nil, nil
}

func (o *Orchestrator) buildShastaCandidates(batch *batchbuilder.Batch) (txmonitor.Candidate, *txmonitor.Candidate, error) {
	manifestBlocks := make([]encoding.BlockManifest, len(batch.L2Blocks))
	for i, b := range batch.L2Blocks {
		manifestBlocks[i] = encoding.BlockManifest{
			Timestamp:         b.TimestampSec,
			Coinbase:          batch.Coinbase,
			AnchorBlockNumber: batch.Anchor.ID,
			Transactions:      b.TxList.Transactions,
		}
	}
	manifestBytes, err := encoding.EncodeProposalManifest(&encoding.ProposalManifest{Blocks: manifestBlocks})
	if err != nil {
		return txmonitor.Candidate{}, nil, err
	}

	blob := new(eth.Blob)
	if err := blob.FromData(manifestBytes); err != nil {
		return txmonitor.Candidate{}, nil, errs.Wrap(errs.KindDecodeError, err, "manifest too large for a single blob")
	}

	input := &encoding.ProposeInput{
		Deadline:            uint64(time.Now().Unix()) + 300,
		NumForcedInclusions: batch.NumForcedInclusion,
		BlobReference:       encoding.BlobReference{BlobStartIndex: 0, NumBlobs: 1, Offset: 0},
	}
	calldata, err := encoding.EncodeProposeCalldata(nil, input)
	if err != nil {
		return txmonitor.Candidate{}, nil, err
	}

	blobCandidate := txmonitor.Candidate{
		Mode:  "blob",
		To:    o.cfg.InboxAddr,
		Data:  calldata,
		Blobs: []*eth.Blob{blob},
	}
	calldataCandidate := txmonitor.Candidate{Mode: "calldata", To: o.cfg.InboxAddr, Data: calldata}
	return calldataCandidate, &blobCandidate, nil
}

// readAnchorBlock picks the L1 block this batch will anchor against: current
// L1 head minus the configured lag, floored at the protocol's minimum offset
// (spec.md §3 "AnchorBlockInfo").
func (o *Orchestrator) readAnchorBlock(ctx context.Context) (batchbuilder.AnchorBlockInfo, error) {
	height, err := o.l1View.ChainHeight(ctx)
	if err != nil {
		return batchbuilder.AnchorBlockInfo{}, err
	}
	if height < batchbuilder.MinAnchorOffset {
		return batchbuilder.AnchorBlockInfo{}, errs.New(errs.KindEstimationTooEarly, "L1 chain too short for minimum anchor offset")
	}
	lag := o.cfg.L1HeightLag
	if lag < batchbuilder.MinAnchorOffset {
		lag = batchbuilder.MinAnchorOffset
	}
	if lag > height {
		lag = height
	}
	anchorHeight := height - lag
	header, err := o.l1View.HeaderByNumber(ctx, new(big.Int).SetUint64(anchorHeight))
	if err != nil {
		return batchbuilder.AnchorBlockInfo{}, err
	}
	return batchbuilder.AnchorBlockInfo{
		ID:           header.Number.Uint64(),
		TimestampSec: header.Time,
		Hash:         header.Hash(),
		StateRoot:    header.Root,
	}, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
