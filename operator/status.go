// Package operator implements the per-tick decision function that turns L1
// lookups, L2 driver sync status, and the prior tick's memory into the node's
// current role (spec.md §2 component 11, "OperatorStatus"; §4.2).
package operator

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/taikoxyz/preconf-sequencer/pkg/cancel"
	"github.com/taikoxyz/preconf-sequencer/pkg/fork"
)

// OperatorTransitionSlots is the number of slots at the start of an epoch
// during which the memoized next_operator from the previous epoch is trusted
// instead of re-fetching, working around L1 finality delay (spec.md §4.2
// step 3).
const OperatorTransitionSlots = 2

// DriverStatus mirrors the L2 driver's `taikoStatus` response.
type DriverStatus struct {
	HighestUnsafeL2PayloadBlockID uint64
	EndOfSequencingBlockHash      common.Hash
}

// L2SlotInfo is the subset of batchbuilder.L2SlotInfo OperatorStatus reads;
// duplicated locally to avoid a dependency on the batchbuilder package (same
// pattern as driver/anchor.L2SlotInfo).
type L2SlotInfo struct {
	ParentID         uint64
	ParentHash       common.Hash
	ParentTimestampSec uint64
}

// Inputs is everything read fresh each tick (spec.md §4.2 "Inputs").
type Inputs struct {
	L2Slot               L2SlotInfo
	Driver               DriverStatus
	IsRouterActive       bool
	IsCurrentOperator    bool
	// FetchIsNextOperator is called lazily (step 3) since it is only needed
	// outside the transition-slot window.
	FetchIsNextOperator func(ctx context.Context) (bool, error)
	L1HeightOfL2InboxTip uint64

	Epoch             uint64
	L1Slot            uint64
	SlotsPerEpoch     uint64
	L2Subslot         uint64
	L2SubslotsPerL1   uint64
	HandoverWindowSlots func(ctx context.Context) uint64 // fallback-aware InboxClient read
	ConfiguredDefaultHandoverWindowSlots uint64

	HandoverStartBufferMs uint64
	MsSinceHandoverStart  uint64

	ActiveFork       fork.Fork
	InTransitionPeriod bool

	// SimulateNotSubmittingAtEndOfEpoch lets an operator voluntarily stop
	// submitting near epoch end (spec.md §4.2 step 8), e.g. for a planned
	// handover drill.
	SimulateNotSubmittingAtEndOfEpoch bool

	L2SlotsPerEpoch uint64
}

// Status is OperatorStatus's output tuple (spec.md §3 "Transition matrix").
type Status struct {
	Preconfer               bool
	Submitter               bool
	PreconfirmationStarted  bool
	EndOfSequencing         bool
	IsDriverSynced          bool
}

// Memory is OperatorTickMemory (spec.md §3): the node's persisted state
// across ticks.
type Memory struct {
	NextOperator             bool
	ContinuingRole           bool
	WasSyncedPreconfer       bool
	CancelCounter            uint64
	LastConfigReloadEpoch    uint64
	HasLastConfigReloadEpoch bool
	CachedHandoverWindowSlots uint64
}

// reset clears memory to its initial all-false state (spec.md §4.2 step 1).
func (m *Memory) reset() {
	*m = Memory{}
}

// Evaluate runs the full spec.md §4.2 pseudocode contract, mutating mem in
// place and returning the tick's Status. token is critical-cancelled on
// sustained desync (step 5). Per spec.md §4.2 "Errors", a current-operator
// read error must propagate rather than being swallowed; callers fetch
// IsCurrentOperator before calling Evaluate and must not call it at all if
// that read failed, so Evaluate itself never fails.
func Evaluate(ctx context.Context, in Inputs, mem *Memory, token *cancel.Token) Status {
	// Step 1.
	if !in.IsRouterActive {
		mem.reset()
		return Status{}
	}

	// Step 2.
	if !mem.HasLastConfigReloadEpoch || in.Epoch > mem.LastConfigReloadEpoch {
		if in.HandoverWindowSlots != nil {
			mem.CachedHandoverWindowSlots = in.HandoverWindowSlots(ctx)
		} else {
			mem.CachedHandoverWindowSlots = in.ConfiguredDefaultHandoverWindowSlots
		}
		mem.LastConfigReloadEpoch = in.Epoch
		mem.HasLastConfigReloadEpoch = true
	}
	handoverWindowSlots := mem.CachedHandoverWindowSlots

	// Step 3.
	slotOfEpoch := in.L1Slot % in.SlotsPerEpoch
	var currentOperator bool
	if slotOfEpoch < OperatorTransitionSlots {
		currentOperator = mem.NextOperator
	} else {
		nextOperator := false
		if in.FetchIsNextOperator != nil {
			no, err := in.FetchIsNextOperator(ctx)
			if err != nil {
				log.Warn("failed to refresh next_operator, treating as false", "err", err)
			} else {
				nextOperator = no
			}
		}
		mem.NextOperator = nextOperator
		currentOperator = in.IsCurrentOperator
		mem.ContinuingRole = currentOperator && nextOperator
	}

	// Step 4.
	handoverWindow := isSlotInLastNSlotsOfEpoch(slotOfEpoch, in.SlotsPerEpoch, handoverWindowSlots)

	// Step 5.
	var isDriverSynced bool
	taikoGethSyncedWithL1 := in.L2Slot.ParentID >= in.L1HeightOfL2InboxTip
	gethDriverSynced := in.Driver.HighestUnsafeL2PayloadBlockID == 0 ||
		in.Driver.HighestUnsafeL2PayloadBlockID == in.L2Slot.ParentID
	if taikoGethSyncedWithL1 && gethDriverSynced {
		mem.CancelCounter = 0
		isDriverSynced = true
	} else {
		mem.CancelCounter++
		if mem.CancelCounter > in.L2SlotsPerEpoch/2 {
			token.CancelCritical()
		}
	}

	// Step 6.
	var preconfer bool
	if in.InTransitionPeriod {
		preconfer = false
	} else if handoverWindow {
		isHandoverBuffer := in.MsSinceHandoverStart <= in.HandoverStartBufferMs &&
			in.Driver.EndOfSequencingBlockHash != in.L2Slot.ParentHash
		preconfer = mem.NextOperator && (mem.WasSyncedPreconfer || !isHandoverBuffer)
	} else {
		preconfer = currentOperator
	}

	// Step 7.
	started := !mem.WasSyncedPreconfer && preconfer && isDriverSynced
	if started {
		mem.WasSyncedPreconfer = true
	}
	if !preconfer {
		mem.WasSyncedPreconfer = false
	}

	// Step 8.
	submitter := currentOperator && !(handoverWindow && in.SimulateNotSubmittingAtEndOfEpoch)

	// Step 9.
	endOfSequencing := !mem.ContinuingRole && preconfer && submitter &&
		in.L1Slot == in.SlotsPerEpoch-handoverWindowSlots-1 &&
		in.L2Subslot+1 == in.L2SubslotsPerL1

	return Status{
		Preconfer:              preconfer,
		Submitter:              submitter,
		PreconfirmationStarted: started,
		EndOfSequencing:        endOfSequencing,
		IsDriverSynced:         isDriverSynced,
	}
}

// isSlotInLastNSlotsOfEpoch reports whether slotOfEpoch falls within the last
// n slots of an epoch of slotsPerEpoch slots (spec.md §4.1:
// "is_slot_in_last_n_slots_of_epoch").
func isSlotInLastNSlotsOfEpoch(slotOfEpoch, slotsPerEpoch, n uint64) bool {
	if n == 0 || n > slotsPerEpoch {
		return false
	}
	return slotOfEpoch >= slotsPerEpoch-n
}

// TimeFromLastNSlotsOfEpoch returns the duration since the start of the
// handover window for the given slot, failing if slotOfEpoch is not within
// it (spec.md §4.1: "time_from_last_n_slots_of_epoch").
func TimeFromLastNSlotsOfEpoch(now time.Time, windowStart time.Time, slotOfEpoch, slotsPerEpoch, n uint64) (time.Duration, bool) {
	if !isSlotInLastNSlotsOfEpoch(slotOfEpoch, slotsPerEpoch, n) {
		return 0, false
	}
	return now.Sub(windowStart), true
}
