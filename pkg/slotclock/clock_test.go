package slotclock

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

func newTestClock(t *testing.T, nowUnix uint64) *SlotClock {
	t.Helper()
	cfg := Config{
		GenesisTimestampSec: 1000,
		L1SlotDurationSec:   12,
		SlotsPerEpoch:       32,
		L2SubSlotDurationMs: 2000,
	}
	sc, err := New(cfg, fakeClock{t: time.Unix(int64(nowUnix), 0)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sc
}

func TestValidate_RejectsUnevenSubSlotDivision(t *testing.T) {
	cfg := Config{GenesisTimestampSec: 0, L1SlotDurationSec: 12, SlotsPerEpoch: 32, L2SubSlotDurationMs: 5000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate: expected error for non-dividing sub-slot duration, got nil")
	}
}

func TestValidate_RejectsZeroFields(t *testing.T) {
	cases := []Config{
		{L1SlotDurationSec: 0, SlotsPerEpoch: 32, L2SubSlotDurationMs: 2000},
		{L1SlotDurationSec: 12, SlotsPerEpoch: 32, L2SubSlotDurationMs: 0},
		{L1SlotDurationSec: 12, SlotsPerEpoch: 0, L2SubSlotDurationMs: 2000},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

func TestL2SubSlotsPerL1(t *testing.T) {
	cfg := Config{L1SlotDurationSec: 12, L2SubSlotDurationMs: 2000}
	if got := cfg.L2SubSlotsPerL1(); got != 6 {
		t.Fatalf("L2SubSlotsPerL1() = %d, want 6", got)
	}
}

func TestSlotAt_BeforeGenesis(t *testing.T) {
	sc := newTestClock(t, 1000)
	if _, err := sc.SlotAt(999); !errors.Is(err, ErrBeforeGenesis) {
		t.Fatalf("SlotAt(999) err = %v, want ErrBeforeGenesis", err)
	}
}

func TestSlotAt_AndEpochArithmetic(t *testing.T) {
	// genesis=1000, slot duration=12s, slots_per_epoch=32.
	// slot 20 of epoch 0 begins at 1000 + 20*12 = 1240.
	sc := newTestClock(t, 1240)
	slot, err := sc.CurrentSlot()
	if err != nil {
		t.Fatalf("CurrentSlot: %v", err)
	}
	if slot != 20 {
		t.Fatalf("CurrentSlot() = %d, want 20", slot)
	}
	epoch, err := sc.CurrentEpoch()
	if err != nil {
		t.Fatalf("CurrentEpoch: %v", err)
	}
	if epoch != 0 {
		t.Fatalf("CurrentEpoch() = %d, want 0", epoch)
	}
	if got := sc.SlotOfEpoch(slot); got != 20 {
		t.Fatalf("SlotOfEpoch(20) = %d, want 20", got)
	}

	// slot 32*3 + 5 = 101 should land in epoch 3, position 5.
	if got := sc.EpochOfSlot(101); got != 3 {
		t.Fatalf("EpochOfSlot(101) = %d, want 3", got)
	}
	if got := sc.SlotOfEpoch(101); got != 5 {
		t.Fatalf("SlotOfEpoch(101) = %d, want 5", got)
	}
}

func TestCurrentL2SubSlotWithinL1Slot(t *testing.T) {
	// slot 20 begins at 1240; 5s into the slot is sub-slot 5000/2000 = 2.
	sc := newTestClock(t, 1245)
	sub, err := sc.CurrentL2SubSlotWithinL1Slot()
	if err != nil {
		t.Fatalf("CurrentL2SubSlotWithinL1Slot: %v", err)
	}
	if sub != 2 {
		t.Fatalf("CurrentL2SubSlotWithinL1Slot() = %d, want 2", sub)
	}
}

func TestL2SlotsPerEpoch(t *testing.T) {
	sc := newTestClock(t, 1000)
	if got := sc.L2SlotsPerEpoch(); got != 32*6 {
		t.Fatalf("L2SlotsPerEpoch() = %d, want %d", got, 32*6)
	}
}

func TestIsSlotInLastNSlotsOfEpoch(t *testing.T) {
	sc := newTestClock(t, 1000)
	if sc.IsSlotInLastNSlotsOfEpoch(25, 6) {
		t.Fatal("slot 25 should not be in the trailing 6 slots of a 32-slot epoch")
	}
	if !sc.IsSlotInLastNSlotsOfEpoch(26, 6) {
		t.Fatal("slot 26 should be in the trailing 6 slots of a 32-slot epoch")
	}
	if !sc.IsSlotInLastNSlotsOfEpoch(31, 6) {
		t.Fatal("slot 31 should be in the trailing 6 slots of a 32-slot epoch")
	}
}

func TestTimeFromLastNSlotsOfEpoch(t *testing.T) {
	// handover window starts at slot 26 (ts = 1000 + 26*12 = 1312).
	// evaluating at slot 27 (ts = 1324), 12s after window start.
	sc := newTestClock(t, 1324)
	d, err := sc.TimeFromLastNSlotsOfEpoch(27, 6)
	if err != nil {
		t.Fatalf("TimeFromLastNSlotsOfEpoch: %v", err)
	}
	if d != 12*time.Second {
		t.Fatalf("TimeFromLastNSlotsOfEpoch() = %v, want 12s", d)
	}
}

func TestTimeFromLastNSlotsOfEpoch_NotInWindow(t *testing.T) {
	sc := newTestClock(t, 1000)
	if _, err := sc.TimeFromLastNSlotsOfEpoch(10, 6); !errors.Is(err, ErrNotInWindow) {
		t.Fatalf("TimeFromLastNSlotsOfEpoch(10, 6) err = %v, want ErrNotInWindow", err)
	}
}
