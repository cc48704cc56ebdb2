// Package slotclock maps wall-clock time to L1 slot / L2 sub-slot / epoch
// arithmetic against a fixed genesis timestamp (spec.md §2 component 1,
// "SlotClock"; §4.1).
package slotclock

import (
	"errors"
	"fmt"
	"time"
)

// ErrBeforeGenesis is returned when the clock is asked about a time before
// the configured genesis instant.
var ErrBeforeGenesis = errors.New("slotclock: current time is before genesis")

// ErrNotInWindow is returned by TimeFromLastNSlotsOfEpoch when the given slot
// is not within the trailing N-slot window of its epoch.
var ErrNotInWindow = errors.New("slotclock: slot is not within the requested window")

// Clock abstracts wall-clock time so tests can inject a fake clock.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config is the immutable configuration of a SlotClock, per spec.md §3
// SlotClockState.
type Config struct {
	GenesisTimestampSec uint64
	L1SlotDurationSec   uint64
	SlotsPerEpoch       uint64
	L2SubSlotDurationMs uint64
}

// Validate checks the evenly-divides invariant from spec.md §3.
func (c Config) Validate() error {
	if c.L1SlotDurationSec == 0 {
		return errors.New("slotclock: l1 slot duration must be non-zero")
	}
	if c.L2SubSlotDurationMs == 0 {
		return errors.New("slotclock: l2 sub-slot duration must be non-zero")
	}
	if c.SlotsPerEpoch == 0 {
		return errors.New("slotclock: slots per epoch must be non-zero")
	}
	l1Ms := c.L1SlotDurationSec * 1000
	if l1Ms%c.L2SubSlotDurationMs != 0 {
		return fmt.Errorf(
			"slotclock: l2 sub-slot duration %dms does not evenly divide l1 slot duration %dms",
			c.L2SubSlotDurationMs, l1Ms,
		)
	}
	return nil
}

// L2SubSlotsPerL1 returns the derived l2_subslots_per_l1 value.
func (c Config) L2SubSlotsPerL1() uint64 {
	return (c.L1SlotDurationSec * 1000) / c.L2SubSlotDurationMs
}

// SlotClock is the node-wide source of slot/epoch arithmetic.
type SlotClock struct {
	cfg   Config
	clock Clock
}

// New builds a SlotClock, validating the evenly-divides invariant.
func New(cfg Config, clock Clock) (*SlotClock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &SlotClock{cfg: cfg, clock: clock}, nil
}

// Config returns the clock's immutable configuration.
func (s *SlotClock) Config() Config { return s.cfg }

// CurrentTimestampSec returns the current wall-clock unix time in seconds.
func (s *SlotClock) CurrentTimestampSec() uint64 {
	return uint64(s.clock.Now().Unix())
}

// CurrentSlot returns (now - genesis) / l1_slot_duration_sec.
func (s *SlotClock) CurrentSlot() (uint64, error) {
	return s.SlotAt(s.CurrentTimestampSec())
}

// SlotAt returns the L1 slot containing the given unix timestamp.
func (s *SlotClock) SlotAt(unixSec uint64) (uint64, error) {
	if unixSec < s.cfg.GenesisTimestampSec {
		return 0, ErrBeforeGenesis
	}
	return (unixSec - s.cfg.GenesisTimestampSec) / s.cfg.L1SlotDurationSec, nil
}

// CurrentEpoch returns the epoch containing the current slot.
func (s *SlotClock) CurrentEpoch() (uint64, error) {
	slot, err := s.CurrentSlot()
	if err != nil {
		return 0, err
	}
	return slot / s.cfg.SlotsPerEpoch, nil
}

// SlotOfEpoch returns the 0-based position of slot within its epoch.
func (s *SlotClock) SlotOfEpoch(slot uint64) uint64 {
	return slot % s.cfg.SlotsPerEpoch
}

// EpochOfSlot returns the epoch number containing slot.
func (s *SlotClock) EpochOfSlot(slot uint64) uint64 {
	return slot / s.cfg.SlotsPerEpoch
}

// EpochBeginTimestamp returns the unix timestamp at which epoch begins.
func (s *SlotClock) EpochBeginTimestamp(epoch uint64) uint64 {
	return s.cfg.GenesisTimestampSec + epoch*s.cfg.SlotsPerEpoch*s.cfg.L1SlotDurationSec
}

// SlotBeginTimestamp returns the unix timestamp at which slot begins.
func (s *SlotClock) SlotBeginTimestamp(slot uint64) uint64 {
	return s.cfg.GenesisTimestampSec + slot*s.cfg.L1SlotDurationSec
}

// CurrentL2SubSlotWithinL1Slot returns the current L2 sub-slot index within
// its containing L1 slot, in [0, L2SubSlotsPerL1).
func (s *SlotClock) CurrentL2SubSlotWithinL1Slot() (uint64, error) {
	slot, err := s.CurrentSlot()
	if err != nil {
		return 0, err
	}
	slotStart := s.SlotBeginTimestamp(slot)
	now := s.CurrentTimestampSec()
	elapsedMs := (now - slotStart) * 1000
	return elapsedMs / s.cfg.L2SubSlotDurationMs, nil
}

// L2SlotsPerEpoch returns the total number of L2 sub-slots in one epoch.
func (s *SlotClock) L2SlotsPerEpoch() uint64 {
	return s.cfg.SlotsPerEpoch * s.cfg.L2SubSlotsPerL1()
}

// IsSlotInLastNSlotsOfEpoch reports whether slot falls in the trailing n
// slots of its containing epoch.
func (s *SlotClock) IsSlotInLastNSlotsOfEpoch(slot, n uint64) bool {
	if n == 0 || n > s.cfg.SlotsPerEpoch {
		return n > 0
	}
	pos := s.SlotOfEpoch(slot)
	return pos >= s.cfg.SlotsPerEpoch-n
}

// TimeFromLastNSlotsOfEpoch returns the elapsed duration since the start of
// the trailing n-slot handover window containing slot. Fails with
// ErrNotInWindow if slot is not within that window.
func (s *SlotClock) TimeFromLastNSlotsOfEpoch(slot, n uint64) (time.Duration, error) {
	if !s.IsSlotInLastNSlotsOfEpoch(slot, n) {
		return 0, ErrNotInWindow
	}
	windowStartSlot := slot - (s.SlotOfEpoch(slot) - (s.cfg.SlotsPerEpoch - n))
	windowStartTs := s.SlotBeginTimestamp(windowStartSlot)
	now := s.CurrentTimestampSec()
	if now < windowStartTs {
		return 0, ErrBeforeGenesis
	}
	return time.Duration(now-windowStartTs) * time.Second, nil
}
