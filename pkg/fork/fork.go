// Package fork defines the protocol fork identifiers the sequencer must
// dispatch against, and the schedule that decides which fork is active at a
// given L2 timestamp.
package fork

import (
	"fmt"
	"strings"
	"time"
)

// Fork identifies which inbox ABI / anchor transaction shape is active.
type Fork uint8

const (
	Pacaya Fork = iota
	Shasta
)

func (f Fork) String() string {
	switch f {
	case Pacaya:
		return "pacaya"
	case Shasta:
		return "shasta"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// Next returns the fork that follows f, or false if f is the last known fork.
func (f Fork) Next() (Fork, bool) {
	switch f {
	case Pacaya:
		return Shasta, true
	default:
		return f, false
	}
}

// ParseFork parses a fork name, case-insensitively.
func ParseFork(s string) (Fork, error) {
	switch strings.ToLower(s) {
	case "pacaya":
		return Pacaya, nil
	case "shasta":
		return Shasta, nil
	default:
		return 0, fmt.Errorf("invalid fork name %q", s)
	}
}

// Schedule maps wall-clock time to the active fork. It is immutable over the
// node's lifetime once loaded (typically from a small YAML document via
// gopkg.in/yaml.v3, see internal/config).
type Schedule struct {
	// PacayaToShasta is the timestamp (seconds since Unix epoch) at which
	// Shasta becomes active. A zero value means Shasta is active from genesis.
	PacayaToShasta uint64 `yaml:"pacayaToShastaTimestamp"`

	// TransitionBufferSec is how long, around the switch instant, the node
	// refuses to act as preconfer at all (spec.md §4.2 step 6: "In fork-switch
	// transition period: false").
	TransitionBufferSec uint64 `yaml:"transitionBufferSec"`
}

// ActiveAt returns which fork is active at the given unix timestamp.
func (s Schedule) ActiveAt(unixSec uint64) Fork {
	if s.PacayaToShasta == 0 || unixSec < s.PacayaToShasta {
		return Pacaya
	}
	return Shasta
}

// IsTransitionPeriod reports whether t falls within the buffer window
// straddling the fork switch instant, during which the node must not act as
// preconfer (spec.md §4.2 step 6: "In fork-switch transition period: false").
func (s Schedule) IsTransitionPeriod(t time.Time) bool {
	if s.PacayaToShasta == 0 || s.TransitionBufferSec == 0 {
		return false
	}
	unix := t.Unix()
	lo := int64(s.PacayaToShasta) - int64(s.TransitionBufferSec)
	hi := int64(s.PacayaToShasta) + int64(s.TransitionBufferSec)
	return unix >= lo && unix <= hi
}
