package fork

import (
	"testing"
	"time"
)

func TestParseFork(t *testing.T) {
	cases := map[string]Fork{"pacaya": Pacaya, "Pacaya": Pacaya, "shasta": Shasta, "SHASTA": Shasta}
	for in, want := range cases {
		got, err := ParseFork(in)
		if err != nil {
			t.Fatalf("ParseFork(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFork(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseFork("ontake"); err == nil {
		t.Fatal("expected error parsing an unknown fork name, got nil")
	}
}

func TestFork_Next(t *testing.T) {
	next, ok := Pacaya.Next()
	if !ok || next != Shasta {
		t.Fatalf("Pacaya.Next() = (%v, %v), want (Shasta, true)", next, ok)
	}
	if _, ok := Shasta.Next(); ok {
		t.Fatal("Shasta.Next() reported a fork after the last known fork")
	}
}

func TestSchedule_ActiveAt(t *testing.T) {
	s := Schedule{PacayaToShasta: 1000}
	if s.ActiveAt(999) != Pacaya {
		t.Fatal("ActiveAt(999) should still be Pacaya before the switch")
	}
	if s.ActiveAt(1000) != Shasta {
		t.Fatal("ActiveAt(1000) should be Shasta at the switch instant")
	}
	if s.ActiveAt(1001) != Shasta {
		t.Fatal("ActiveAt(1001) should be Shasta after the switch")
	}

	always := Schedule{}
	if always.ActiveAt(0) != Pacaya {
		t.Fatal("a zero schedule should stay on Pacaya forever")
	}
}

func TestSchedule_IsTransitionPeriod(t *testing.T) {
	s := Schedule{PacayaToShasta: 1000, TransitionBufferSec: 10}
	if !s.IsTransitionPeriod(time.Unix(995, 0)) {
		t.Fatal("t=995 should be inside the transition buffer [990, 1010]")
	}
	if !s.IsTransitionPeriod(time.Unix(1010, 0)) {
		t.Fatal("t=1010 should be at the trailing edge of the transition buffer")
	}
	if s.IsTransitionPeriod(time.Unix(1011, 0)) {
		t.Fatal("t=1011 should be outside the transition buffer")
	}

	noBuffer := Schedule{PacayaToShasta: 1000}
	if noBuffer.IsTransitionPeriod(time.Unix(1000, 0)) {
		t.Fatal("a schedule with no TransitionBufferSec should never report a transition period")
	}
}
