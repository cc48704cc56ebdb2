package watchdog

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/taikoxyz/preconf-sequencer/pkg/cancel"
)

func TestWatchdog_ResetClearsCounter(t *testing.T) {
	tok := cancel.New(context.Background(), nil)
	w := New(tok, 3, nil)

	w.Increment()
	w.Increment()
	if w.Counter() != 2 {
		t.Fatalf("Counter() = %d, want 2", w.Counter())
	}

	w.Reset()
	if w.Counter() != 0 {
		t.Fatalf("Counter() after Reset = %d, want 0", w.Counter())
	}
	if tok.Cancelled() {
		t.Fatal("token cancelled before crossing maxCounter")
	}
}

func TestWatchdog_TripsCriticalCancelAboveThreshold(t *testing.T) {
	var gotCritical bool
	tok := cancel.New(context.Background(), func(critical bool) { gotCritical = critical })
	w := New(tok, 2, nil)

	w.Increment()
	w.Increment()
	if tok.Cancelled() {
		t.Fatal("token cancelled at counter == maxCounter, want strictly greater")
	}

	w.Increment()
	if !tok.Cancelled() {
		t.Fatal("token not cancelled once counter exceeded maxCounter")
	}
	if !gotCritical {
		t.Fatal("watchdog trip was not marked critical")
	}
}

func TestWatchdog_IncrementsCriticalCounterMetric(t *testing.T) {
	metric := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_watchdog_trips"})
	tok := cancel.New(context.Background(), nil)
	w := New(tok, 1, metric)

	w.Increment()
	w.Increment()

	if got := testutil.ToFloat64(metric); got != 1 {
		t.Fatalf("critical counter value = %v, want 1", got)
	}
}
