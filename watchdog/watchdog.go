// Package watchdog counts consecutive failed orchestrator ticks and trips a
// critical cancellation once the failure streak crosses a threshold
// (spec.md §4.9).
package watchdog

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taikoxyz/preconf-sequencer/pkg/cancel"
)

// Watchdog trips cancelToken.CancelCritical once Increment has been called
// more than maxCounter times in a row without an intervening Reset.
type Watchdog struct {
	mu          sync.Mutex
	counter     uint64
	maxCounter  uint64
	cancelToken *cancel.Token
	criticalCnt prometheus.Counter
}

// New builds a Watchdog. maxCounter is typically l2_slots_per_epoch/2 per
// spec.md §4.9.
func New(cancelToken *cancel.Token, maxCounter uint64, criticalCnt prometheus.Counter) *Watchdog {
	return &Watchdog{
		cancelToken: cancelToken,
		maxCounter:  maxCounter,
		criticalCnt: criticalCnt,
	}
}

// Reset clears the failure streak. Called after any successful tick.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counter = 0
}

// Increment records a failed tick, tripping a critical cancellation once the
// streak exceeds maxCounter.
func (w *Watchdog) Increment() {
	w.mu.Lock()
	w.counter++
	counter := w.counter
	w.mu.Unlock()

	if counter > w.maxCounter {
		if w.criticalCnt != nil {
			w.criticalCnt.Inc()
		}
		log.Error("Watchdog triggered after consecutive failed ticks, shutting down", "count", counter)
		w.cancelToken.CancelCritical()
	}
}

// Counter returns the current failure streak, for tests and metrics.
func (w *Watchdog) Counter() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counter
}
