package cancel

import (
	"context"
	"testing"
)

func TestToken_CancelInvokesOnCancelOnce(t *testing.T) {
	calls := 0
	var lastCritical bool
	tok := New(context.Background(), func(critical bool) {
		calls++
		lastCritical = critical
	})

	if tok.Cancelled() {
		t.Fatal("a fresh token reports Cancelled() = true")
	}

	tok.Cancel()
	tok.Cancel()
	tok.CancelCritical()

	if calls != 1 {
		t.Fatalf("onCancel invoked %d times, want exactly once", calls)
	}
	if lastCritical {
		t.Fatal("onCancel reported critical=true for an ordinary Cancel()")
	}
	if !tok.Cancelled() {
		t.Fatal("Cancelled() = false after Cancel()")
	}
	if tok.IsCritical() {
		t.Fatal("IsCritical() = true after a non-critical cancel")
	}

	select {
	case <-tok.Done():
	default:
		t.Fatal("Done() channel not closed after Cancel()")
	}
}

func TestToken_CancelCritical(t *testing.T) {
	var gotCritical bool
	tok := New(context.Background(), func(critical bool) { gotCritical = critical })

	tok.CancelCritical()

	if !gotCritical {
		t.Fatal("onCancel reported critical=false for CancelCritical()")
	}
	if !tok.IsCritical() {
		t.Fatal("IsCritical() = false after CancelCritical()")
	}
	if !tok.Cancelled() {
		t.Fatal("Cancelled() = false after CancelCritical()")
	}
}

func TestToken_NilOnCancelIsSafe(t *testing.T) {
	tok := New(context.Background(), nil)
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatal("Cancelled() = false after Cancel() with a nil onCancel")
	}
}

func TestToken_ContextCancelledWithParent(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	tok := New(parent, nil)
	parentCancel()
	<-tok.Context().Done()
	if !tok.Cancelled() {
		t.Fatal("Cancelled() = false after parent context cancellation")
	}
}
