// Package cancel provides the single structured-cancellation primitive
// shared by every task in the node (spec.md §5 Concurrency & Resource Model,
// §9 Design Notes). It distinguishes a "critical" cancellation, which bumps a
// metric before shutting the node down, from an ordinary one.
package cancel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Token wraps a context.CancelFunc with a "critical" flag observed by the
// outer supervisor to decide whether to restart the node.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc

	critical atomic.Bool
	once     sync.Once
	onCancel func(critical bool)
}

// New creates a Token derived from parent. onCritical, if non-nil, is invoked
// exactly once the first time Cancel or CancelCritical fires, before the
// context is actually cancelled, so callers can bump metrics synchronously.
func New(parent context.Context, onCancel func(critical bool)) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel, onCancel: onCancel}
}

// Context returns the cancellable context every task should select on.
func (t *Token) Context() context.Context { return t.ctx }

// Done returns the channel that closes once the token is cancelled, for use
// in a select against a tick timer (the required "select! on tick vs
// cancelled()" pattern from spec.md §5).
func (t *Token) Done() <-chan struct{} { return t.ctx.Done() }

// Cancel performs an ordinary (non-critical) shutdown.
func (t *Token) Cancel() { t.fire(false) }

// CancelCritical performs a critical shutdown: sustained desync, an
// unrecoverable signer/provider init failure, or a panic-hook invocation.
func (t *Token) CancelCritical() { t.fire(true) }

func (t *Token) fire(critical bool) {
	t.once.Do(func() {
		t.critical.Store(critical)
		if t.onCancel != nil {
			t.onCancel(critical)
		}
		t.cancel()
	})
}

// IsCritical reports whether the token, once cancelled, was cancelled
// critically. Meaningless before cancellation.
func (t *Token) IsCritical() bool { return t.critical.Load() }

// Cancelled reports whether the token has fired.
func (t *Token) Cancelled() bool {
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}
