// Package errs defines the error taxonomy spec.md §7 requires the
// orchestrator and its components to classify every failure into, building on
// cyberhorsey/errors for the underlying wrapped/coded error value the way
// taiko-client's own HTTP and RPC handlers do.
package errs

import (
	"errors"
	"fmt"

	cherrors "github.com/cyberhorsey/errors"
)

// Kind is one of the taxonomy buckets from spec.md §7. It is not a Go error
// type itself — components wrap it via New so callers can both
// errors.Is(err, ErrTransientRpc) and read a human message.
type Kind int

const (
	// KindTransientRpc is network/timeout/5xx; retried next tick, contributes
	// to the watchdog counter.
	KindTransientRpc Kind = iota
	// KindEstimationTooEarly means the L1 simulation reports the batch's
	// last-block timestamp would exceed the current L1 slot boundary; soft
	// failure, tick is skipped, batch kept.
	KindEstimationTooEarly
	// KindEstimationFailed is a gas-estimation revert on the blob/calldata
	// path; tx is not submitted, queue retained, next tick retries.
	KindEstimationFailed
	// KindFatalSubmit is a tx receipt with non-success status or a
	// selector-recognized non-recoverable error; queue dropped, builder reset.
	KindFatalSubmit
	// KindDriverRejectedRecoverable means remove the last appended L2 block
	// and surface to the caller.
	KindDriverRejectedRecoverable
	// KindDriverRejectedFatal (e.g. unknown parent) triggers a critical cancel.
	KindDriverRejectedFatal
	// KindDecodeError is malformed on-chain data; log and skip that record.
	KindDecodeError
	// KindCritical is sustained desync or unrecoverable signer/provider init;
	// cancels the token marked critical.
	KindCritical
)

func (k Kind) String() string {
	switch k {
	case KindTransientRpc:
		return "TransientRpc"
	case KindEstimationTooEarly:
		return "EstimationTooEarly"
	case KindEstimationFailed:
		return "EstimationFailed"
	case KindFatalSubmit:
		return "FatalSubmit"
	case KindDriverRejectedRecoverable:
		return "DriverRejected.Recoverable"
	case KindDriverRejectedFatal:
		return "DriverRejected.Fatal"
	case KindDecodeError:
		return "DecodeError"
	case KindCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a taxonomy-tagged error. The embedded *cherrors.Error carries the
// human-readable message and chained cause the same way taiko-client's HTTP
// handlers build their error responses.
type Error struct {
	Kind Kind
	err  *cherrors.Error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.err.Error()) }

func (e *Error) Unwrap() error { return e.err }

// New builds a taxonomy error with message msg and no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, err: cherrors.New(msg)}
}

// Wrap attaches kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, err: cherrors.New(msg).Wrap(cause)}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsRetryable reports whether a tick should treat the error as transient and
// simply try again next tick, vs. a hard failure the watchdog must count more
// seriously (spec.md §7: TransientRpc, EstimationTooEarly, EstimationFailed
// and DriverRejected.Recoverable are all soft failures; everything else is not).
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransientRpc, KindEstimationTooEarly, KindEstimationFailed, KindDriverRejectedRecoverable:
		return true
	default:
		return false
	}
}

// IsCritical reports whether err should trigger a critical cancellation
// (spec.md §7: DriverRejected.Fatal and Critical).
func IsCritical(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindDriverRejectedFatal || e.Kind == KindCritical
}
