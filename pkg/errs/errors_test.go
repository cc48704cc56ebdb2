package errs

import (
	"errors"
	"testing"
)

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		KindTransientRpc:             "TransientRpc",
		KindEstimationTooEarly:       "EstimationTooEarly",
		KindEstimationFailed:         "EstimationFailed",
		KindFatalSubmit:              "FatalSubmit",
		KindDriverRejectedRecoverable: "DriverRejected.Recoverable",
		KindDriverRejectedFatal:      "DriverRejected.Fatal",
		KindDecodeError:              "DecodeError",
		KindCritical:                 "Critical",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
	if got := Kind(99).String(); got != "Kind(99)" {
		t.Errorf("unknown Kind.String() = %q, want Kind(99)", got)
	}
}

func TestNewAndIs(t *testing.T) {
	err := New(KindDecodeError, "bad calldata")
	if !Is(err, KindDecodeError) {
		t.Fatal("Is(err, KindDecodeError) = false")
	}
	if Is(err, KindCritical) {
		t.Fatal("Is(err, KindCritical) = true, want false")
	}
	if Is(errors.New("plain"), KindDecodeError) {
		t.Fatal("Is on a non-taxonomy error returned true")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindTransientRpc, cause, "fetching receipt")
	if !Is(err, KindTransientRpc) {
		t.Fatal("Wrap did not tag KindTransientRpc")
	}
	if !errors.Is(err, cause) {
		t.Fatal("Wrap did not preserve the cause in the chain")
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []Kind{KindTransientRpc, KindEstimationTooEarly, KindEstimationFailed, KindDriverRejectedRecoverable}
	for _, k := range retryable {
		if !IsRetryable(New(k, "x")) {
			t.Errorf("IsRetryable(%s) = false, want true", k)
		}
	}
	notRetryable := []Kind{KindFatalSubmit, KindDriverRejectedFatal, KindDecodeError, KindCritical}
	for _, k := range notRetryable {
		if IsRetryable(New(k, "x")) {
			t.Errorf("IsRetryable(%s) = true, want false", k)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("IsRetryable on a non-taxonomy error returned true")
	}
}

func TestIsCritical(t *testing.T) {
	if !IsCritical(New(KindDriverRejectedFatal, "unknown parent")) {
		t.Fatal("IsCritical(DriverRejectedFatal) = false")
	}
	if !IsCritical(New(KindCritical, "sustained desync")) {
		t.Fatal("IsCritical(Critical) = false")
	}
	if IsCritical(New(KindTransientRpc, "x")) {
		t.Fatal("IsCritical(TransientRpc) = true, want false")
	}
	if IsCritical(errors.New("plain")) {
		t.Fatal("IsCritical on a non-taxonomy error returned true")
	}
}
