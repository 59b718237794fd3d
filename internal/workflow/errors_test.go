package workflow

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKind_MatchesWrappedEngineError(t *testing.T) {
	base := newErr(KindNotFound, ReasonStageNotFound, "stage template not found")
	wrapped := fmt.Errorf("loading stage: %w", base)

	if !IsKind(wrapped, KindNotFound) {
		t.Error("IsKind should see through fmt.Errorf wrapping")
	}
	if IsKind(wrapped, KindAccessDenied) {
		t.Error("IsKind should not match an unrelated kind")
	}
}

func TestIsKind_NonEngineError(t *testing.T) {
	if IsKind(errors.New("plain error"), KindInternalError) {
		t.Error("IsKind should return false for a non-EngineError")
	}
	if IsKind(nil, KindInternalError) {
		t.Error("IsKind should return false for a nil error")
	}
}

func TestEngineError_Error_PrefersMessage(t *testing.T) {
	e := newErr(KindPolicyViolation, "some-reason", "human readable detail")
	if got, want := e.Error(), "policy-violation: human readable detail"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestEngineError_Error_FallsBackToReason(t *testing.T) {
	e := newErr(KindPolicyViolation, "some-reason", "")
	if got, want := e.Error(), "policy-violation: some-reason"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapErr_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("db connection refused")
	wrapped := wrapErr(KindInternalError, "query-failed", cause)

	if !errors.Is(wrapped, cause) {
		t.Error("wrapErr result should unwrap to the original cause")
	}
}
