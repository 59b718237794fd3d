package enums

import "testing"

func TestWorkflowInstanceStatus_IsTerminal(t *testing.T) {
	cases := map[WorkflowInstanceStatus]bool{
		WorkflowStatusPending:    false,
		WorkflowStatusInProgress: false,
		WorkflowStatusApproved:   true,
		WorkflowStatusRejected:   true,
		WorkflowStatusCancelled:  true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestStageInstanceStatus_IsTerminal(t *testing.T) {
	cases := map[StageInstanceStatus]bool{
		StageStatusPending:   false,
		StageStatusActive:    false,
		StageStatusCompleted: true,
		StageStatusSkipped:   true,
		StageStatusCancelled: true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestAssignmentStatus_IsTerminal(t *testing.T) {
	cases := map[AssignmentStatus]bool{
		AssignmentStatusPending:   false,
		AssignmentStatusApproved:  true,
		AssignmentStatusRejected:  true,
		AssignmentStatusDelegated: true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestStringers_UnknownValueFallback(t *testing.T) {
	if got := WorkflowInstanceStatus(99).String(); got != "unknown" {
		t.Errorf("WorkflowInstanceStatus(99).String() = %q, want %q", got, "unknown")
	}
	if got := StageInstanceStatus(99).String(); got != "unknown" {
		t.Errorf("StageInstanceStatus(99).String() = %q, want %q", got, "unknown")
	}
	if got := AssignmentStatus(99).String(); got != "unknown" {
		t.Errorf("AssignmentStatus(99).String() = %q, want %q", got, "unknown")
	}
	if got := ActionType(99).String(); got != "unknown" {
		t.Errorf("ActionType(99).String() = %q, want %q", got, "unknown")
	}
	if got := TransferType(99).String(); got != "unknown" {
		t.Errorf("TransferType(99).String() = %q, want %q", got, "unknown")
	}
	if got := DecisionPolicy(99).String(); got != "unknown" {
		t.Errorf("DecisionPolicy(99).String() = %q, want %q", got, "unknown")
	}
	if got := AuditEventType(99).String(); got != "unknown" {
		t.Errorf("AuditEventType(99).String() = %q, want %q", got, "unknown")
	}
}

func TestStageOutcome_String(t *testing.T) {
	cases := map[StageOutcome]string{
		StageOutcomePending:       "pending",
		StageOutcomeApproved:      "approved",
		StageOutcomeRejected:      "rejected",
		StageOutcomeUnsatisfiable: "unsatisfiable",
		StageOutcome(99):          "pending",
	}
	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Errorf("StageOutcome(%d).String() = %q, want %q", outcome, got, want)
		}
	}
}

func TestActionType_KnownValues(t *testing.T) {
	cases := map[ActionType]string{
		ActionApprove:  "approve",
		ActionReject:   "reject",
		ActionDelegate: "delegate",
	}
	for action, want := range cases {
		if got := action.String(); got != want {
			t.Errorf("ActionType.String() = %q, want %q", got, want)
		}
	}
}
