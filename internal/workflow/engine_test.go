package workflow

import (
	"testing"
	"time"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
)

// --- transactionCodePrefix ---

func TestTransactionCodePrefix(t *testing.T) {
	cases := map[string]string{
		"TRN-001": "TRN",
		"AB":      "",
		"":        "",
		"XYZ123":  "XYZ",
	}
	for in, want := range cases {
		if got := transactionCodePrefix(in); got != want {
			t.Errorf("transactionCodePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- determineNextOrderIndex ---

func TestDetermineNextOrderIndex_NoExistingStages(t *testing.T) {
	templateStages := []domainworkflow.StageTemplate{
		{OrderIndex: 2}, {OrderIndex: 1}, {OrderIndex: 3},
	}
	next, found := determineNextOrderIndex(templateStages, nil)
	if !found || next != 1 {
		t.Errorf("determineNextOrderIndex() = (%d, %v), want (1, true)", next, found)
	}
}

func TestDetermineNextOrderIndex_AdvancesPastCompleted(t *testing.T) {
	templateStages := []domainworkflow.StageTemplate{
		{OrderIndex: 1}, {OrderIndex: 2}, {OrderIndex: 3},
	}
	existing := []domainworkflow.StageInstance{
		{OrderIndexSnapshot: 1, StageStatus: enums.StageStatusCompleted},
	}
	next, found := determineNextOrderIndex(templateStages, existing)
	if !found || next != 2 {
		t.Errorf("determineNextOrderIndex() = (%d, %v), want (2, true)", next, found)
	}
}

func TestDetermineNextOrderIndex_SkippedCountsAsAdvanced(t *testing.T) {
	templateStages := []domainworkflow.StageTemplate{
		{OrderIndex: 1}, {OrderIndex: 2},
	}
	existing := []domainworkflow.StageInstance{
		{OrderIndexSnapshot: 1, StageStatus: enums.StageStatusSkipped},
	}
	next, found := determineNextOrderIndex(templateStages, existing)
	if !found || next != 2 {
		t.Errorf("determineNextOrderIndex() = (%d, %v), want (2, true)", next, found)
	}
}

func TestDetermineNextOrderIndex_ExhaustedChainReturnsNotFound(t *testing.T) {
	templateStages := []domainworkflow.StageTemplate{
		{OrderIndex: 1}, {OrderIndex: 2},
	}
	existing := []domainworkflow.StageInstance{
		{OrderIndexSnapshot: 1, StageStatus: enums.StageStatusCompleted},
		{OrderIndexSnapshot: 2, StageStatus: enums.StageStatusCompleted},
	}
	_, found := determineNextOrderIndex(templateStages, existing)
	if found {
		t.Error("expected found = false once every stage is past")
	}
}

func TestDetermineNextOrderIndex_ActiveStageDoesNotCountAsAdvanced(t *testing.T) {
	templateStages := []domainworkflow.StageTemplate{
		{OrderIndex: 1}, {OrderIndex: 2},
	}
	existing := []domainworkflow.StageInstance{
		{OrderIndexSnapshot: 1, StageStatus: enums.StageStatusActive},
	}
	next, found := determineNextOrderIndex(templateStages, existing)
	if !found || next != 1 {
		t.Errorf("determineNextOrderIndex() = (%d, %v), want (1, true) — active stage should not advance the pointer", next, found)
	}
}

// --- evaluateStage (decision policies, pure part via constructed snapshots) ---

func TestEvaluateStage_AllPolicy_PendingUntilEveryoneApproves(t *testing.T) {
	st := &domainworkflow.StageInstance{DecisionPolicySnapshot: enums.DecisionPolicyAll, AllowRejectSnapshot: true}
	assignments := []domainworkflow.Assignment{
		{AssignmentStatus: enums.AssignmentStatusApproved},
		{AssignmentStatus: enums.AssignmentStatusPending},
	}
	outcome := decidePolicyOutcome(st.DecisionPolicySnapshot, assignments, st.QuorumCountSnapshot)
	if outcome != enums.StageOutcomePending {
		t.Errorf("outcome = %v, want pending", outcome)
	}
}

func TestEvaluateStage_AnyPolicy_ApprovedOnFirstApproval(t *testing.T) {
	assignments := []domainworkflow.Assignment{
		{AssignmentStatus: enums.AssignmentStatusPending},
		{AssignmentStatus: enums.AssignmentStatusApproved},
	}
	outcome := decidePolicyOutcome(enums.DecisionPolicyAny, assignments, nil)
	if outcome != enums.StageOutcomeApproved {
		t.Errorf("outcome = %v, want approved", outcome)
	}
}

func TestEvaluateStage_QuorumPolicy_UnsatisfiableWhenQuorumExceedsAssignees(t *testing.T) {
	q := 3
	assignments := []domainworkflow.Assignment{
		{AssignmentStatus: enums.AssignmentStatusApproved},
	}
	outcome := decidePolicyOutcome(enums.DecisionPolicyQuorum, assignments, &q)
	if outcome != enums.StageOutcomeUnsatisfiable {
		t.Errorf("outcome = %v, want unsatisfiable", outcome)
	}
}

func TestEvaluateStage_QuorumPolicy_ApprovedOnceThresholdMet(t *testing.T) {
	q := 2
	assignments := []domainworkflow.Assignment{
		{AssignmentStatus: enums.AssignmentStatusApproved},
		{AssignmentStatus: enums.AssignmentStatusApproved},
		{AssignmentStatus: enums.AssignmentStatusPending},
	}
	outcome := decidePolicyOutcome(enums.DecisionPolicyQuorum, assignments, &q)
	if outcome != enums.StageOutcomeApproved {
		t.Errorf("outcome = %v, want approved", outcome)
	}
}

func TestScanSLABreaches_DeadlineArithmetic(t *testing.T) {
	activatedAt := time.Now().Add(-3 * time.Hour)
	slaHours := 2
	if !slaDeadlinePassed(activatedAt, slaHours, time.Now().UTC()) {
		t.Error("expected a 2-hour SLA activated 3 hours ago to be breached")
	}

	freshActivatedAt := time.Now().Add(-30 * time.Minute)
	if slaDeadlinePassed(freshActivatedAt, slaHours, time.Now().UTC()) {
		t.Error("expected a 2-hour SLA activated 30 minutes ago to not be breached")
	}
}
