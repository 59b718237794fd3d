package workflow

import (
	"testing"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
)

func TestInstance_IsActive(t *testing.T) {
	cases := []struct {
		status enums.WorkflowInstanceStatus
		want   bool
	}{
		{enums.WorkflowStatusPending, true},
		{enums.WorkflowStatusInProgress, true},
		{enums.WorkflowStatusApproved, false},
		{enums.WorkflowStatusRejected, false},
		{enums.WorkflowStatusCancelled, false},
	}
	for _, c := range cases {
		i := Instance{WorkflowStatus: c.status}
		if got := i.IsActive(); got != c.want {
			t.Errorf("Instance{%s}.IsActive() = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestStageInstance_IsTerminal(t *testing.T) {
	cases := []struct {
		status enums.StageInstanceStatus
		want   bool
	}{
		{enums.StageStatusPending, false},
		{enums.StageStatusActive, false},
		{enums.StageStatusCompleted, true},
		{enums.StageStatusSkipped, true},
		{enums.StageStatusCancelled, true},
	}
	for _, c := range cases {
		s := StageInstance{StageStatus: c.status}
		if got := s.IsTerminal(); got != c.want {
			t.Errorf("StageInstance{%s}.IsTerminal() = %v, want %v", c.status, got, c.want)
		}
	}
}
