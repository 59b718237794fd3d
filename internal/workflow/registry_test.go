package workflow

import (
	"testing"

	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
)

func TestDenseExecutionOrder_ClosesGapsPreservingOrder(t *testing.T) {
	in := []domainworkflow.TemplateAssignment{
		{TemplateID: 10, ExecutionOrder: 5},
		{TemplateID: 20, ExecutionOrder: 30},
		{TemplateID: 30, ExecutionOrder: 31},
	}
	out := DenseExecutionOrder(in)

	wantOrder := []int{1, 2, 3}
	wantTemplate := []int{10, 20, 30}
	for i, a := range out {
		if a.ExecutionOrder != wantOrder[i] {
			t.Errorf("out[%d].ExecutionOrder = %d, want %d", i, a.ExecutionOrder, wantOrder[i])
		}
		if a.TemplateID != wantTemplate[i] {
			t.Errorf("out[%d].TemplateID = %d, want %d (order not preserved)", i, a.TemplateID, wantTemplate[i])
		}
	}
}

func TestDenseExecutionOrder_DoesNotMutateInput(t *testing.T) {
	in := []domainworkflow.TemplateAssignment{
		{TemplateID: 1, ExecutionOrder: 99},
	}
	_ = DenseExecutionOrder(in)

	if in[0].ExecutionOrder != 99 {
		t.Errorf("input slice was mutated: ExecutionOrder = %d, want 99", in[0].ExecutionOrder)
	}
}

func TestDenseExecutionOrder_Empty(t *testing.T) {
	out := DenseExecutionOrder(nil)
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d elements", len(out))
	}
}
