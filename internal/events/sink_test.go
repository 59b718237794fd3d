package events

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
)

// fakeSink records which calls it received and optionally panics, to
// exercise CompositeSink's fan-out and panic-recovery behavior.
type fakeSink struct {
	name    string
	panics  bool
	calls   *[]string
}

func (f *fakeSink) record(event string) {
	if f.panics {
		panic(f.name + " panicked on " + event)
	}
	*f.calls = append(*f.calls, f.name+":"+event)
}

func (f *fakeSink) StageActivated(_ context.Context, _ domainworkflow.StageInstance)      { f.record("stage-activated") }
func (f *fakeSink) StageSkipped(_ context.Context, _ domainworkflow.StageInstance)        { f.record("stage-skipped") }
func (f *fakeSink) StageCompleted(_ context.Context, _ domainworkflow.StageInstance, _ string) {
	f.record("stage-completed")
}
func (f *fakeSink) WorkflowApproved(_ context.Context, _ domainworkflow.Instance)  { f.record("workflow-approved") }
func (f *fakeSink) WorkflowRejected(_ context.Context, _ domainworkflow.Instance)  { f.record("workflow-rejected") }
func (f *fakeSink) WorkflowCancelled(_ context.Context, _ domainworkflow.Instance) { f.record("workflow-cancelled") }
func (f *fakeSink) ChainCompleted(_ context.Context, _ string, _ string)           { f.record("chain-completed") }
func (f *fakeSink) TransferTerminal(_ context.Context, _ string, _ string)         { f.record("transfer-terminal") }
func (f *fakeSink) SLABreached(_ context.Context, _ domainworkflow.StageInstance)  { f.record("sla-breached") }
func (f *fakeSink) OperationalWarning(_ context.Context, _ string, _ string)       { f.record("operational-warning") }

func TestCompositeSink_FansOutToEveryMember(t *testing.T) {
	var calls []string
	a := &fakeSink{name: "a", calls: &calls}
	b := &fakeSink{name: "b", calls: &calls}
	composite := NewCompositeSink(zerolog.Nop(), a, b)

	composite.WorkflowApproved(context.Background(), domainworkflow.Instance{})

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d: %v", len(calls), calls)
	}
	want := map[string]bool{"a:workflow-approved": true, "b:workflow-approved": true}
	for _, c := range calls {
		if !want[c] {
			t.Errorf("unexpected call %q", c)
		}
	}
}

func TestCompositeSink_PanickingMemberDoesNotBlockOthers(t *testing.T) {
	var calls []string
	broken := &fakeSink{name: "broken", panics: true, calls: &calls}
	healthy := &fakeSink{name: "healthy", calls: &calls}
	composite := NewCompositeSink(zerolog.Nop(), broken, healthy)

	composite.ChainCompleted(context.Background(), "tx-1", "approved")

	if len(calls) != 1 || calls[0] != "healthy:chain-completed" {
		t.Errorf("expected only the healthy sink to record, got %v", calls)
	}
}

func TestCompositeSink_EmptySinkListIsSafe(t *testing.T) {
	composite := NewCompositeSink(zerolog.Nop())
	composite.SLABreached(context.Background(), domainworkflow.StageInstance{})
}
