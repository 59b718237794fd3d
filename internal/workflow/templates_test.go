package workflow

import (
	"testing"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	domainworkflow "github.com/enterprise-bte/bte-engine/internal/domain/workflow"
)

func intPtr(n int) *int { return &n }

func TestValidateQuorum_NonQuorumPolicyAlwaysPasses(t *testing.T) {
	stages := []domainworkflow.StageTemplate{
		{DecisionPolicy: enums.DecisionPolicyAll, QuorumCount: nil},
		{DecisionPolicy: enums.DecisionPolicyAny, QuorumCount: nil},
	}
	for _, s := range stages {
		if err := validateQuorum(s); err != nil {
			t.Errorf("validateQuorum(%s) = %v, want nil", s.DecisionPolicy, err)
		}
	}
}

func TestValidateQuorum_QuorumPolicyRequiresPositiveCount(t *testing.T) {
	cases := []struct {
		name    string
		count   *int
		wantErr bool
	}{
		{"nil count", nil, true},
		{"zero count", intPtr(0), true},
		{"negative count", intPtr(-1), true},
		{"positive count", intPtr(2), false},
	}
	for _, c := range cases {
		stage := domainworkflow.StageTemplate{Name: "Finance Review", DecisionPolicy: enums.DecisionPolicyQuorum, QuorumCount: c.count}
		err := validateQuorum(stage)
		if c.wantErr && err == nil {
			t.Errorf("%s: expected error, got nil", c.name)
		}
		if !c.wantErr && err != nil {
			t.Errorf("%s: expected nil, got %v", c.name, err)
		}
		if c.wantErr && err != nil && !IsKind(err, KindConfigurationError) {
			t.Errorf("%s: expected KindConfigurationError, got %v", c.name, err)
		}
	}
}

func TestStageTemplate_ArchiveIsIdempotent(t *testing.T) {
	stage := domainworkflow.StageTemplate{OrderIndex: 3}
	stage.Archive()
	if !stage.IsArchived() {
		t.Fatal("stage should be archived after Archive()")
	}
	archivedIndex := stage.OrderIndex

	stage.Archive()
	if stage.OrderIndex != archivedIndex {
		t.Errorf("second Archive() call changed OrderIndex: %d -> %d", archivedIndex, stage.OrderIndex)
	}
}
