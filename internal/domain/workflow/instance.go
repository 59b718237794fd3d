package workflow

import (
	"time"

	"github.com/enterprise-bte/bte-engine/internal/domain"
	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
)

// Instance is one materialized traversal of a Template for one transfer.
// A transfer may hold several instances over its lifetime (the chain,
// §4.4.5); at most one is ever pending/in-progress at a time.
type Instance struct {
	domain.BaseEntity
	TransferID            string                       `json:"transfer_id"              gorm:"column:transfer_id;not null;index"`
	TemplateID            int                          `json:"template_id"              gorm:"column:template_id;not null"`
	ExecutionOrder        int                          `json:"execution_order"          gorm:"column:execution_order;not null"`
	WorkflowStatus        enums.WorkflowInstanceStatus `json:"status"                   gorm:"column:workflow_status;not null"`
	CurrentStageTemplateID *int                        `json:"current_stage_template_id,omitempty" gorm:"column:current_stage_template_id"`
	StartedAt             *time.Time                   `json:"started_at,omitempty"     gorm:"column:started_at"`
	FinishedAt            *time.Time                   `json:"finished_at,omitempty"    gorm:"column:finished_at"`

	Template *Template       `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
	Stages   []StageInstance `json:"stages,omitempty"   gorm:"foreignKey:InstanceID"`
}

func (Instance) TableName() string { return "bte.workflow_instances" }

// IsActive reports whether this instance is the one currently driving the
// chain (pending or in-progress, i.e. not yet terminal).
func (i Instance) IsActive() bool {
	return !i.WorkflowStatus.IsTerminal()
}

// StageInstance is one activation of a StageTemplate within an Instance.
// Several StageInstances can be concurrently active only if they share the
// same stageTemplate.orderIndex (the active "order group").
type StageInstance struct {
	domain.BaseEntity
	InstanceID      int                        `json:"instance_id"       gorm:"column:instance_id;not null;index"`
	StageTemplateID int                        `json:"stage_template_id" gorm:"column:stage_template_id;not null"`
	StageStatus     enums.StageInstanceStatus `json:"status"             gorm:"column:stage_status;not null"`
	ActivatedAt     *time.Time                 `json:"activated_at,omitempty" gorm:"column:activated_at"`
	CompletedAt     *time.Time                 `json:"completed_at,omitempty" gorm:"column:completed_at"`

	// OrderIndexSnapshot and DecisionPolicySnapshot/QuorumCountSnapshot
	// preserve the template's shape at activation time (§4.2: edits to
	// decisionPolicy/quorumCount apply only to future instances).
	OrderIndexSnapshot     int                  `json:"order_index"      gorm:"column:order_index_snapshot;not null"`
	DecisionPolicySnapshot enums.DecisionPolicy `json:"decision_policy"  gorm:"column:decision_policy_snapshot;not null"`
	QuorumCountSnapshot    *int                 `json:"quorum_count,omitempty" gorm:"column:quorum_count_snapshot"`
	AllowRejectSnapshot    bool                 `json:"allow_reject"     gorm:"column:allow_reject_snapshot"`
	AllowDelegateSnapshot  bool                 `json:"allow_delegate"   gorm:"column:allow_delegate_snapshot"`

	StageTemplate *StageTemplate `json:"stage_template,omitempty" gorm:"foreignKey:StageTemplateID"`
	Assignments   []Assignment   `json:"assignments,omitempty"    gorm:"foreignKey:StageInstanceID"`
}

func (StageInstance) TableName() string { return "bte.workflow_stage_instances" }

// IsTerminal reports whether the stage instance has left the active set.
func (s StageInstance) IsTerminal() bool {
	return s.StageStatus.IsTerminal()
}
