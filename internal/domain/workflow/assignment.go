package workflow

import (
	"time"

	"github.com/enterprise-bte/bte-engine/internal/domain"
	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
)

// Assignment is one eligible-approver's unit of work on a StageInstance.
// (stageInstance, user) is unique; terminal statuses are monotone.
type Assignment struct {
	domain.BaseEntity
	StageInstanceID int                    `json:"stage_instance_id" gorm:"column:stage_instance_id;not null;uniqueIndex:idx_stage_user"`
	UserID          string                 `json:"user_id"           gorm:"column:user_id;not null;uniqueIndex:idx_stage_user;size:64"`
	RoleSnapshot    string                 `json:"role_snapshot"     gorm:"column:role_snapshot;size:128"`
	LevelSnapshot   int                    `json:"level_snapshot"    gorm:"column:level_snapshot"`
	IsMandatory     bool                   `json:"is_mandatory"      gorm:"column:is_mandatory;default:true"`
	AssignmentStatus enums.AssignmentStatus `json:"status"           gorm:"column:assignment_status;not null"`
	AssignedAt      time.Time              `json:"assigned_at"       gorm:"column:assigned_at;autoCreateTime"`
}

func (Assignment) TableName() string { return "bte.workflow_assignments" }

// Action is an append-only audit record of a user (or system) decision on a
// stage. Actions are never mutated or deleted once written.
type Action struct {
	domain.BaseEntity
	StageInstanceID         int               `json:"stage_instance_id"          gorm:"column:stage_instance_id;not null;index"`
	UserID                  *string           `json:"user_id,omitempty"          gorm:"column:user_id;size:64"`
	AssignmentID            *int              `json:"assignment_id,omitempty"    gorm:"column:assignment_id"`
	ActionType              enums.ActionType  `json:"action"                     gorm:"column:action_type;not null"`
	Comment                 string            `json:"comment,omitempty"          gorm:"column:comment;type:text"`
	ActionAt                time.Time         `json:"created_at"                 gorm:"column:action_at;autoCreateTime"`
	TriggersStageCompletion bool              `json:"triggers_stage_completion"  gorm:"column:triggers_stage_completion;default:false"`
}

func (Action) TableName() string { return "bte.workflow_actions" }

// Delegation records that fromUser handed their pending assignment on a
// stage to toUser. While Active, toUser must hold a pending Assignment on
// the same stage (§3.1 invariant, tested as property 8).
type Delegation struct {
	domain.BaseEntity
	FromUserID      string     `json:"from_user_id"       gorm:"column:from_user_id;not null;size:64"`
	ToUserID        string     `json:"to_user_id"         gorm:"column:to_user_id;not null;size:64"`
	StageInstanceID int        `json:"stage_instance_id"  gorm:"column:stage_instance_id;not null;index"`
	Active          bool       `json:"active"             gorm:"column:active;default:true"`
	DeactivatedAt   *time.Time `json:"deactivated_at,omitempty" gorm:"column:deactivated_at"`
}

func (Delegation) TableName() string { return "bte.workflow_delegations" }
