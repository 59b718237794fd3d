package workflow

import (
	"github.com/enterprise-bte/bte-engine/internal/domain"
	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
)

// Template is the immutable-per-version definition of an approval workflow:
// an ordered set of stages a transfer of a given type moves through.
type Template struct {
	domain.BaseEntity
	Code          string            `json:"code"           gorm:"column:code;uniqueIndex;size:64;not null"`
	TransferType  enums.TransferType `json:"transfer_type" gorm:"column:transfer_type;not null"`
	Name          string            `json:"name"           gorm:"column:name;size:255;not null"`
	Version       int               `json:"version"        gorm:"column:version;not null;default:1"`
	TemplateActive bool             `json:"is_active"      gorm:"column:template_active;default:true"`
	AllowWithdraw bool              `json:"allow_withdraw" gorm:"column:allow_withdraw;default:false"`
	AllowReopen   bool              `json:"allow_reopen"   gorm:"column:allow_reopen;default:false"`

	Stages []StageTemplate `json:"stages,omitempty" gorm:"foreignKey:TemplateID"`
}

func (Template) TableName() string { return "bte.workflow_templates" }

// StageTemplate is one step of a Template: a decision policy and the
// eligibility filter (role/level) used to materialize Assignments when the
// stage activates.
type StageTemplate struct {
	domain.BaseEntity
	TemplateID        int                 `json:"template_id"          gorm:"column:template_id;not null;index"`
	OrderIndex        int                 `json:"order_index"          gorm:"column:order_index;not null"`
	Name              string              `json:"name"                 gorm:"column:name;size:255;not null"`
	DecisionPolicy    enums.DecisionPolicy `json:"decision_policy"      gorm:"column:decision_policy;not null"`
	QuorumCount       *int                `json:"quorum_count"         gorm:"column:quorum_count"`
	AllowReject       bool                `json:"allow_reject"         gorm:"column:allow_reject;default:true"`
	AllowDelegate     bool                `json:"allow_delegate"       gorm:"column:allow_delegate;default:false"`
	SLAHours          *int                `json:"sla_hours"            gorm:"column:sla_hours"`
	RequiredRoleID    *int                `json:"required_role_id"     gorm:"column:required_role_id"`
	RequiredUserLevel *int                `json:"required_user_level"  gorm:"column:required_user_level"`
	ParallelGroup     *int                `json:"parallel_group"       gorm:"column:parallel_group"`
}

func (StageTemplate) TableName() string { return "bte.workflow_stage_templates" }

// ArchivedThreshold is the order-index floor at which a stage template is
// considered archived (retained for audit, never re-activated). Resolved
// from the original implementation's ARCHIVED_STAGE_ORDER_INDEX_START.
const ArchivedThreshold = 9999

// IsArchived reports whether the stage's orderIndex places it past the
// archived threshold.
func (s StageTemplate) IsArchived() bool {
	return s.OrderIndex >= ArchivedThreshold
}

// Archive relocates the stage past the archived threshold, preserving the
// original ordering as an offset so an administrator can still read the
// stage's historical position.
func (s *StageTemplate) Archive() {
	if s.IsArchived() {
		return
	}
	s.OrderIndex = ArchivedThreshold + s.OrderIndex
}
