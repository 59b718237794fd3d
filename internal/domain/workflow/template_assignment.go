package workflow

import "github.com/enterprise-bte/bte-engine/internal/domain"

// TemplateAssignment maps a SecurityGroup to a Template it must route
// through for transfers matching an optional transaction-code prefix.
// (securityGroup, template) is unique; executionOrder sequences the
// assignments that apply to a given (group, prefix) pair.
type TemplateAssignment struct {
	domain.BaseEntity
	SecurityGroupID       int    `json:"security_group_id"        gorm:"column:security_group_id;not null;uniqueIndex:idx_group_template"`
	TemplateID            int    `json:"template_id"               gorm:"column:template_id;not null;uniqueIndex:idx_group_template"`
	ExecutionOrder        int    `json:"execution_order"           gorm:"column:execution_order;not null"`
	TransactionCodeFilter string `json:"transaction_code_filter,omitempty" gorm:"column:transaction_code_filter;size:16"`
}

func (TemplateAssignment) TableName() string { return "bte.workflow_template_assignments" }
