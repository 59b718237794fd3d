package audit

import (
	"time"

	"github.com/enterprise-bte/bte-engine/internal/domain"
	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
)

// AuditLog records property-level change history for audited entities.
// Populated by the GORM callbacks registered in repository.AuditInterceptor.
type AuditLog struct {
	domain.BaseEntity
	UserName          string               `json:"user_name"            gorm:"column:user_name"`
	AuditEventDateUTC time.Time            `json:"audit_event_date_utc" gorm:"column:audit_event_date_utc;index"`
	AuditEventType    enums.AuditEventType `json:"audit_event_type"     gorm:"column:audit_event_type"`
	AuditTableName    string               `json:"table_name"           gorm:"column:table_name;index"`
	RecordID          string               `json:"record_id"            gorm:"column:record_id"`
	FieldName         string               `json:"field_name"           gorm:"column:field_name"`
	OriginalValue     string               `json:"original_value"       gorm:"column:original_value;type:text"`
	NewValue          string               `json:"new_value"            gorm:"column:new_value;type:text"`
}

func (AuditLog) TableName() string { return "bte.audit_logs" }
