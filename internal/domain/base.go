package domain

import (
	"time"

	"gorm.io/gorm"
)

// BaseAudit carries creation/update provenance for append-mostly tables
// (e.g. the audit log itself) that do not use an auto-increment int PK
// convention.
type BaseAudit struct {
	CreatedBy   string     `json:"created_by"   gorm:"column:created_by;size:75;default:'SYSTEM'"`
	DateCreated time.Time  `json:"date_created" gorm:"column:date_created;autoCreateTime"`
	IsActive    bool       `json:"is_active"    gorm:"column:is_active;default:true"`
	Status      string     `json:"status"       gorm:"column:status;size:25"`
	SoftDeleted bool       `json:"-"            gorm:"column:soft_deleted;default:false;index"`
	DateUpdated *time.Time `json:"date_updated" gorm:"column:date_updated"`
	UpdatedBy   string     `json:"updated_by"   gorm:"column:updated_by"`
}

// BaseEntity is embedded by every persisted workflow/authorization entity.
// Int auto-increment PK, soft-delete flag, and audit columns.
type BaseEntity struct {
	ID           int        `json:"id"            gorm:"column:id;primaryKey;autoIncrement"`
	RecordStatus string     `json:"record_status" gorm:"column:record_status;default:'Active'"`
	CreatedAt    *time.Time `json:"created_at"    gorm:"column:created_at;autoCreateTime"`
	SoftDeleted  bool       `json:"-"             gorm:"column:soft_deleted;default:false;index"`
	Status       string     `json:"status"        gorm:"column:status"`
	UpdatedAt    *time.Time `json:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`
	CreatedBy    string     `json:"created_by"    gorm:"column:created_by;size:100"`
	UpdatedBy    string     `json:"updated_by"    gorm:"column:updated_by;size:100"`
	IsActive     bool       `json:"is_active"     gorm:"column:is_active;default:true"`
}

// --- GORM Hooks ---

// BeforeCreate sets audit fields on new BaseAudit records.
func (b *BaseAudit) BeforeCreate(tx *gorm.DB) error {
	b.DateCreated = time.Now().UTC()
	b.Status = "CREATE"
	if b.CreatedBy == "" {
		b.CreatedBy = "SYSTEM"
	}
	b.IsActive = true
	return nil
}

// BeforeUpdate sets audit fields on modified BaseAudit records.
func (b *BaseAudit) BeforeUpdate(tx *gorm.DB) error {
	now := time.Now().UTC()
	b.DateUpdated = &now
	if b.SoftDeleted {
		b.Status = "DELETED"
	} else {
		b.Status = "UPDATE"
	}
	return nil
}

// BeforeCreate sets audit fields on new BaseEntity records.
func (b *BaseEntity) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	b.CreatedAt = &now
	if b.CreatedBy == "" {
		b.CreatedBy = "SYSTEM"
	}
	b.IsActive = true
	return nil
}

// BeforeUpdate sets audit fields on modified BaseEntity records.
func (b *BaseEntity) BeforeUpdate(tx *gorm.DB) error {
	now := time.Now().UTC()
	b.UpdatedAt = &now
	return nil
}
