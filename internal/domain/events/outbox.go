// Package events holds the persisted shape of outbound workflow events.
package events

import "github.com/enterprise-bte/bte-engine/internal/domain"

// OutboxEvent is a durable record of an event the engine emitted after a
// commit. A background job (internal/jobs) drains undelivered rows and
// hands them to a Deliverer, satisfying §5's "issue sink calls
// after the enclosing transaction commits" rule without holding the
// transaction open while the sink runs.
type OutboxEvent struct {
	domain.BaseEntity
	EventType   string `json:"event_type"   gorm:"column:event_type;size:64;not null;index"`
	TransferID  string `json:"transfer_id"  gorm:"column:transfer_id;size:64;index"`
	Payload     string `json:"payload"      gorm:"column:payload;type:jsonb"`
	Delivered   bool   `json:"delivered"    gorm:"column:delivered;default:false;index"`
	Attempts    int    `json:"attempts"     gorm:"column:attempts;default:0"`
	LastError   string `json:"last_error,omitempty" gorm:"column:last_error;type:text"`
}

func (OutboxEvent) TableName() string { return "bte.outbox_events" }
