package entities

import (
	"time"

	"gorm.io/datatypes"
)

type AuditEventType string

const (
	AuditEventBorrow      AuditEventType = "borrow"
	AuditEventReturn      AuditEventType = "return"
	AuditEventImport      AuditEventType = "import"
	AuditEventCatalog     AuditEventType = "catalog"
	AuditEventCard        AuditEventType = "card"
	AuditEventAuth        AuditEventType = "auth"
	AuditEventOverdueScan AuditEventType = "overdue_scan"
	AuditEventMaintenance AuditEventType = "maintenance"
)

// AuditEventTypes lists every event type for filter menus and validation.
var AuditEventTypes = []AuditEventType{
	AuditEventBorrow,
	AuditEventReturn,
	AuditEventImport,
	AuditEventCatalog,
	AuditEventCard,
	AuditEventAuth,
	AuditEventOverdueScan,
	AuditEventMaintenance,
}

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Actor       string         `gorm:"index;size:64" json:"actor,omitempty"` // admin user id, patron card number, or "system"
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"`      // e.g., "book_borrow", "card_delete"
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	EntityType  string         `gorm:"size:50" json:"entity_type"`  // "book", "card", "loan"
	EntityKey   string         `gorm:"index;size:128" json:"entity_key,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string         `gorm:"size:500" json:"user_agent,omitempty"`
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
