package models

import "time"

// Audit action names written by the permission resolver and services.
const (
	AuditTableDenied       = "table_permission_denied"
	AuditViewDenied        = "view_permission_denied"
	AuditButtonDenied      = "table_button_permission_denied"
	AuditCrossTenantAccess = "cross_tenant_access"
)

// Audit result values. Every event carries one.
const (
	AuditResultSuccess = "success"
	AuditResultDenied  = "denied"
	AuditResultFailed  = "failed"
)

// AuditLog records a security-relevant event. Detail is a free-form
// JSON payload; rows are pruned by the retention job.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"size:64;index" json:"tenant_id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	Action    string    `gorm:"size:64;index;not null" json:"action"`
	Result    string    `gorm:"size:16;index;not null" json:"result"`
	Resource  string    `gorm:"size:64" json:"resource"`
	TargetID  string    `gorm:"size:64" json:"target_id"`
	Detail    string    `gorm:"type:text" json:"detail"`
	IP        string    `gorm:"size:64" json:"ip"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
