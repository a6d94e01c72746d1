package models

import "time"

// TablePermission is the per-user grant on one table. Row access is
// default-deny: no row means neither read nor write. Button flags are
// default-allow, so a fresh row leaves all buttons enabled.
type TablePermission struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	TenantID string `gorm:"size:64;index;not null" json:"tenant_id"`
	TableID  string `gorm:"size:64;index:idx_table_user,unique;not null" json:"table_id"`
	UserID   string `gorm:"size:64;index:idx_table_user,unique;not null" json:"user_id"`

	CanRead  bool `gorm:"not null;default:false" json:"can_read"`
	CanWrite bool `gorm:"not null;default:false" json:"can_write"`

	CanCreateRecord  bool `gorm:"not null;default:true" json:"can_create_record"`
	CanDeleteRecord  bool `gorm:"not null;default:true" json:"can_delete_record"`
	CanImportRecords bool `gorm:"not null;default:true" json:"can_import_records"`
	CanExportRecords bool `gorm:"not null;default:true" json:"can_export_records"`
	CanManageFilters bool `gorm:"not null;default:true" json:"can_manage_filters"`
	CanManageSorts   bool `gorm:"not null;default:true" json:"can_manage_sorts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ViewPermission is the per-user grant on one view of a table.
type ViewPermission struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	TenantID string `gorm:"size:64;index;not null" json:"tenant_id"`
	ViewID   string `gorm:"size:64;index:idx_view_user,unique;not null" json:"view_id"`
	UserID   string `gorm:"size:64;index:idx_view_user,unique;not null" json:"user_id"`

	CanRead  bool `gorm:"not null;default:false" json:"can_read"`
	CanWrite bool `gorm:"not null;default:false" json:"can_write"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TablePermission) TableName() string { return "table_permissions" }
func (ViewPermission) TableName() string  { return "view_permissions" }
