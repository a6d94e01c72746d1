package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field semantic types. The set is fixed; validation rules live in
// internal/services/fieldtype.go.
const (
	FieldTypeText         = "text"
	FieldTypeNumber       = "number"
	FieldTypeDate         = "date"
	FieldTypeSingleSelect = "singleSelect"
	FieldTypeMultiSelect  = "multiSelect"
	FieldTypeCheckbox     = "checkbox"
	FieldTypeAttachment   = "attachment"
	FieldTypeImage        = "image"
	FieldTypeMember       = "member"
)

// Tenant is the isolation root; every resource except User carries a tenant id.
type Tenant struct {
	ID   string `gorm:"primaryKey;size:64" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// Base groups tables inside a tenant.
type Base struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	TenantID string `gorm:"size:64;index;not null" json:"tenant_id"`
	Name     string `gorm:"size:255;not null" json:"name"`
}

// Table is a tenant-scoped data table.
type Table struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	TenantID string `gorm:"size:64;index;not null" json:"tenant_id"`
	BaseID   string `gorm:"size:64;index;not null" json:"base_id"`
	Name     string `gorm:"size:255;not null" json:"name"`
}

// View holds a per-table presentation config (filters, sorts, layout).
type View struct {
	ID         string `gorm:"primaryKey;size:64" json:"id"`
	TenantID   string `gorm:"size:64;index;not null" json:"tenant_id"`
	TableID    string `gorm:"size:64;index;not null" json:"table_id"`
	Name       string `gorm:"size:255;not null" json:"name"`
	Type       string `gorm:"size:32;not null;default:grid" json:"type"`
	ConfigJSON string `gorm:"type:text" json:"-"`
}

// FieldOption is one entry of a selection field's option list.
// ParentID links hierarchical secondary-select options to their parent.
type FieldOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

// Field describes one typed column of a table.
type Field struct {
	ID          string `gorm:"primaryKey;size:64" json:"id"`
	TenantID    string `gorm:"size:64;index;not null" json:"tenant_id"`
	TableID     string `gorm:"size:64;index;not null" json:"table_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Type        string `gorm:"size:32;not null" json:"type"`
	Width       *int   `json:"width"`
	OptionsJSON string `gorm:"type:text" json:"-"`
	SortOrder   int    `gorm:"not null;default:0" json:"sort_order"`
}

// Record is one row of a table; its cell values live in RecordValue.
type Record struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string    `gorm:"size:64;index;not null" json:"tenant_id"`
	TableID   string    `gorm:"size:64;index;not null" json:"table_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordValue stores one cell as serialized JSON. An absent row means
// null; a stored "null" also reads back as null.
type RecordValue struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	RecordID  string `gorm:"size:64;index:idx_record_field,unique;not null" json:"record_id"`
	FieldID   string `gorm:"size:64;index:idx_record_field,unique;not null" json:"field_id"`
	ValueJSON string `gorm:"type:text" json:"-"`
}

// FilterItem is one persisted or ad-hoc filter predicate.
type FilterItem struct {
	FieldID string `json:"fieldId"`
	Op      string `json:"op,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// SortItem is one sort key; Direction is "asc" (default) or "desc".
type SortItem struct {
	FieldID   string `json:"fieldId"`
	Direction string `json:"direction,omitempty"`
}

// ViewConfig is the persisted shape of View.ConfigJSON.
type ViewConfig struct {
	HiddenFieldIDs []string       `json:"hiddenFieldIds"`
	FieldOrderIDs  []string       `json:"fieldOrderIds"`
	ColumnWidths   map[string]int `json:"columnWidths"`
	Sorts          []SortItem     `json:"sorts"`
	Filters        []FilterItem   `json:"filters"`
	IsEnabled      bool           `json:"isEnabled"`
	Order          int            `json:"order"`
	FilterLogic    string         `json:"filterLogic"`
	FilterPresets  []any          `json:"filterPresets"`
	Components     map[string]any `json:"components"`
}

// DefaultViewConfig returns the config assigned to freshly created views.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		HiddenFieldIDs: []string{},
		FieldOrderIDs:  []string{},
		ColumnWidths:   map[string]int{},
		Sorts:          []SortItem{},
		Filters:        []FilterItem{},
		IsEnabled:      true,
		FilterLogic:    "and",
		FilterPresets:  []any{},
		Components:     map[string]any{},
	}
}

// Config decodes the view's stored config; a broken or empty payload
// falls back to the default config.
func (v *View) Config() ViewConfig {
	cfg := DefaultViewConfig()
	if strings.TrimSpace(v.ConfigJSON) == "" {
		return cfg
	}
	if err := json.Unmarshal([]byte(v.ConfigJSON), &cfg); err != nil {
		return DefaultViewConfig()
	}
	return cfg
}

// SetConfig replaces the stored config wholesale.
func (v *View) SetConfig(cfg ViewConfig) {
	data, _ := json.Marshal(cfg)
	v.ConfigJSON = string(data)
}

// Options decodes the field's option list; nil when none configured.
func (f *Field) Options() []FieldOption {
	if strings.TrimSpace(f.OptionsJSON) == "" {
		return nil
	}
	var opts []FieldOption
	if err := json.Unmarshal([]byte(f.OptionsJSON), &opts); err != nil {
		return nil
	}
	return opts
}

// SetOptions serializes the option list onto the field.
func (f *Field) SetOptions(opts []FieldOption) {
	if opts == nil {
		f.OptionsJSON = ""
		return
	}
	data, _ := json.Marshal(opts)
	f.OptionsJSON = string(data)
}

// Value decodes the stored cell value; null and empty both read back as nil.
func (rv *RecordValue) Value() any {
	if strings.TrimSpace(rv.ValueJSON) == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(rv.ValueJSON), &v); err != nil {
		return nil
	}
	return v
}

// EncodeValue serializes a cell value for storage.
func EncodeValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// TableName overrides
func (Tenant) TableName() string      { return "tenants" }
func (Base) TableName() string        { return "bases" }
func (Table) TableName() string       { return "tables" }
func (View) TableName() string        { return "views" }
func (Field) TableName() string       { return "fields" }
func (Record) TableName() string      { return "records" }
func (RecordValue) TableName() string { return "record_values" }

// NewID builds a prefixed entity id like "rec_9f1c02ab34de".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
