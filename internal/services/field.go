package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// FieldService manages table columns.
type FieldService struct {
	db   *gorm.DB
	perm *PermissionService
}

func NewFieldService(db *gorm.DB, perm *PermissionService) *FieldService {
	return &FieldService{db: db, perm: perm}
}

// Map loads the table's fields keyed by id.
func (s *FieldService) Map(tableID string) (map[string]*models.Field, *response.AppError) {
	fields, appErr := s.list(tableID)
	if appErr != nil {
		return nil, appErr
	}
	m := make(map[string]*models.Field, len(fields))
	for i := range fields {
		m[fields[i].ID] = &fields[i]
	}
	return m, nil
}

func (s *FieldService) list(tableID string) ([]models.Field, *response.AppError) {
	var fields []models.Field
	if err := s.db.Where("table_id = ?", tableID).Order("sort_order, id").Find(&fields).Error; err != nil {
		return nil, response.NewServerError("failed to load fields")
	}
	return fields, nil
}

// List returns the fields of a table in display order.
func (s *FieldService) List(tenantID, userID, tableID string) ([]models.Field, *response.AppError) {
	if _, appErr := s.perm.CheckTableRead(tenantID, userID, tableID); appErr != nil {
		return nil, appErr
	}
	return s.list(tableID)
}

// FieldInput is the create/update payload for a field.
type FieldInput struct {
	Name    string               `json:"name"`
	Type    string               `json:"type"`
	Width   *int                 `json:"width"`
	Options []models.FieldOption `json:"options"`
}

// Create adds a field to the table.
func (s *FieldService) Create(tenantID, userID, tableID string, in FieldInput) (*models.Field, *response.AppError) {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, response.NewBadRequest("field name is required")
	}
	if !KnownFieldType(in.Type) {
		return nil, response.NewBadRequest("unknown field type: " + in.Type)
	}
	if (in.Type == models.FieldTypeSingleSelect || in.Type == models.FieldTypeMultiSelect) && len(in.Options) == 0 {
		return nil, response.NewBadRequest("select fields need preset options")
	}

	var dupes int64
	s.db.Model(&models.Field{}).Where("table_id = ? AND name = ?", table.ID, name).Count(&dupes)
	if dupes > 0 {
		return nil, response.NewConflict("a field with this name already exists")
	}

	var maxOrder int
	s.db.Model(&models.Field{}).Where("table_id = ?", table.ID).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder)

	field := models.Field{
		ID:        models.NewID("fld"),
		TenantID:  tenantID,
		TableID:   table.ID,
		Name:      name,
		Type:      in.Type,
		Width:     in.Width,
		SortOrder: maxOrder + 1,
	}
	field.SetOptions(in.Options)

	if err := s.db.Create(&field).Error; err != nil {
		return nil, response.NewServerError("failed to create field")
	}
	return &field, nil
}

// Update renames a field or changes its width and options. The type is
// immutable once created.
func (s *FieldService) Update(tenantID, userID, tableID, fieldID string, in FieldInput) (*models.Field, *response.AppError) {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}
	field, appErr := s.get(table.ID, fieldID)
	if appErr != nil {
		return nil, appErr
	}

	if name := strings.TrimSpace(in.Name); name != "" && name != field.Name {
		var dupes int64
		s.db.Model(&models.Field{}).
			Where("table_id = ? AND name = ? AND id <> ?", table.ID, name, field.ID).
			Count(&dupes)
		if dupes > 0 {
			return nil, response.NewConflict("a field with this name already exists")
		}
		field.Name = name
	}
	if in.Width != nil {
		field.Width = in.Width
	}
	if in.Options != nil {
		field.SetOptions(in.Options)
	}

	if err := s.db.Save(field).Error; err != nil {
		return nil, response.NewServerError("failed to update field")
	}
	return field, nil
}

// Delete removes a field, its stored cell values, and every reference
// to it inside the table's view configs.
func (s *FieldService) Delete(tenantID, userID, tableID, fieldID string) *response.AppError {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return appErr
	}
	field, appErr := s.get(table.ID, fieldID)
	if appErr != nil {
		return appErr
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("field_id = ?", field.ID).Delete(&models.RecordValue{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(field).Error; err != nil {
			return err
		}
		return scrubFieldFromViews(tx, table.ID, field.ID)
	})
	if err != nil {
		return response.NewServerError("failed to delete field")
	}
	return nil
}

func (s *FieldService) get(tableID, fieldID string) (*models.Field, *response.AppError) {
	var field models.Field
	err := s.db.Where("id = ? AND table_id = ?", fieldID, tableID).First(&field).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("field not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load field")
	}
	return &field, nil
}

// scrubFieldFromViews drops a deleted field from every view config of
// the table so stale ids never resurface in filters or sorts.
func scrubFieldFromViews(tx *gorm.DB, tableID, fieldID string) error {
	var views []models.View
	if err := tx.Where("table_id = ?", tableID).Find(&views).Error; err != nil {
		return err
	}
	for i := range views {
		cfg := views[i].Config()

		cfg.HiddenFieldIDs = removeString(cfg.HiddenFieldIDs, fieldID)
		cfg.FieldOrderIDs = removeString(cfg.FieldOrderIDs, fieldID)
		delete(cfg.ColumnWidths, fieldID)

		sorts := cfg.Sorts[:0]
		for _, item := range cfg.Sorts {
			if item.FieldID != fieldID {
				sorts = append(sorts, item)
			}
		}
		cfg.Sorts = sorts

		filters := cfg.Filters[:0]
		for _, item := range cfg.Filters {
			if item.FieldID != fieldID {
				filters = append(filters, item)
			}
		}
		cfg.Filters = filters

		views[i].SetConfig(cfg)
		if err := tx.Model(&views[i]).Update("config_json", views[i].ConfigJSON).Error; err != nil {
			return err
		}
	}
	return nil
}

func removeString(items []string, target string) []string {
	out := items[:0]
	for _, s := range items {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
