package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// TableService manages bases, tables and table-level permissions.
type TableService struct {
	db    *gorm.DB
	perm  *PermissionService
	types *FieldTypeService
}

func NewTableService(db *gorm.DB, perm *PermissionService, types *FieldTypeService) *TableService {
	return &TableService{db: db, perm: perm, types: types}
}

// ListBases returns the tenant's bases.
func (s *TableService) ListBases(tenantID, userID string) ([]models.Base, *response.AppError) {
	if _, appErr := s.perm.Membership(tenantID, userID); appErr != nil {
		return nil, appErr
	}
	var bases []models.Base
	if err := s.db.Where("tenant_id = ?", tenantID).Order("name").Find(&bases).Error; err != nil {
		return nil, response.NewServerError("failed to load bases")
	}
	return bases, nil
}

// CreateBase adds a base; owners only.
func (s *TableService) CreateBase(tenantID, userID, name string) (*models.Base, *response.AppError) {
	m, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return nil, appErr
	}
	if m.RoleKey != models.RoleOwner {
		return nil, response.NewForbidden("only owners can create bases")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("base name is required")
	}

	base := models.Base{ID: models.NewID("bse"), TenantID: tenantID, Name: name}
	if err := s.db.Create(&base).Error; err != nil {
		return nil, response.NewServerError("failed to create base")
	}
	return &base, nil
}

// ListTables returns the base's tables the user can read. Owners see
// every table; members see the ones they hold a read or write row on.
func (s *TableService) ListTables(tenantID, userID, baseID string) ([]models.Table, *response.AppError) {
	m, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return nil, appErr
	}

	var tables []models.Table
	if err := s.db.Where("tenant_id = ? AND base_id = ?", tenantID, baseID).
		Order("name").Find(&tables).Error; err != nil {
		return nil, response.NewServerError("failed to load tables")
	}
	if m.RoleKey == models.RoleOwner {
		return tables, nil
	}

	var readable []string
	if err := s.db.Model(&models.TablePermission{}).
		Where("user_id = ? AND tenant_id = ? AND (can_read = ? OR can_write = ?)", userID, tenantID, true, true).
		Pluck("table_id", &readable).Error; err != nil {
		return nil, response.NewServerError("failed to load table permissions")
	}
	allow := make(map[string]bool, len(readable))
	for _, id := range readable {
		allow[id] = true
	}

	out := make([]models.Table, 0, len(tables))
	for _, t := range tables {
		if allow[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateTable adds a table with its initial grid view.
func (s *TableService) CreateTable(tenantID, userID, baseID, name string) (*models.Table, *response.AppError) {
	m, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return nil, appErr
	}
	if m.RoleKey != models.RoleOwner {
		return nil, response.NewForbidden("only owners can create tables")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("table name is required")
	}

	var base models.Base
	err := s.db.Where("id = ? AND tenant_id = ?", baseID, tenantID).First(&base).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("base not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load base")
	}

	table := models.Table{ID: models.NewID("tbl"), TenantID: tenantID, BaseID: base.ID, Name: name}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&table).Error; err != nil {
			return err
		}
		view := models.View{
			ID:       models.NewID("viw"),
			TenantID: tenantID,
			TableID:  table.ID,
			Name:     "表格视图",
			Type:     "grid",
		}
		view.SetConfig(models.DefaultViewConfig())
		return tx.Create(&view).Error
	})
	if err != nil {
		return nil, response.NewServerError("failed to create table")
	}
	return &table, nil
}

// DeleteTable removes a table and everything hanging off it.
func (s *TableService) DeleteTable(tenantID, userID, tableID string) *response.AppError {
	m, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if m.RoleKey != models.RoleOwner {
		return response.NewForbidden("only owners can delete tables")
	}

	var table models.Table
	err := s.db.Where("id = ? AND tenant_id = ?", tableID, tenantID).First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound("table not found")
	}
	if err != nil {
		return response.NewServerError("failed to load table")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var recordIDs []string
		if err := tx.Model(&models.Record{}).Where("table_id = ?", table.ID).
			Pluck("id", &recordIDs).Error; err != nil {
			return err
		}
		if len(recordIDs) > 0 {
			if err := tx.Where("record_id IN ?", recordIDs).Delete(&models.RecordValue{}).Error; err != nil {
				return err
			}
		}
		var viewIDs []string
		if err := tx.Model(&models.View{}).Where("table_id = ?", table.ID).
			Pluck("id", &viewIDs).Error; err != nil {
			return err
		}
		if len(viewIDs) > 0 {
			if err := tx.Where("view_id IN ?", viewIDs).Delete(&models.ViewPermission{}).Error; err != nil {
				return err
			}
		}
		for _, model := range []any{&models.Record{}, &models.View{}, &models.Field{}, &models.TablePermission{}} {
			if err := tx.Where("table_id = ?", table.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&table).Error
	})
	if err != nil {
		return response.NewServerError("failed to delete table")
	}
	return nil
}

// TableGrant is one user's requested row access on a table.
type TableGrant struct {
	UserID   string `json:"userId"`
	CanRead  bool   `json:"canRead"`
	CanWrite bool   `json:"canWrite"`
}

// Permissions lists the table's permission rows.
func (s *TableService) Permissions(tenantID, userID, tableID string) ([]models.TablePermission, *response.AppError) {
	if appErr := s.requireOwnerAndTable(tenantID, userID, tableID); appErr != nil {
		return nil, appErr
	}
	var perms []models.TablePermission
	if err := s.db.Where("table_id = ?", tableID).Find(&perms).Error; err != nil {
		return nil, response.NewServerError("failed to load table permissions")
	}
	return perms, nil
}

// ReplacePermissions swaps the table's grant list wholesale. Every
// target must be a member of the tenant; owners keep full access no
// matter what the new list says, and write always carries read. Button
// flags of surviving users are preserved.
func (s *TableService) ReplacePermissions(tenantID, userID, tableID string, grants []TableGrant) *response.AppError {
	if appErr := s.requireOwnerAndTable(tenantID, userID, tableID); appErr != nil {
		return appErr
	}

	var memberships []models.Membership
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&memberships).Error; err != nil {
		return response.NewServerError("failed to load memberships")
	}
	members := make(map[string]bool, len(memberships))
	owners := make(map[string]bool)
	for _, m := range memberships {
		members[m.UserID] = true
		if m.RoleKey == models.RoleOwner {
			owners[m.UserID] = true
		}
	}
	for _, g := range grants {
		if !members[g.UserID] {
			return response.NewBadRequest("grant targets must be members of this tenant")
		}
	}

	// Last grant wins when a user appears twice.
	wanted := make(map[string]TableGrant, len(grants))
	for _, g := range grants {
		wanted[g.UserID] = g
	}
	for id := range owners {
		wanted[id] = TableGrant{UserID: id, CanRead: true, CanWrite: true}
	}

	var existing []models.TablePermission
	if err := s.db.Where("table_id = ?", tableID).Find(&existing).Error; err != nil {
		return response.NewServerError("failed to load table permissions")
	}
	current := make(map[string]*models.TablePermission, len(existing))
	for i := range existing {
		current[existing[i].UserID] = &existing[i]
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for uid, row := range current {
			if _, keep := wanted[uid]; !keep {
				if err := tx.Delete(row).Error; err != nil {
					return err
				}
			}
		}
		for uid, g := range wanted {
			canWrite := g.CanWrite || owners[uid]
			canRead := g.CanRead || canWrite
			if row, ok := current[uid]; ok {
				row.CanRead = canRead
				row.CanWrite = canWrite
				if err := tx.Save(row).Error; err != nil {
					return err
				}
				continue
			}
			row := models.TablePermission{
				ID:               models.NewID("tpm"),
				TenantID:         tenantID,
				TableID:          tableID,
				UserID:           uid,
				CanRead:          canRead,
				CanWrite:         canWrite,
				CanCreateRecord:  true,
				CanDeleteRecord:  true,
				CanImportRecords: true,
				CanExportRecords: true,
				CanManageFilters: true,
				CanManageSorts:   true,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return response.NewServerError("failed to replace table permissions")
	}
	return nil
}

// ApplyRoleDefaults resets every member's permission row on one table
// from their role's data defaults. Existing rows are overwritten.
func (s *TableService) ApplyRoleDefaults(tenantID, userID, tableID string) *response.AppError {
	if appErr := s.requireOwnerAndTable(tenantID, userID, tableID); appErr != nil {
		return appErr
	}

	var memberships []models.Membership
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&memberships).Error; err != nil {
		return response.NewServerError("failed to load memberships")
	}
	defaults, err := loadRoleDefaults(s.db, tenantID)
	if err != nil {
		return response.NewServerError("failed to load roles")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range memberships {
			d := memberDefaults(&memberships[i], defaults)
			if err := upsertTableDefaults(tx, tenantID, tableID, memberships[i].UserID, d.read, d.write); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return response.NewServerError("failed to apply role defaults")
	}

	s.perm.audit.Record(tenantID, userID, "apply_table_permissions_role_defaults", models.AuditResultSuccess, "table", tableID, nil)
	return nil
}

// ButtonFlags is the toggle set for one user's table buttons.
type ButtonFlags struct {
	CanCreateRecord  *bool `json:"canCreateRecord"`
	CanDeleteRecord  *bool `json:"canDeleteRecord"`
	CanImportRecords *bool `json:"canImportRecords"`
	CanExportRecords *bool `json:"canExportRecords"`
	CanManageFilters *bool `json:"canManageFilters"`
	CanManageSorts   *bool `json:"canManageSorts"`
}

// SetButtonFlags patches the button toggles on one user's permission
// row. The user must already hold a row on the table.
func (s *TableService) SetButtonFlags(tenantID, userID, tableID, targetUserID string, flags ButtonFlags) *response.AppError {
	if appErr := s.requireOwnerAndTable(tenantID, userID, tableID); appErr != nil {
		return appErr
	}

	var row models.TablePermission
	err := s.db.Where("table_id = ? AND user_id = ?", tableID, targetUserID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound("no permission row for this user")
	}
	if err != nil {
		return response.NewServerError("failed to load table permission")
	}

	if flags.CanCreateRecord != nil {
		row.CanCreateRecord = *flags.CanCreateRecord
	}
	if flags.CanDeleteRecord != nil {
		row.CanDeleteRecord = *flags.CanDeleteRecord
	}
	if flags.CanImportRecords != nil {
		row.CanImportRecords = *flags.CanImportRecords
	}
	if flags.CanExportRecords != nil {
		row.CanExportRecords = *flags.CanExportRecords
	}
	if flags.CanManageFilters != nil {
		row.CanManageFilters = *flags.CanManageFilters
	}
	if flags.CanManageSorts != nil {
		row.CanManageSorts = *flags.CanManageSorts
	}

	if err := s.db.Save(&row).Error; err != nil {
		return response.NewServerError("failed to update button flags")
	}
	return nil
}

// requireOwnerAndTable admits tenant owners and members whose role
// carries the manage-permissions capability.
func (s *TableService) requireOwnerAndTable(tenantID, userID, tableID string) *response.AppError {
	m, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if m.RoleKey != models.RoleOwner {
		var role models.TenantRole
		err := s.db.Where("tenant_id = ? AND key = ?", tenantID, m.RoleKey).First(&role).Error
		if err != nil || !role.CanManage {
			return response.NewForbidden("no permission to manage table permissions")
		}
	}
	var count int64
	s.db.Model(&models.Table{}).Where("id = ? AND tenant_id = ?", tableID, tenantID).Count(&count)
	if count == 0 {
		return response.NewNotFound("table not found")
	}
	return nil
}

// ImportField is one column definition of an import bundle.
type ImportField struct {
	Name    string               `json:"name"`
	Type    string               `json:"type"`
	Width   *int                 `json:"width"`
	Options []models.FieldOption `json:"options"`
}

// ImportBundle adds a view, its fields and its records to a table in
// one shot. Record cells are keyed by field name.
type ImportBundle struct {
	ViewName string           `json:"viewName"`
	ViewType string           `json:"viewType"`
	Fields   []ImportField    `json:"fields"`
	Records  []map[string]any `json:"records"`
}

// ImportResult reports what the import created.
type ImportResult struct {
	ViewID      string   `json:"viewId"`
	ViewName    string   `json:"viewName"`
	FieldIDs    []string `json:"fieldIds"`
	RecordCount int      `json:"recordCount"`
}

// Import creates a view bundle on an existing table atomically. The
// importer needs table write plus the importRecords button, and gets a
// read/write grant on the created view.
func (s *TableService) Import(tenantID, userID, tableID string, bundle ImportBundle) (*ImportResult, *response.AppError) {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.perm.CheckButton(tenantID, userID, tableID, ButtonImportRecords); appErr != nil {
		return nil, appErr
	}

	viewName := strings.TrimSpace(bundle.ViewName)
	if viewName == "" {
		return nil, response.NewBadRequest("view name is required")
	}
	if len(bundle.Fields) == 0 {
		return nil, response.NewBadRequest("import needs at least one field")
	}
	seen := make(map[string]bool, len(bundle.Fields))
	for _, f := range bundle.Fields {
		fname := strings.TrimSpace(f.Name)
		if fname == "" {
			return nil, response.NewBadRequest("field names must not be empty")
		}
		if seen[fname] {
			return nil, response.NewBadRequest("duplicate field name: " + fname)
		}
		seen[fname] = true
		if !KnownFieldType(f.Type) {
			return nil, response.NewBadRequest("unknown field type: " + f.Type)
		}
		if (f.Type == models.FieldTypeSingleSelect || f.Type == models.FieldTypeMultiSelect) && len(f.Options) == 0 {
			return nil, response.NewBadRequest("select field " + fname + " needs preset options")
		}
	}

	memberUsers, appErr := s.perm.ReferenceMembers(tenantID, table.ID)
	if appErr != nil {
		return nil, appErr
	}
	memberIDs := make(map[string]bool, len(memberUsers))
	for _, u := range memberUsers {
		memberIDs[u.ID] = true
	}

	viewType := bundle.ViewType
	if viewType == "" {
		viewType = "grid"
	}
	view := models.View{
		ID:       models.NewID("viw"),
		TenantID: tenantID,
		TableID:  table.ID,
		Name:     viewName,
		Type:     viewType,
	}
	view.SetConfig(models.DefaultViewConfig())

	fieldIDs := make([]string, 0, len(bundle.Fields))
	count := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&view).Error; err != nil {
			return err
		}
		grant := models.ViewPermission{
			ID:       models.NewID("vpm"),
			TenantID: tenantID,
			ViewID:   view.ID,
			UserID:   userID,
			CanRead:  true,
			CanWrite: true,
		}
		if err := tx.Create(&grant).Error; err != nil {
			return err
		}

		byName := make(map[string]*models.Field, len(bundle.Fields))
		for i, f := range bundle.Fields {
			field := models.Field{
				ID:        models.NewID("fld"),
				TenantID:  tenantID,
				TableID:   table.ID,
				Name:      strings.TrimSpace(f.Name),
				Type:      f.Type,
				Width:     f.Width,
				SortOrder: i,
			}
			field.SetOptions(f.Options)
			if err := tx.Create(&field).Error; err != nil {
				return err
			}
			byName[field.Name] = &field
			fieldIDs = append(fieldIDs, field.ID)
		}

		for _, row := range bundle.Records {
			record := models.Record{ID: models.NewID("rec"), TenantID: tenantID, TableID: table.ID}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			for name, raw := range row {
				field, ok := byName[name]
				if !ok || raw == nil {
					continue
				}
				value, appErr := s.types.Validate(field, raw, memberIDs)
				if appErr != nil {
					return appErr
				}
				cell := models.RecordValue{
					RecordID:  record.ID,
					FieldID:   field.ID,
					ValueJSON: models.EncodeValue(value),
				}
				if err := tx.Create(&cell).Error; err != nil {
					return err
				}
			}
			count++
		}
		return nil
	})
	if err != nil {
		var appErr *response.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, response.NewServerError("import failed")
	}
	return &ImportResult{ViewID: view.ID, ViewName: view.Name, FieldIDs: fieldIDs, RecordCount: count}, nil
}
