package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// builtinRole is one compile-time entry of the default role set.
type builtinRole struct {
	Key          string
	Name         string
	CanManage    bool
	CanInvite    bool
	CanReadData  bool
	CanWriteData bool
}

// builtinRoles is the fixed role set provisioned into every tenant.
// "member" doubles as the fallback role for plain memberships, so its
// defaults are what a freshly invited user gets.
var builtinRoles = []builtinRole{
	{Key: "member", Name: "成员", CanManage: false, CanInvite: false, CanReadData: true, CanWriteData: false},
	{Key: "admin", Name: "管理员", CanManage: true, CanInvite: true, CanReadData: true, CanWriteData: true},
	{Key: "project_manager", Name: "项目经理", CanManage: true, CanInvite: true, CanReadData: true, CanWriteData: true},
	{Key: "developer", Name: "开发人员", CanManage: false, CanInvite: false, CanReadData: true, CanWriteData: true},
	{Key: "implementer", Name: "实施人员", CanManage: false, CanInvite: false, CanReadData: true, CanWriteData: true},
}

// RoleService manages tenant roles and their permission defaults.
type RoleService struct {
	db *gorm.DB
}

func NewRoleService(db *gorm.DB) *RoleService {
	return &RoleService{db: db}
}

// EnsureBuiltinRoles provisions the builtin role set into a tenant.
// Safe to call repeatedly; existing rows are left untouched.
func (s *RoleService) EnsureBuiltinRoles(tenantID string) error {
	for _, br := range builtinRoles {
		var existing models.TenantRole
		err := s.db.Where("tenant_id = ? AND key = ?", tenantID, br.Key).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		role := models.TenantRole{
			ID:           models.NewID("rol"),
			TenantID:     tenantID,
			Key:          br.Key,
			Name:         br.Name,
			Builtin:      true,
			CanManage:    br.CanManage,
			CanInvite:    br.CanInvite,
			CanReadData:  br.CanReadData,
			CanWriteData: br.CanWriteData,
		}
		if err := s.db.Create(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

// List returns all roles of a tenant, builtin first then by name.
func (s *RoleService) List(tenantID string) ([]models.TenantRole, *response.AppError) {
	var roles []models.TenantRole
	if err := s.db.Where("tenant_id = ?", tenantID).
		Order("builtin DESC, name").Find(&roles).Error; err != nil {
		return nil, response.NewServerError("failed to list roles")
	}
	return roles, nil
}

// Get loads one role by key inside the tenant.
func (s *RoleService) Get(tenantID, key string) (*models.TenantRole, *response.AppError) {
	var role models.TenantRole
	err := s.db.Where("tenant_id = ? AND key = ?", tenantID, key).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("role not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load role")
	}
	return &role, nil
}

// ApplyRoleDefaults creates or refreshes the user's permission rows on
// every table and every view of the tenant from the role's data
// defaults. Write access always carries read access.
func (s *RoleService) ApplyRoleDefaults(tx *gorm.DB, tenantID, userID string, role *models.TenantRole) error {
	canRead := role.CanReadData || role.CanWriteData
	canWrite := role.CanWriteData

	var tables []models.Table
	if err := tx.Where("tenant_id = ?", tenantID).Find(&tables).Error; err != nil {
		return err
	}

	for _, table := range tables {
		if err := upsertTableDefaults(tx, tenantID, table.ID, userID, canRead, canWrite); err != nil {
			return err
		}
	}

	var views []models.View
	if err := tx.Where("tenant_id = ?", tenantID).Find(&views).Error; err != nil {
		return err
	}
	for _, view := range views {
		if err := upsertViewDefaults(tx, tenantID, view.ID, userID, canRead, canWrite); err != nil {
			return err
		}
	}
	return nil
}

// roleDefaults is the effective data access a role key grants.
type roleDefaults struct {
	read  bool
	write bool
}

// loadRoleDefaults maps every stored role key of the tenant to its data
// defaults. Write access carries read access.
func loadRoleDefaults(db *gorm.DB, tenantID string) (map[string]roleDefaults, error) {
	var roles []models.TenantRole
	if err := db.Where("tenant_id = ?", tenantID).Find(&roles).Error; err != nil {
		return nil, err
	}
	out := make(map[string]roleDefaults, len(roles))
	for _, r := range roles {
		out[r.Key] = roleDefaults{read: r.CanReadData || r.CanWriteData, write: r.CanWriteData}
	}
	return out, nil
}

// memberDefaults resolves one membership against the defaults map.
// Owners get full access; a role key missing from the store falls back
// to read-only.
func memberDefaults(m *models.Membership, defaults map[string]roleDefaults) roleDefaults {
	if m.RoleKey == models.RoleOwner {
		return roleDefaults{read: true, write: true}
	}
	if d, ok := defaults[m.RoleKey]; ok {
		if d.write {
			d.read = true
		}
		return d
	}
	return roleDefaults{read: true}
}

func upsertTableDefaults(tx *gorm.DB, tenantID, tableID, userID string, canRead, canWrite bool) error {
	var perm models.TablePermission
	err := tx.Where("table_id = ? AND user_id = ?", tableID, userID).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		perm = models.TablePermission{
			ID:               models.NewID("tpm"),
			TenantID:         tenantID,
			TableID:          tableID,
			UserID:           userID,
			CanRead:          canRead,
			CanWrite:         canWrite,
			CanCreateRecord:  true,
			CanDeleteRecord:  true,
			CanImportRecords: true,
			CanExportRecords: true,
			CanManageFilters: true,
			CanManageSorts:   true,
		}
		return tx.Create(&perm).Error
	}
	if err != nil {
		return err
	}
	perm.CanRead = canRead
	perm.CanWrite = canWrite
	return tx.Save(&perm).Error
}

func upsertViewDefaults(tx *gorm.DB, tenantID, viewID, userID string, canRead, canWrite bool) error {
	var perm models.ViewPermission
	err := tx.Where("view_id = ? AND user_id = ?", viewID, userID).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		perm = models.ViewPermission{
			ID:       models.NewID("vpm"),
			TenantID: tenantID,
			ViewID:   viewID,
			UserID:   userID,
			CanRead:  canRead,
			CanWrite: canWrite,
		}
		return tx.Create(&perm).Error
	}
	if err != nil {
		return err
	}
	perm.CanRead = canRead
	perm.CanWrite = canWrite
	return tx.Save(&perm).Error
}
