package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// ButtonAction enumerates the per-table UI capabilities that can be
// toggled on a permission row.
type ButtonAction int

const (
	ButtonCreateRecord ButtonAction = iota
	ButtonDeleteRecord
	ButtonImportRecords
	ButtonExportRecords
	ButtonManageFilters
	ButtonManageSorts
)

var buttonActionNames = map[string]ButtonAction{
	"createRecord":  ButtonCreateRecord,
	"deleteRecord":  ButtonDeleteRecord,
	"importRecords": ButtonImportRecords,
	"exportRecords": ButtonExportRecords,
	"manageFilters": ButtonManageFilters,
	"manageSorts":   ButtonManageSorts,
}

// ParseButtonAction maps a wire name to its action.
func ParseButtonAction(name string) (ButtonAction, bool) {
	a, ok := buttonActionNames[name]
	return a, ok
}

func (a ButtonAction) String() string {
	switch a {
	case ButtonCreateRecord:
		return "createRecord"
	case ButtonDeleteRecord:
		return "deleteRecord"
	case ButtonImportRecords:
		return "importRecords"
	case ButtonExportRecords:
		return "exportRecords"
	case ButtonManageFilters:
		return "manageFilters"
	case ButtonManageSorts:
		return "manageSorts"
	}
	return "unknown"
}

// allowed reads the row flag for one action.
func buttonAllowed(p *models.TablePermission, a ButtonAction) bool {
	switch a {
	case ButtonCreateRecord:
		return p.CanCreateRecord
	case ButtonDeleteRecord:
		return p.CanDeleteRecord
	case ButtonImportRecords:
		return p.CanImportRecords
	case ButtonExportRecords:
		return p.CanExportRecords
	case ButtonManageFilters:
		return p.CanManageFilters
	case ButtonManageSorts:
		return p.CanManageSorts
	}
	return false
}

// PermissionService resolves a user's access to tables and views inside
// a tenant. Row access is default-deny; owners bypass all row checks.
type PermissionService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewPermissionService(db *gorm.DB, audit *AuditService) *PermissionService {
	return &PermissionService{db: db, audit: audit}
}

// Membership loads the user's membership in the tenant, or a 403.
func (s *PermissionService) Membership(tenantID, userID string) (*models.Membership, *response.AppError) {
	var m models.Membership
	err := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewForbidden("not a member of this tenant")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load membership")
	}
	return &m, nil
}

// IsOwner reports whether the user holds the owner role in the tenant.
func (s *PermissionService) IsOwner(tenantID, userID string) bool {
	m, appErr := s.Membership(tenantID, userID)
	return appErr == nil && m.RoleKey == models.RoleOwner
}

// resolveTable loads the table inside the tenant. When the id exists in
// a different tenant the attempt is audited as cross_tenant_access and
// reported as not found so table ids do not leak across tenants.
func (s *PermissionService) resolveTable(tenantID, userID, tableID string) (*models.Table, *response.AppError) {
	var table models.Table
	err := s.db.Where("id = ? AND tenant_id = ?", tableID, tenantID).First(&table).Error
	if err == nil {
		return &table, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewServerError("failed to load table")
	}

	var elsewhere int64
	s.db.Model(&models.Table{}).Where("id = ?", tableID).Count(&elsewhere)
	if elsewhere > 0 {
		s.audit.Record(tenantID, userID, models.AuditCrossTenantAccess, models.AuditResultDenied, "table", tableID, map[string]any{
			"attempted_tenant": tenantID,
		})
	}
	return nil, response.NewNotFound("table not found")
}

// CheckTableRead resolves read access to a table.
func (s *PermissionService) CheckTableRead(tenantID, userID, tableID string) (*models.Table, *response.AppError) {
	return s.checkTable(tenantID, userID, tableID, false)
}

// CheckTableWrite resolves write access to a table.
func (s *PermissionService) CheckTableWrite(tenantID, userID, tableID string) (*models.Table, *response.AppError) {
	return s.checkTable(tenantID, userID, tableID, true)
}

func (s *PermissionService) checkTable(tenantID, userID, tableID string, write bool) (*models.Table, *response.AppError) {
	m, appErr := s.Membership(tenantID, userID)
	if appErr != nil {
		return nil, appErr
	}

	table, appErr := s.resolveTable(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}

	if m.RoleKey == models.RoleOwner {
		return table, nil
	}

	perm, err := s.tablePermission(tableID, userID)
	if err != nil {
		return nil, response.NewServerError("failed to load table permission")
	}

	want := "read"
	if write {
		want = "write"
	}
	if perm == nil || (write && !perm.CanWrite) || (!write && !perm.CanRead && !perm.CanWrite) {
		s.audit.Record(tenantID, userID, models.AuditTableDenied, models.AuditResultDenied, "table", tableID, map[string]any{
			"wanted": want,
		})
		return nil, response.NewForbidden("no " + want + " permission on this table")
	}
	return table, nil
}

// CheckButton resolves one button capability. Owners always pass.
// Buttons are default-allow on an existing permission row, but the row
// itself must exist: without one there is nothing to grant against.
func (s *PermissionService) CheckButton(tenantID, userID, tableID string, action ButtonAction) *response.AppError {
	m, appErr := s.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if m.RoleKey == models.RoleOwner {
		return nil
	}

	perm, err := s.tablePermission(tableID, userID)
	if err != nil {
		return response.NewServerError("failed to load table permission")
	}
	if perm != nil && buttonAllowed(perm, action) {
		return nil
	}
	reason := "action " + action.String() + " is disabled for this table"
	if perm == nil {
		reason = "no permission row on this table"
	}
	s.audit.Record(tenantID, userID, models.AuditButtonDenied, models.AuditResultDenied, "table", tableID, map[string]any{
		"wanted": action.String(),
	})
	return response.NewForbidden(reason)
}

// ButtonSet is the caller's effective button flags on one table.
type ButtonSet struct {
	CanCreateRecord  bool `json:"canCreateRecord"`
	CanDeleteRecord  bool `json:"canDeleteRecord"`
	CanImportRecords bool `json:"canImportRecords"`
	CanExportRecords bool `json:"canExportRecords"`
	CanManageFilters bool `json:"canManageFilters"`
	CanManageSorts   bool `json:"canManageSorts"`
}

// Allowed reads one flag of the set.
func (b ButtonSet) Allowed(a ButtonAction) bool {
	switch a {
	case ButtonCreateRecord:
		return b.CanCreateRecord
	case ButtonDeleteRecord:
		return b.CanDeleteRecord
	case ButtonImportRecords:
		return b.CanImportRecords
	case ButtonExportRecords:
		return b.CanExportRecords
	case ButtonManageFilters:
		return b.CanManageFilters
	case ButtonManageSorts:
		return b.CanManageSorts
	}
	return false
}

// MyButtons reports the caller's effective button flags on a table
// they can read. Owners hold every button; a member without a
// permission row holds none.
func (s *PermissionService) MyButtons(tenantID, userID, tableID string) (*ButtonSet, *response.AppError) {
	if _, appErr := s.CheckTableRead(tenantID, userID, tableID); appErr != nil {
		return nil, appErr
	}
	if s.IsOwner(tenantID, userID) {
		return &ButtonSet{
			CanCreateRecord:  true,
			CanDeleteRecord:  true,
			CanImportRecords: true,
			CanExportRecords: true,
			CanManageFilters: true,
			CanManageSorts:   true,
		}, nil
	}

	perm, err := s.tablePermission(tableID, userID)
	if err != nil {
		return nil, response.NewServerError("failed to load table permission")
	}
	if perm == nil {
		return &ButtonSet{}, nil
	}
	return &ButtonSet{
		CanCreateRecord:  perm.CanCreateRecord,
		CanDeleteRecord:  perm.CanDeleteRecord,
		CanImportRecords: perm.CanImportRecords,
		CanExportRecords: perm.CanExportRecords,
		CanManageFilters: perm.CanManageFilters,
		CanManageSorts:   perm.CanManageSorts,
	}, nil
}

// CheckViewRead resolves read access to a view. Non-owners need both
// read access on the table and an explicit view permission row.
func (s *PermissionService) CheckViewRead(tenantID, userID string, view *models.View) *response.AppError {
	m, appErr := s.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if m.RoleKey == models.RoleOwner {
		return nil
	}

	ok, appErr := s.viewReadable(userID, view)
	if appErr != nil {
		return appErr
	}
	if ok {
		return nil
	}

	s.audit.Record(tenantID, userID, models.AuditViewDenied, models.AuditResultDenied, "view", view.ID, map[string]any{
		"wanted": "read",
	})
	return response.NewForbidden("no read permission on this view")
}

// viewReadable is the row lookup behind CheckViewRead, without the
// owner bypass and without auditing. List filtering uses it directly
// so a scan over many views does not spam the audit log.
func (s *PermissionService) viewReadable(userID string, view *models.View) (bool, *response.AppError) {
	perm, err := s.tablePermission(view.TableID, userID)
	if err != nil {
		return false, response.NewServerError("failed to load table permission")
	}
	if perm == nil || (!perm.CanRead && !perm.CanWrite) {
		return false, nil
	}

	var vp models.ViewPermission
	err = s.db.Where("view_id = ? AND user_id = ?", view.ID, userID).First(&vp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, response.NewServerError("failed to load view permission")
	}
	return vp.CanRead || vp.CanWrite, nil
}

func (s *PermissionService) tablePermission(tableID, userID string) (*models.TablePermission, error) {
	var perm models.TablePermission
	err := s.db.Where("table_id = ? AND user_id = ?", tableID, userID).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// ReferenceMembers lists the users eligible as member-field values for a
// table: exactly those holding a read or write permission row on it.
func (s *PermissionService) ReferenceMembers(tenantID, tableID string) ([]models.User, *response.AppError) {
	var userIDs []string
	if err := s.db.Model(&models.TablePermission{}).
		Where("tenant_id = ? AND table_id = ? AND (can_read = ? OR can_write = ?)", tenantID, tableID, true, true).
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, response.NewServerError("failed to load table permissions")
	}
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	if err := s.db.Where("id IN ?", userIDs).Order("name").Find(&users).Error; err != nil {
		return nil, response.NewServerError("failed to load users")
	}
	return users, nil
}
