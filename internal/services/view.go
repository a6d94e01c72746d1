package services

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// ViewService manages table views and their per-user permissions.
type ViewService struct {
	db   *gorm.DB
	perm *PermissionService
}

func NewViewService(db *gorm.DB, perm *PermissionService) *ViewService {
	return &ViewService{db: db, perm: perm}
}

// ViewOut is a view with its decoded config.
type ViewOut struct {
	ID      string            `json:"id"`
	TableID string            `json:"tableId"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Config  models.ViewConfig `json:"config"`
}

func viewOut(v *models.View) ViewOut {
	return ViewOut{ID: v.ID, TableID: v.TableID, Name: v.Name, Type: v.Type, Config: v.Config()}
}

// List returns the views of a table the user can read, ordered by the
// config order then id. Non-owners need table read access and only see
// views they hold an explicit grant on.
func (s *ViewService) List(tenantID, userID, tableID string) ([]ViewOut, *response.AppError) {
	table, appErr := s.perm.CheckTableRead(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}

	var views []models.View
	if err := s.db.Where("table_id = ?", table.ID).Order("id").Find(&views).Error; err != nil {
		return nil, response.NewServerError("failed to load views")
	}

	out := make([]ViewOut, 0, len(views))
	if s.perm.IsOwner(tenantID, userID) {
		for i := range views {
			out = append(out, viewOut(&views[i]))
		}
	} else {
		for i := range views {
			ok, appErr := s.perm.viewReadable(userID, &views[i])
			if appErr != nil {
				return nil, appErr
			}
			if ok {
				out = append(out, viewOut(&views[i]))
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Config.Order != out[b].Config.Order {
			return out[a].Config.Order < out[b].Config.Order
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// Get loads a view the user can read.
func (s *ViewService) Get(tenantID, userID, tableID, viewID string) (*ViewOut, *response.AppError) {
	view, appErr := s.load(tenantID, tableID, viewID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.perm.CheckViewRead(tenantID, userID, view); appErr != nil {
		return nil, appErr
	}
	out := viewOut(view)
	return &out, nil
}

// Create adds a view with the default config at the end of the table's
// view order. The creator gets a read and write grant on the new view.
func (s *ViewService) Create(tenantID, userID, tableID, name, viewType string) (*ViewOut, *response.AppError) {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return nil, appErr
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("view name is required")
	}
	if viewType == "" {
		viewType = "grid"
	}

	var siblings []models.View
	if err := s.db.Where("table_id = ?", table.ID).Find(&siblings).Error; err != nil {
		return nil, response.NewServerError("failed to load views")
	}
	nextOrder := 0
	for i := range siblings {
		if o := siblings[i].Config().Order; o >= nextOrder {
			nextOrder = o + 1
		}
	}

	view := models.View{
		ID:       models.NewID("viw"),
		TenantID: tenantID,
		TableID:  table.ID,
		Name:     name,
		Type:     viewType,
	}
	cfg := models.DefaultViewConfig()
	cfg.Order = nextOrder
	view.SetConfig(cfg)

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
		return tx.Create(&grant).Error
	})
	if err != nil {
		return nil, response.NewServerError("failed to create view")
	}
	out := viewOut(&view)
	return &out, nil
}

// ViewUpdate patches a view; nil members leave the current value.
type ViewUpdate struct {
	Name   *string            `json:"name"`
	Config *models.ViewConfig `json:"config"`
}

// Update renames a view or replaces its config wholesale. Changing the
// persisted filters or sorts takes the matching button capability.
func (s *ViewService) Update(tenantID, userID, tableID, viewID string, in ViewUpdate) (*ViewOut, *response.AppError) {
	if _, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID); appErr != nil {
		return nil, appErr
	}

	view, appErr := s.load(tenantID, tableID, viewID)
	if appErr != nil {
		return nil, appErr
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, response.NewBadRequest("view name is required")
		}
		view.Name = name
	}
	if in.Config != nil {
		current := view.Config()
		if filtersChanged(current.Filters, in.Config.Filters) {
			if appErr := s.perm.CheckButton(tenantID, userID, tableID, ButtonManageFilters); appErr != nil {
				return nil, appErr
			}
		}
		if sortsChanged(current.Sorts, in.Config.Sorts) {
			if appErr := s.perm.CheckButton(tenantID, userID, tableID, ButtonManageSorts); appErr != nil {
				return nil, appErr
			}
		}
		view.SetConfig(*in.Config)
	}

	if err := s.db.Save(view).Error; err != nil {
		return nil, response.NewServerError("failed to update view")
	}
	out := viewOut(view)
	return &out, nil
}

// Delete removes a view. The last view of a table cannot be deleted.
func (s *ViewService) Delete(tenantID, userID, tableID, viewID string) *response.AppError {
	table, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID)
	if appErr != nil {
		return appErr
	}

	view, appErr := s.load(tenantID, tableID, viewID)
	if appErr != nil {
		return appErr
	}

	var remaining int64
	s.db.Model(&models.View{}).Where("table_id = ?", table.ID).Count(&remaining)
	if remaining <= 1 {
		return response.NewBadRequest("a table must keep at least one view")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("view_id = ?", view.ID).Delete(&models.ViewPermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(view).Error
	})
	if err != nil {
		return response.NewServerError("failed to delete view")
	}
	return nil
}

// ViewGrant is one user's access on a view.
type ViewGrant struct {
	UserID   string `json:"userId"`
	CanRead  bool   `json:"canRead"`
	CanWrite bool   `json:"canWrite"`
}

// Permissions lists the explicit grants on a view.
func (s *ViewService) Permissions(tenantID, userID, tableID, viewID string) ([]models.ViewPermission, *response.AppError) {
	if _, appErr := s.perm.CheckTableRead(tenantID, userID, tableID); appErr != nil {
		return nil, appErr
	}
	view, appErr := s.load(tenantID, tableID, viewID)
	if appErr != nil {
		return nil, appErr
	}

	var perms []models.ViewPermission
	if err := s.db.Where("view_id = ?", view.ID).Find(&perms).Error; err != nil {
		return nil, response.NewServerError("failed to load view permissions")
	}
	return perms, nil
}

// SetPermissions replaces the view's grant list. Write grants carry
// read. Every target must be a member of the tenant. Owners keep a
// floor: their read flag stays on, and an omitted owner is reset to
// full access instead of losing their row.
func (s *ViewService) SetPermissions(tenantID, userID, tableID, viewID string, grants []ViewGrant) *response.AppError {
	if _, appErr := s.perm.CheckTableWrite(tenantID, userID, tableID); appErr != nil {
		return appErr
	}
	view, appErr := s.load(tenantID, tableID, viewID)
	if appErr != nil {
		return appErr
	}

	var memberships []models.Membership
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&memberships).Error; err != nil {
		return response.NewServerError("failed to load memberships")
	}
	owners := make(map[string]bool)
	members := make(map[string]bool, len(memberships))
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

	wanted := make(map[string]ViewGrant, len(grants))
	for _, g := range grants {
		wanted[g.UserID] = g
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for uid, g := range wanted {
			canWrite := g.CanWrite
			canRead := g.CanRead || canWrite || owners[uid]
			if err := upsertViewDefaults(tx, tenantID, view.ID, uid, canRead, canWrite); err != nil {
				return err
			}
		}
		for uid := range owners {
			if _, ok := wanted[uid]; ok {
				continue
			}
			if err := upsertViewDefaults(tx, tenantID, view.ID, uid, true, true); err != nil {
				return err
			}
		}
		keep := make([]string, 0, len(wanted)+len(owners))
		for uid := range wanted {
			keep = append(keep, uid)
		}
		for uid := range owners {
			keep = append(keep, uid)
		}
		return tx.Where("view_id = ? AND user_id NOT IN ?", view.ID, keep).
			Delete(&models.ViewPermission{}).Error
	})
	if err != nil {
		return response.NewServerError("failed to update view permissions")
	}
	return nil
}

// ApplyRoleDefaults resets every member's grant on one view from their
// role's data defaults. Existing rows are overwritten.
func (s *ViewService) ApplyRoleDefaults(tenantID, userID, tableID, viewID string) *response.AppError {
	if appErr := s.requireManagePermissions(tenantID, userID); appErr != nil {
		return appErr
	}
	view, appErr := s.load(tenantID, tableID, viewID)
	if appErr != nil {
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
			if err := upsertViewDefaults(tx, tenantID, view.ID, memberships[i].UserID, d.read, d.write); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return response.NewServerError("failed to apply role defaults")
	}

	s.perm.audit.Record(tenantID, userID, "apply_view_permissions_role_defaults", models.AuditResultSuccess, "view", view.ID, nil)
	return nil
}

// requireManagePermissions admits tenant owners and members whose role
// carries the manage-permissions capability.
func (s *ViewService) requireManagePermissions(tenantID, userID string) *response.AppError {
	m, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if m.RoleKey == models.RoleOwner {
		return nil
	}
	var role models.TenantRole
	err := s.db.Where("tenant_id = ? AND key = ?", tenantID, m.RoleKey).First(&role).Error
	if err != nil || !role.CanManage {
		return response.NewForbidden("no permission to manage view permissions")
	}
	return nil
}

// Empty and nil slices count as equal so an omitted list in a patch is
// not treated as a change.
func filtersChanged(a, b []models.FilterItem) bool {
	if len(a) == 0 && len(b) == 0 {
		return false
	}
	return !reflect.DeepEqual(a, b)
}

func sortsChanged(a, b []models.SortItem) bool {
	if len(a) == 0 && len(b) == 0 {
		return false
	}
	return !reflect.DeepEqual(a, b)
}

func (s *ViewService) load(tenantID, tableID, viewID string) (*models.View, *response.AppError) {
	var view models.View
	err := s.db.Where("id = ? AND table_id = ? AND tenant_id = ?", viewID, tableID, tenantID).First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("view not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load view")
	}
	return &view, nil
}
