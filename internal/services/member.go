package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/internal/utils"
	"github.com/gridbase/gridbase/pkg/response"
)

// MemberService manages tenant membership.
type MemberService struct {
	db    *gorm.DB
	perm  *PermissionService
	roles *RoleService
	audit *AuditService
}

func NewMemberService(db *gorm.DB, perm *PermissionService, roles *RoleService, audit *AuditService) *MemberService {
	return &MemberService{db: db, perm: perm, roles: roles, audit: audit}
}

// MemberOut is one tenant member with their user profile.
type MemberOut struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Account string `json:"account"`
	Name    string `json:"name"`
	RoleKey string `json:"roleKey"`
}

// List returns the tenant's members ordered by name.
func (s *MemberService) List(tenantID, userID string) ([]MemberOut, *response.AppError) {
	if _, appErr := s.perm.Membership(tenantID, userID); appErr != nil {
		return nil, appErr
	}

	var memberships []models.Membership
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&memberships).Error; err != nil {
		return nil, response.NewServerError("failed to load memberships")
	}
	if len(memberships) == 0 {
		return []MemberOut{}, nil
	}

	ids := make([]string, len(memberships))
	roleByUser := make(map[string]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
		roleByUser[m.UserID] = m.RoleKey
	}

	var users []models.User
	if err := s.db.Where("id IN ?", ids).Order("name").Find(&users).Error; err != nil {
		return nil, response.NewServerError("failed to load users")
	}

	out := make([]MemberOut, 0, len(users))
	for _, u := range users {
		out = append(out, MemberOut{UserID: u.ID, Email: u.Email, Account: u.Account, Name: u.Name, RoleKey: roleByUser[u.ID]})
	}
	return out, nil
}

// InviteInput adds one member to the tenant. Unknown emails get a
// fresh account with the initial password and a forced password change.
type InviteInput struct {
	Email           string `json:"email"`
	Account         string `json:"account"`
	Name            string `json:"name"`
	Mobile          string `json:"mobile"`
	RoleKey         string `json:"roleKey"`
	InitialPassword string `json:"initialPassword"`
}

// Invite adds a user to the tenant. The caller needs the owner role or
// a tenant role carrying the invite capability.
func (s *MemberService) Invite(tenantID, userID string, in InviteInput) (*MemberOut, *response.AppError) {
	caller, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.canManageMembers(tenantID, caller); appErr != nil {
		return nil, appErr
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, response.NewBadRequest("email is required")
	}
	roleKey := in.RoleKey
	if roleKey == "" {
		roleKey = models.RoleMember
	}
	// Every grantable role lives in the role store; "owner" is not
	// stored there, so an invite can never mint an owner.
	role, appErr := s.roles.Get(tenantID, roleKey)
	if appErr != nil {
		return nil, appErr
	}

	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		password := in.InitialPassword
		if password == "" {
			return nil, response.NewBadRequest("initialPassword is required for a new user")
		}
		hash, herr := utils.HashPassword(password)
		if herr != nil {
			return nil, response.NewServerError("failed to hash password")
		}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = email
		}
		account := strings.TrimSpace(in.Account)
		if account == "" {
			account = email
		}
		user = models.User{
			ID:            models.NewID("usr"),
			Email:         email,
			Account:       account,
			Name:          name,
			Mobile:        strings.TrimSpace(in.Mobile),
			PasswordHash:  hash,
			MustChangePwd: true,
			DefaultTenant: tenantID,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, response.NewServerError("failed to create user")
		}
	} else if err != nil {
		return nil, response.NewServerError("failed to load user")
	} else if user.DefaultTenant == "" {
		if err := s.db.Model(&user).Update("default_tenant", tenantID).Error; err != nil {
			return nil, response.NewServerError("failed to update user")
		}
	}

	var existing int64
	s.db.Model(&models.Membership{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, user.ID).Count(&existing)
	if existing > 0 {
		return nil, response.NewConflict("already a member of this tenant")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		m := models.Membership{
			ID:       models.NewID("mem"),
			TenantID: tenantID,
			UserID:   user.ID,
			RoleKey:  roleKey,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return s.roles.ApplyRoleDefaults(tx, tenantID, user.ID, role)
	})
	if err != nil {
		return nil, response.NewServerError("failed to add member")
	}

	s.audit.Record(tenantID, userID, "member_invited", models.AuditResultSuccess, "membership", user.ID, map[string]any{
		"role": roleKey,
	})
	return &MemberOut{UserID: user.ID, Email: user.Email, Account: user.Account, Name: user.Name, RoleKey: roleKey}, nil
}

// SetRole changes a member's role and refreshes their permission rows
// from the role's data defaults. Owners keep the owner role for good;
// their role cannot be changed and cannot be granted here.
func (s *MemberService) SetRole(tenantID, userID, targetUserID, roleKey string) *response.AppError {
	caller, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if caller.RoleKey != models.RoleOwner {
		return response.NewForbidden("only owners can change roles")
	}

	target, appErr := s.perm.Membership(tenantID, targetUserID)
	if appErr != nil {
		return response.NewNotFound("member not found")
	}
	if target.RoleKey == models.RoleOwner {
		return response.NewBadRequest("the owner role cannot be changed")
	}

	role, appErr := s.roles.Get(tenantID, roleKey)
	if appErr != nil {
		return appErr
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(target).Update("role_key", roleKey).Error; err != nil {
			return err
		}
		return s.roles.ApplyRoleDefaults(tx, tenantID, targetUserID, role)
	})
	if err != nil {
		return response.NewServerError("failed to change role")
	}

	s.audit.Record(tenantID, userID, "member_role_changed", models.AuditResultSuccess, "membership", targetUserID, map[string]any{
		"role": roleKey,
	})
	return nil
}

// Remove drops a member and their permission rows in the tenant. The
// last owner cannot be removed.
func (s *MemberService) Remove(tenantID, userID, targetUserID string) *response.AppError {
	caller, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if caller.RoleKey != models.RoleOwner {
		return response.NewForbidden("only owners can remove members")
	}
	if targetUserID == userID {
		return response.NewBadRequest("cannot remove yourself")
	}

	target, appErr := s.perm.Membership(tenantID, targetUserID)
	if appErr != nil {
		return response.NewNotFound("member not found")
	}
	if target.RoleKey == models.RoleOwner {
		if appErr := s.requireAnotherOwner(tenantID, targetUserID); appErr != nil {
			return appErr
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND user_id = ?", tenantID, targetUserID).
			Delete(&models.TablePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND user_id = ?", tenantID, targetUserID).
			Delete(&models.ViewPermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(target).Error
	})
	if err != nil {
		return response.NewServerError("failed to remove member")
	}

	s.audit.Record(tenantID, userID, "member_removed", models.AuditResultSuccess, "membership", targetUserID, nil)
	return nil
}

// RoleInput defines a custom tenant role.
type RoleInput struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	CanManage    bool   `json:"canManage"`
	CanInvite    bool   `json:"canInvite"`
	CanReadData  bool   `json:"canReadData"`
	CanWriteData bool   `json:"canWriteData"`
}

// RolePatch carries partial role updates. Nil fields are left alone.
type RolePatch struct {
	Name         *string `json:"name"`
	CanManage    *bool   `json:"canManage"`
	CanInvite    *bool   `json:"canInvite"`
	CanReadData  *bool   `json:"canReadData"`
	CanWriteData *bool   `json:"canWriteData"`
}

// CreateRole adds a custom role; owners only. The key must be unique
// in the tenant and the reserved keys cannot be taken.
func (s *MemberService) CreateRole(tenantID, userID string, in RoleInput) (*models.TenantRole, *response.AppError) {
	if appErr := s.requireOwner(tenantID, userID); appErr != nil {
		return nil, appErr
	}
	if err := s.roles.EnsureBuiltinRoles(tenantID); err != nil {
		return nil, response.NewServerError("failed to provision roles")
	}

	key := strings.ToLower(strings.TrimSpace(in.Key))
	name := strings.TrimSpace(in.Name)
	if key == "" || name == "" {
		return nil, response.NewBadRequest("role key and name are required")
	}
	if key == models.RoleOwner || key == models.RoleMember {
		return nil, response.NewBadRequest("role key is reserved")
	}
	var count int64
	s.db.Model(&models.TenantRole{}).Where("tenant_id = ? AND key = ?", tenantID, key).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("role key already exists")
	}

	role := models.TenantRole{
		ID:           models.NewID("rol"),
		TenantID:     tenantID,
		Key:          key,
		Name:         name,
		CanManage:    in.CanManage,
		CanInvite:    in.CanInvite,
		CanReadData:  in.CanReadData || in.CanWriteData,
		CanWriteData: in.CanWriteData,
	}
	if err := s.db.Create(&role).Error; err != nil {
		return nil, response.NewServerError("failed to create role")
	}

	s.audit.Record(tenantID, userID, "role_created", models.AuditResultSuccess, "role", key, nil)
	return &role, nil
}

// UpdateRole patches a custom role; owners only. The reserved keys are
// immutable and granting write access always carries read access.
func (s *MemberService) UpdateRole(tenantID, userID, key string, patch RolePatch) (*models.TenantRole, *response.AppError) {
	if appErr := s.requireOwner(tenantID, userID); appErr != nil {
		return nil, appErr
	}
	if key == models.RoleOwner || key == models.RoleMember {
		return nil, response.NewBadRequest("builtin role keys cannot be changed")
	}
	role, appErr := s.roles.Get(tenantID, key)
	if appErr != nil {
		return nil, appErr
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, response.NewBadRequest("role name cannot be empty")
		}
		role.Name = name
	}
	if patch.CanManage != nil {
		role.CanManage = *patch.CanManage
	}
	if patch.CanInvite != nil {
		role.CanInvite = *patch.CanInvite
	}
	if patch.CanReadData != nil {
		role.CanReadData = *patch.CanReadData || role.CanWriteData
	}
	if patch.CanWriteData != nil {
		role.CanWriteData = *patch.CanWriteData
		if role.CanWriteData {
			role.CanReadData = true
		}
	}

	if err := s.db.Save(role).Error; err != nil {
		return nil, response.NewServerError("failed to update role")
	}

	s.audit.Record(tenantID, userID, "role_updated", models.AuditResultSuccess, "role", key, nil)
	return role, nil
}

// DeleteRole removes a custom role; owners only. A role still assigned
// to any member cannot be deleted.
func (s *MemberService) DeleteRole(tenantID, userID, key string) *response.AppError {
	if appErr := s.requireOwner(tenantID, userID); appErr != nil {
		return appErr
	}
	if key == models.RoleOwner || key == models.RoleMember {
		return response.NewBadRequest("builtin roles cannot be deleted")
	}
	role, appErr := s.roles.Get(tenantID, key)
	if appErr != nil {
		return appErr
	}

	var inUse int64
	s.db.Model(&models.Membership{}).
		Where("tenant_id = ? AND role_key = ?", tenantID, key).
		Count(&inUse)
	if inUse > 0 {
		return response.NewBadRequest("role is still assigned to members")
	}

	if err := s.db.Delete(role).Error; err != nil {
		return response.NewServerError("failed to delete role")
	}

	s.audit.Record(tenantID, userID, "role_deleted", models.AuditResultSuccess, "role", key, nil)
	return nil
}

func (s *MemberService) requireOwner(tenantID, userID string) *response.AppError {
	caller, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if caller.RoleKey != models.RoleOwner {
		return response.NewForbidden("only owners can manage roles")
	}
	return nil
}

// requireAnotherOwner refuses operations that would leave the tenant
// without any owner.
func (s *MemberService) requireAnotherOwner(tenantID, excludeUserID string) *response.AppError {
	var others int64
	s.db.Model(&models.Membership{}).
		Where("tenant_id = ? AND role_key = ? AND user_id <> ?", tenantID, models.RoleOwner, excludeUserID).
		Count(&others)
	if others == 0 {
		return response.NewBadRequest("a tenant must keep at least one owner")
	}
	return nil
}

// canManageMembers allows owners and roles with the invite capability.
func (s *MemberService) canManageMembers(tenantID string, caller *models.Membership) *response.AppError {
	if caller.RoleKey == models.RoleOwner {
		return nil
	}
	if caller.RoleKey != models.RoleMember {
		role, appErr := s.roles.Get(tenantID, caller.RoleKey)
		if appErr == nil && role.CanInvite {
			return nil
		}
	}
	return response.NewForbidden("no permission to manage members")
}
