package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/config"
	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/internal/utils"
	"github.com/gridbase/gridbase/pkg/response"
)

// AuthService handles login, token refresh and the account surface.
type AuthService struct {
	db    *gorm.DB
	jwt   config.JWTConfig
	audit *AuditService
	roles *RoleService
}

func NewAuthService(db *gorm.DB, jwt config.JWTConfig, audit *AuditService, roles *RoleService) *AuthService {
	return &AuthService{db: db, jwt: jwt, audit: audit, roles: roles}
}

// TokenPair is the login and refresh response payload.
type TokenPair struct {
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken,omitempty"`
	TenantID      string `json:"tenantId"`
	MustChangePwd bool   `json:"mustChangePwd"`
}

func (s *AuthService) accessTTL() time.Duration {
	return time.Duration(s.jwt.AccessExpireMin) * time.Minute
}

func (s *AuthService) refreshTTL() time.Duration {
	return time.Duration(s.jwt.RefreshExpireDays) * 24 * time.Hour
}

// Login checks the credentials and issues tokens scoped to the user's
// default tenant, falling back to the first membership. The identifier
// matches either the email or the account handle. Accounts created by
// invite must change their password before anything else; the flag
// rides on the response.
func (s *AuthService) Login(identifier, password string) (*TokenPair, *response.AppError) {
	identifier = strings.TrimSpace(identifier)

	var user models.User
	err := s.db.Where("email = ? OR account = ?", strings.ToLower(identifier), identifier).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewUnauthorized("invalid email or password")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load user")
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		s.audit.Record("", user.ID, "login", models.AuditResultFailed, "user", user.ID, nil)
		return nil, response.NewUnauthorized("invalid email or password")
	}

	tenantID, appErr := s.homeTenant(&user)
	if appErr != nil {
		return nil, appErr
	}

	pair, appErr := s.issue(user.ID, tenantID, user.MustChangePwd)
	if appErr != nil {
		return nil, appErr
	}
	s.audit.Record(tenantID, user.ID, "login", models.AuditResultSuccess, "user", user.ID, nil)
	return pair, nil
}

// homeTenant resolves the tenant a fresh session lands in.
func (s *AuthService) homeTenant(user *models.User) (string, *response.AppError) {
	if user.DefaultTenant != "" {
		var count int64
		s.db.Model(&models.Membership{}).
			Where("tenant_id = ? AND user_id = ?", user.DefaultTenant, user.ID).
			Count(&count)
		if count > 0 {
			return user.DefaultTenant, nil
		}
	}
	var membership models.Membership
	err := s.db.Where("user_id = ?", user.ID).Order("created_at").First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", response.NewForbidden("no tenant membership")
	}
	if err != nil {
		return "", response.NewServerError("failed to load membership")
	}
	return membership.TenantID, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, *response.AppError) {
	claims, err := utils.ParseToken(refreshToken)
	if err != nil || claims.TokenType != utils.TokenRefresh {
		return nil, response.NewUnauthorized("invalid refresh token")
	}

	var user models.User
	if err := s.db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		return nil, response.NewUnauthorized("unknown user")
	}

	access, terr := utils.GenerateToken(user.ID, claims.TenantID, utils.TokenAccess, s.accessTTL())
	if terr != nil {
		return nil, response.NewServerError("failed to sign token")
	}
	return &TokenPair{
		AccessToken:   access,
		TenantID:      claims.TenantID,
		MustChangePwd: user.MustChangePwd,
	}, nil
}

// SwitchTenant reissues tokens scoped to another tenant the user
// belongs to and remembers it as their default.
func (s *AuthService) SwitchTenant(userID, tenantID string) (*TokenPair, *response.AppError) {
	var membership models.Membership
	err := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewForbidden("not a member of this tenant")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load membership")
	}

	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, response.NewServerError("failed to load user")
	}
	if user.DefaultTenant != tenantID {
		if err := s.db.Model(&user).Update("default_tenant", tenantID).Error; err != nil {
			return nil, response.NewServerError("failed to save default tenant")
		}
	}
	return s.issue(userID, tenantID, user.MustChangePwd)
}

// CreateTenant provisions a new tenant with the caller as its owner
// and the builtin roles in place. The first tenant a user creates
// becomes their default.
func (s *AuthService) CreateTenant(userID, name string) (*models.Tenant, *response.AppError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("tenant name is required")
	}

	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, response.NewUnauthorized("unknown user")
	}

	tenant := models.Tenant{ID: models.NewID("ten"), Name: name}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		membership := models.Membership{
			ID:       models.NewID("mem"),
			TenantID: tenant.ID,
			UserID:   userID,
			RoleKey:  models.RoleOwner,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		if user.DefaultTenant == "" {
			if err := tx.Model(&user).Update("default_tenant", tenant.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, response.NewServerError("failed to create tenant")
	}
	if err := s.roles.EnsureBuiltinRoles(tenant.ID); err != nil {
		return nil, response.NewServerError("failed to provision roles")
	}

	s.audit.Record(tenant.ID, userID, "tenant_created", models.AuditResultSuccess, "tenant", tenant.ID, nil)
	return &tenant, nil
}

// ChangePassword sets a new password and clears the first-login flag.
func (s *AuthService) ChangePassword(userID, oldPassword, newPassword string) *response.AppError {
	if len(newPassword) < 8 {
		return response.NewBadRequest("password must be at least 8 characters")
	}

	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return response.NewServerError("failed to load user")
	}
	if !utils.CheckPassword(oldPassword, user.PasswordHash) {
		return response.NewUnauthorized("current password is incorrect")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return response.NewServerError("failed to hash password")
	}
	if err := s.db.Model(&user).Updates(map[string]any{
		"password_hash":   hash,
		"must_change_pwd": false,
	}).Error; err != nil {
		return response.NewServerError("failed to change password")
	}
	return nil
}

// Profile is the /me response payload.
type Profile struct {
	UserID        string          `json:"userId"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	MustChangePwd bool            `json:"mustChangePwd"`
	TenantID      string          `json:"tenantId"`
	RoleKey       string          `json:"roleKey"`
	Tenants       []ProfileTenant `json:"tenants"`
}

// ProfileTenant is one tenant the user belongs to.
type ProfileTenant struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	RoleKey  string `json:"roleKey"`
}

// Me returns the user's profile in the active tenant plus the list of
// every tenant they can switch to.
func (s *AuthService) Me(userID, tenantID string) (*Profile, *response.AppError) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, response.NewUnauthorized("unknown user")
	}

	var memberships []models.Membership
	if err := s.db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, response.NewServerError("failed to load memberships")
	}

	tenantIDs := make([]string, len(memberships))
	for i, m := range memberships {
		tenantIDs[i] = m.TenantID
	}
	nameByID := map[string]string{}
	if len(tenantIDs) > 0 {
		var tenants []models.Tenant
		if err := s.db.Where("id IN ?", tenantIDs).Find(&tenants).Error; err != nil {
			return nil, response.NewServerError("failed to load tenants")
		}
		for _, t := range tenants {
			nameByID[t.ID] = t.Name
		}
	}

	profile := Profile{
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
		MustChangePwd: user.MustChangePwd,
		TenantID:      tenantID,
	}
	for _, m := range memberships {
		if m.TenantID == tenantID {
			profile.RoleKey = m.RoleKey
		}
		profile.Tenants = append(profile.Tenants, ProfileTenant{
			TenantID: m.TenantID,
			Name:     nameByID[m.TenantID],
			RoleKey:  m.RoleKey,
		})
	}
	if profile.RoleKey == "" {
		return nil, response.NewForbidden("not a member of this tenant")
	}
	return &profile, nil
}

func (s *AuthService) issue(userID, tenantID string, mustChange bool) (*TokenPair, *response.AppError) {
	access, err := utils.GenerateToken(userID, tenantID, utils.TokenAccess, s.accessTTL())
	if err != nil {
		return nil, response.NewServerError("failed to sign token")
	}
	refresh, err := utils.GenerateToken(userID, tenantID, utils.TokenRefresh, s.refreshTTL())
	if err != nil {
		return nil, response.NewServerError("failed to sign token")
	}
	return &TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		TenantID:      tenantID,
		MustChangePwd: mustChange,
	}, nil
}
