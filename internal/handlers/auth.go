package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// AuthHandler exposes login, refresh and the account surface.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Account  string `json:"account"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login. Either email or account
// identifies the user.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Email == "" && req.Account == "") {
		response.BadRequest(c, "email or account and password are required")
		return
	}
	identifier := req.Email
	if identifier == "" {
		identifier = req.Account
	}
	pair, appErr := h.auth.Login(identifier, req.Password)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refreshToken is required")
		return
	}
	pair, appErr := h.auth.Refresh(req.RefreshToken)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, pair)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "oldPassword and newPassword are required")
		return
	}
	if appErr := h.auth.ChangePassword(middleware.GetUserID(c), req.OldPassword, req.NewPassword); appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"changed": true})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	profile, appErr := h.auth.Me(middleware.GetUserID(c), middleware.GetTenantID(c))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, profile)
}

type createTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateTenant handles POST /api/tenants
func (h *AuthHandler) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	tenant, appErr := h.auth.CreateTenant(middleware.GetUserID(c), req.Name)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, tenant)
}

type switchTenantRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
}

// SwitchTenant handles POST /api/auth/switch-tenant
func (h *AuthHandler) SwitchTenant(c *gin.Context) {
	var req switchTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "tenantId is required")
		return
	}
	pair, appErr := h.auth.SwitchTenant(middleware.GetUserID(c), req.TenantID)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, pair)
}
