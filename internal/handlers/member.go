package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// MemberHandler exposes tenant membership and roles.
type MemberHandler struct {
	members *services.MemberService
	roles   *services.RoleService
}

func NewMemberHandler(members *services.MemberService, roles *services.RoleService) *MemberHandler {
	return &MemberHandler{members: members, roles: roles}
}

// List handles GET /api/members
func (h *MemberHandler) List(c *gin.Context) {
	out, appErr := h.members.List(middleware.GetTenantID(c), middleware.GetUserID(c))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, out)
}

// Invite handles POST /api/members
func (h *MemberHandler) Invite(c *gin.Context) {
	var req services.InviteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	out, appErr := h.members.Invite(middleware.GetTenantID(c), middleware.GetUserID(c), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, out)
}

type setRoleRequest struct {
	RoleKey string `json:"roleKey" binding:"required"`
}

// SetRole handles PUT /api/members/:userId/role
func (h *MemberHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "roleKey is required")
		return
	}
	appErr := h.members.SetRole(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("userId"), req.RoleKey)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"updated": true})
}

// Remove handles DELETE /api/members/:userId
func (h *MemberHandler) Remove(c *gin.Context) {
	appErr := h.members.Remove(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("userId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"removed": true})
}

// ListRoles handles GET /api/roles
func (h *MemberHandler) ListRoles(c *gin.Context) {
	roles, appErr := h.roles.List(middleware.GetTenantID(c))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, roles)
}

// CreateRole handles POST /api/roles
func (h *MemberHandler) CreateRole(c *gin.Context) {
	var req services.RoleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	role, appErr := h.members.CreateRole(middleware.GetTenantID(c), middleware.GetUserID(c), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, role)
}

// UpdateRole handles PATCH /api/roles/:roleKey
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	var req services.RolePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	role, appErr := h.members.UpdateRole(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("roleKey"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, role)
}

// DeleteRole handles DELETE /api/roles/:roleKey
func (h *MemberHandler) DeleteRole(c *gin.Context) {
	appErr := h.members.DeleteRole(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("roleKey"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
