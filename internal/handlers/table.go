package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// TableHandler exposes bases, tables and table permissions.
type TableHandler struct {
	tables *services.TableService
	perm   *services.PermissionService
}

func NewTableHandler(tables *services.TableService, perm *services.PermissionService) *TableHandler {
	return &TableHandler{tables: tables, perm: perm}
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListBases handles GET /api/bases
func (h *TableHandler) ListBases(c *gin.Context) {
	bases, appErr := h.tables.ListBases(middleware.GetTenantID(c), middleware.GetUserID(c))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, bases)
}

// CreateBase handles POST /api/bases
func (h *TableHandler) CreateBase(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	base, appErr := h.tables.CreateBase(middleware.GetTenantID(c), middleware.GetUserID(c), req.Name)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, base)
}

// ListTables handles GET /api/bases/:baseId/tables
func (h *TableHandler) ListTables(c *gin.Context) {
	tables, appErr := h.tables.ListTables(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("baseId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, tables)
}

// CreateTable handles POST /api/bases/:baseId/tables
func (h *TableHandler) CreateTable(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	table, appErr := h.tables.CreateTable(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("baseId"), req.Name)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, table)
}

// DeleteTable handles DELETE /api/tables/:tableId
func (h *TableHandler) DeleteTable(c *gin.Context) {
	appErr := h.tables.DeleteTable(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Permissions handles GET /api/tables/:tableId/permissions
func (h *TableHandler) Permissions(c *gin.Context) {
	perms, appErr := h.tables.Permissions(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, perms)
}

type replacePermissionsRequest struct {
	Grants []services.TableGrant `json:"grants"`
}

// ReplacePermissions handles PUT /api/tables/:tableId/permissions
func (h *TableHandler) ReplacePermissions(c *gin.Context) {
	var req replacePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	appErr := h.tables.ReplacePermissions(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req.Grants)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"updated": true})
}

// ApplyRoleDefaults handles POST /api/tables/:tableId/permissions/apply-role-defaults
func (h *TableHandler) ApplyRoleDefaults(c *gin.Context) {
	appErr := h.tables.ApplyRoleDefaults(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"applied": true})
}

// SetButtonFlags handles PUT /api/tables/:tableId/permissions/:userId/buttons
func (h *TableHandler) SetButtonFlags(c *gin.Context) {
	var req services.ButtonFlags
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	appErr := h.tables.SetButtonFlags(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("userId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"updated": true})
}

// ReferenceMembers handles GET /api/tables/:tableId/reference-members
func (h *TableHandler) ReferenceMembers(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	if _, appErr := h.perm.CheckTableRead(tenantID, middleware.GetUserID(c), c.Param("tableId")); appErr != nil {
		response.Error(c, appErr)
		return
	}
	users, appErr := h.perm.ReferenceMembers(tenantID, c.Param("tableId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, users)
}

// MyButtons handles GET /api/tables/:tableId/button-permissions/me.
// With ?action=<name> it answers for that single button instead.
func (h *TableHandler) MyButtons(c *gin.Context) {
	buttons, appErr := h.perm.MyButtons(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	if name := c.Query("action"); name != "" {
		action, ok := services.ParseButtonAction(name)
		if !ok {
			response.BadRequest(c, "unknown button action")
			return
		}
		response.Success(c, gin.H{"action": name, "allowed": buttons.Allowed(action)})
		return
	}
	response.Success(c, buttons)
}

// Import handles POST /api/tables/:tableId/import
func (h *TableHandler) Import(c *gin.Context) {
	var req services.ImportBundle
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid import bundle")
		return
	}
	result, appErr := h.tables.Import(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, result)
}
