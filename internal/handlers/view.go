package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// ViewHandler exposes views and view permissions.
type ViewHandler struct {
	views *services.ViewService
}

func NewViewHandler(views *services.ViewService) *ViewHandler {
	return &ViewHandler{views: views}
}

// List handles GET /api/tables/:tableId/views
func (h *ViewHandler) List(c *gin.Context) {
	views, appErr := h.views.List(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, views)
}

// Get handles GET /api/tables/:tableId/views/:viewId
func (h *ViewHandler) Get(c *gin.Context) {
	view, appErr := h.views.Get(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("viewId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, view)
}

type createViewRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type"`
}

// Create handles POST /api/tables/:tableId/views
func (h *ViewHandler) Create(c *gin.Context) {
	var req createViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	view, appErr := h.views.Create(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req.Name, req.Type)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, view)
}

// Update handles PATCH /api/tables/:tableId/views/:viewId
func (h *ViewHandler) Update(c *gin.Context) {
	var req services.ViewUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	view, appErr := h.views.Update(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("viewId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, view)
}

// Delete handles DELETE /api/tables/:tableId/views/:viewId
func (h *ViewHandler) Delete(c *gin.Context) {
	appErr := h.views.Delete(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("viewId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Permissions handles GET /api/tables/:tableId/views/:viewId/permissions
func (h *ViewHandler) Permissions(c *gin.Context) {
	perms, appErr := h.views.Permissions(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("viewId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, perms)
}

type setViewPermissionsRequest struct {
	Grants []services.ViewGrant `json:"grants"`
}

// SetPermissions handles PUT /api/tables/:tableId/views/:viewId/permissions
func (h *ViewHandler) SetPermissions(c *gin.Context) {
	var req setViewPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	appErr := h.views.SetPermissions(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("viewId"), req.Grants)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"updated": true})
}

// ApplyRoleDefaults handles POST /api/tables/:tableId/views/:viewId/permissions/apply-role-defaults
func (h *ViewHandler) ApplyRoleDefaults(c *gin.Context) {
	appErr := h.views.ApplyRoleDefaults(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("viewId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"applied": true})
}
