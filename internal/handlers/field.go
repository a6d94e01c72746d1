package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// FieldHandler exposes the table column surface.
type FieldHandler struct {
	fields *services.FieldService
}

func NewFieldHandler(fields *services.FieldService) *FieldHandler {
	return &FieldHandler{fields: fields}
}

// List handles GET /api/tables/:tableId/fields
func (h *FieldHandler) List(c *gin.Context) {
	fields, appErr := h.fields.List(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, fields)
}

// Create handles POST /api/tables/:tableId/fields
func (h *FieldHandler) Create(c *gin.Context) {
	var req services.FieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	field, appErr := h.fields.Create(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, field)
}

// Update handles PATCH /api/tables/:tableId/fields/:fieldId
func (h *FieldHandler) Update(c *gin.Context) {
	var req services.FieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	field, appErr := h.fields.Update(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("fieldId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, field)
}

// Delete handles DELETE /api/tables/:tableId/fields/:fieldId
func (h *FieldHandler) Delete(c *gin.Context) {
	appErr := h.fields.Delete(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("fieldId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
