package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// DashboardHandler exposes dashboards, widgets and widget data.
type DashboardHandler struct {
	dashboards *services.DashboardService
}

func NewDashboardHandler(dashboards *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// List handles GET /api/dashboards
func (h *DashboardHandler) List(c *gin.Context) {
	out, appErr := h.dashboards.List(middleware.GetTenantID(c), middleware.GetUserID(c))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, out)
}

type dashboardNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /api/dashboards
func (h *DashboardHandler) Create(c *gin.Context) {
	var req dashboardNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	d, appErr := h.dashboards.Create(middleware.GetTenantID(c), middleware.GetUserID(c), req.Name)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, d)
}

// Rename handles PATCH /api/dashboards/:dashboardId
func (h *DashboardHandler) Rename(c *gin.Context) {
	var req dashboardNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name is required")
		return
	}
	d, appErr := h.dashboards.Rename(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("dashboardId"), req.Name)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, d)
}

// Delete handles DELETE /api/dashboards/:dashboardId
func (h *DashboardHandler) Delete(c *gin.Context) {
	appErr := h.dashboards.Delete(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("dashboardId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Widgets handles GET /api/dashboards/:dashboardId/widgets
func (h *DashboardHandler) Widgets(c *gin.Context) {
	widgets, appErr := h.dashboards.Widgets(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("dashboardId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, widgets)
}

// AddWidget handles POST /api/dashboards/:dashboardId/widgets
func (h *DashboardHandler) AddWidget(c *gin.Context) {
	var req services.WidgetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	w, appErr := h.dashboards.AddWidget(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("dashboardId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, w)
}

// UpdateWidget handles PUT /api/dashboards/:dashboardId/widgets/:widgetId
func (h *DashboardHandler) UpdateWidget(c *gin.Context) {
	var req services.WidgetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	w, appErr := h.dashboards.UpdateWidget(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("dashboardId"), c.Param("widgetId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, w)
}

// RemoveWidget handles DELETE /api/dashboards/:dashboardId/widgets/:widgetId
func (h *DashboardHandler) RemoveWidget(c *gin.Context) {
	appErr := h.dashboards.RemoveWidget(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("dashboardId"), c.Param("widgetId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// WidgetData handles GET /api/dashboards/:dashboardId/widgets/:widgetId/data.
// Query params aggregation, groupFieldId and limit override the stored
// widget query for this request.
func (h *DashboardHandler) WidgetData(c *gin.Context) {
	var opts services.WidgetDataOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		response.BadRequest(c, "invalid widget data options")
		return
	}
	data, appErr := h.dashboards.WidgetData(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("dashboardId"), c.Param("widgetId"), opts)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, data)
}
