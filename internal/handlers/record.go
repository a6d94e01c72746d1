package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// RecordHandler exposes record CRUD and the query pipeline.
type RecordHandler struct {
	records *services.RecordService
	perm    *services.PermissionService
	fields  *services.FieldService
}

func NewRecordHandler(records *services.RecordService, perm *services.PermissionService, fields *services.FieldService) *RecordHandler {
	return &RecordHandler{records: records, perm: perm, fields: fields}
}

// Query handles POST /api/tables/:tableId/records/query
func (h *RecordHandler) Query(c *gin.Context) {
	var req services.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid query request")
		return
	}
	result, appErr := h.records.Query(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, result)
}

// List handles GET /api/tables/:tableId/records. Filters and sorts
// arrive as JSON-encoded query parameters.
func (h *RecordHandler) List(c *gin.Context) {
	req := services.QueryRequest{
		ViewID:      c.Query("viewId"),
		FilterLogic: c.Query("filterLogic"),
		Cursor:      c.Query("cursor"),
	}
	if raw := c.Query("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filters); err != nil {
			response.BadRequest(c, "filters must be a JSON array")
			return
		}
	}
	if raw := c.Query("sorts"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Sorts); err != nil {
			response.BadRequest(c, "sorts must be a JSON array")
			return
		}
	}
	if raw := c.Query("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(c, "pageSize must be a number")
			return
		}
		req.PageSize = n
	}

	result, appErr := h.records.Query(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, result)
}

// Get handles GET /api/tables/:tableId/records/:recordId
func (h *RecordHandler) Get(c *gin.Context) {
	rec, appErr := h.records.Get(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("recordId"))
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, rec)
}

type recordValuesRequest struct {
	Values map[string]any `json:"values"`
}

// Create handles POST /api/tables/:tableId/records
func (h *RecordHandler) Create(c *gin.Context) {
	var req recordValuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rec, appErr := h.records.Create(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req.Values)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Created(c, rec)
}

// Update handles PATCH /api/tables/:tableId/records/:recordId
func (h *RecordHandler) Update(c *gin.Context) {
	var req recordValuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	rec, appErr := h.records.Update(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), c.Param("recordId"), req.Values)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, rec)
}

type deleteRecordsRequest struct {
	RecordIDs []string `json:"recordIds" binding:"required"`
}

// Delete handles POST /api/tables/:tableId/records/delete
func (h *RecordHandler) Delete(c *gin.Context) {
	var req deleteRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "recordIds is required")
		return
	}
	appErr := h.records.Delete(middleware.GetTenantID(c), middleware.GetUserID(c), c.Param("tableId"), req.RecordIDs)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"deleted": len(req.RecordIDs)})
}

// Export handles GET /api/tables/:tableId/export
// Returns the table's fields and every record, gated by the export button.
func (h *RecordHandler) Export(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)
	tableID := c.Param("tableId")

	if _, appErr := h.perm.CheckTableRead(tenantID, userID, tableID); appErr != nil {
		response.Error(c, appErr)
		return
	}
	if appErr := h.perm.CheckButton(tenantID, userID, tableID, services.ButtonExportRecords); appErr != nil {
		response.Error(c, appErr)
		return
	}

	fields, appErr := h.fields.List(tenantID, userID, tableID)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	records, appErr := h.records.Load(tableID)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Success(c, gin.H{"fields": fields, "records": records})
}
