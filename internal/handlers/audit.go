package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/pkg/response"
)

// AuditHandler exposes the audit trail; owners only.
type AuditHandler struct {
	audit *services.AuditService
	perm  *services.PermissionService
}

func NewAuditHandler(audit *services.AuditService, perm *services.PermissionService) *AuditHandler {
	return &AuditHandler{audit: audit, perm: perm}
}

// List handles GET /api/audit-logs
func (h *AuditHandler) List(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	if !h.perm.IsOwner(tenantID, middleware.GetUserID(c)) {
		response.Forbidden(c, "only owners can read audit logs")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	q := services.AuditListQuery{
		TenantID: tenantID,
		UserID:   c.Query("userId"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     page,
		PageSize: pageSize,
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			q.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			q.To = &t
		}
	}

	logs, total, appErr := h.audit.List(q)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	response.Page(c, logs, total, q.Page, q.PageSize)
}
