package main

import (
	"github.com/gin-gonic/gin"

	"github.com/gridbase/gridbase/internal/config"
	"github.com/gridbase/gridbase/internal/handlers"
	"github.com/gridbase/gridbase/internal/middleware"
	"github.com/gridbase/gridbase/pkg/logger"
)

type handlerSet struct {
	auth      *handlers.AuthHandler
	member    *handlers.MemberHandler
	table     *handlers.TableHandler
	record    *handlers.RecordHandler
	view      *handlers.ViewHandler
	field     *handlers.FieldHandler
	dashboard *handlers.DashboardHandler
	audit     *handlers.AuditHandler
}

func buildRouter(cfg *config.Config, h *handlerSet) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogger())
	r.Use(logger.GinRecovery())
	r.Use(middleware.CORS(cfg.CORS.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(5, 10))
	{
		authGroup.POST("/login", h.auth.Login)
		authGroup.POST("/refresh", h.auth.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.AuthRequired())
	{
		authed.GET("/auth/me", h.auth.Me)
		authed.POST("/auth/change-password", h.auth.ChangePassword)
		authed.POST("/auth/switch-tenant", h.auth.SwitchTenant)
		authed.POST("/tenants", h.auth.CreateTenant)

		authed.GET("/members", h.member.List)
		authed.POST("/members", h.member.Invite)
		authed.PUT("/members/:userId/role", h.member.SetRole)
		authed.DELETE("/members/:userId", h.member.Remove)
		authed.GET("/roles", h.member.ListRoles)
		authed.POST("/roles", h.member.CreateRole)
		authed.PATCH("/roles/:roleKey", h.member.UpdateRole)
		authed.DELETE("/roles/:roleKey", h.member.DeleteRole)

		authed.GET("/bases", h.table.ListBases)
		authed.POST("/bases", h.table.CreateBase)
		authed.GET("/bases/:baseId/tables", h.table.ListTables)
		authed.POST("/bases/:baseId/tables", h.table.CreateTable)

		authed.DELETE("/tables/:tableId", h.table.DeleteTable)
		authed.POST("/tables/:tableId/import", h.table.Import)
		authed.GET("/tables/:tableId/permissions", h.table.Permissions)
		authed.PUT("/tables/:tableId/permissions", h.table.ReplacePermissions)
		authed.POST("/tables/:tableId/permissions/apply-role-defaults", h.table.ApplyRoleDefaults)
		authed.PUT("/tables/:tableId/permissions/:userId/buttons", h.table.SetButtonFlags)
		authed.GET("/tables/:tableId/reference-members", h.table.ReferenceMembers)
		authed.GET("/tables/:tableId/button-permissions/me", h.table.MyButtons)

		authed.GET("/tables/:tableId/fields", h.field.List)
		authed.POST("/tables/:tableId/fields", h.field.Create)
		authed.PATCH("/tables/:tableId/fields/:fieldId", h.field.Update)
		authed.DELETE("/tables/:tableId/fields/:fieldId", h.field.Delete)

		authed.GET("/tables/:tableId/views", h.view.List)
		authed.POST("/tables/:tableId/views", h.view.Create)
		authed.GET("/tables/:tableId/views/:viewId", h.view.Get)
		authed.PATCH("/tables/:tableId/views/:viewId", h.view.Update)
		authed.DELETE("/tables/:tableId/views/:viewId", h.view.Delete)
		authed.GET("/tables/:tableId/views/:viewId/permissions", h.view.Permissions)
		authed.PUT("/tables/:tableId/views/:viewId/permissions", h.view.SetPermissions)
		authed.POST("/tables/:tableId/views/:viewId/permissions/apply-role-defaults", h.view.ApplyRoleDefaults)

		authed.GET("/tables/:tableId/records", h.record.List)
		authed.POST("/tables/:tableId/records/query", h.record.Query)
		authed.POST("/tables/:tableId/records", h.record.Create)
		authed.POST("/tables/:tableId/records/delete", h.record.Delete)
		authed.GET("/tables/:tableId/records/:recordId", h.record.Get)
		authed.PATCH("/tables/:tableId/records/:recordId", h.record.Update)
		authed.GET("/tables/:tableId/export", h.record.Export)

		authed.GET("/dashboards", h.dashboard.List)
		authed.POST("/dashboards", h.dashboard.Create)
		authed.PATCH("/dashboards/:dashboardId", h.dashboard.Rename)
		authed.DELETE("/dashboards/:dashboardId", h.dashboard.Delete)
		authed.GET("/dashboards/:dashboardId/widgets", h.dashboard.Widgets)
		authed.POST("/dashboards/:dashboardId/widgets", h.dashboard.AddWidget)
		authed.PUT("/dashboards/:dashboardId/widgets/:widgetId", h.dashboard.UpdateWidget)
		authed.DELETE("/dashboards/:dashboardId/widgets/:widgetId", h.dashboard.RemoveWidget)
		authed.GET("/dashboards/:dashboardId/widgets/:widgetId/data", h.dashboard.WidgetData)

		authed.GET("/audit-logs", h.audit.List)
	}

	return r
}
