package main

import (
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/gridbase/gridbase/internal/config"
	"github.com/gridbase/gridbase/internal/handlers"
	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/internal/services"
	"github.com/gridbase/gridbase/internal/utils"
	"github.com/gridbase/gridbase/pkg/logger"
)

// app holds the wired server.
type app struct {
	cfg    *config.Config
	engine *gin.Engine
	cron   *cron.Cron
}

// bootstrap opens the database, seeds it, wires the services and
// handlers and schedules the background jobs.
func bootstrap(cfg *config.Config) (*app, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)
	gin.SetMode(cfg.Server.Mode)

	if err := models.InitDB(cfg.Database); err != nil {
		return nil, err
	}
	db := models.GetDB()

	if err := services.Seed(db, cfg.Seed); err != nil {
		return nil, err
	}

	audit := services.NewAuditService(db)
	perm := services.NewPermissionService(db, audit)
	roles := services.NewRoleService(db)
	types := services.NewFieldTypeService()
	fields := services.NewFieldService(db, perm)
	records := services.NewRecordService(db, perm, types, fields)
	tables := services.NewTableService(db, perm, types)
	views := services.NewViewService(db, perm)
	members := services.NewMemberService(db, perm, roles, audit)
	auth := services.NewAuthService(db, cfg.JWT, audit, roles)
	dashboards := services.NewDashboardService(db, perm, records, fields)

	h := &handlerSet{
		auth:      handlers.NewAuthHandler(auth),
		member:    handlers.NewMemberHandler(members, roles),
		table:     handlers.NewTableHandler(tables, perm),
		record:    handlers.NewRecordHandler(records, perm, fields),
		view:      handlers.NewViewHandler(views),
		field:     handlers.NewFieldHandler(fields),
		dashboard: handlers.NewDashboardHandler(dashboards),
		audit:     handlers.NewAuditHandler(audit, perm),
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Audit.CleanupCron, func() {
		if _, err := audit.Cleanup(cfg.Audit.RetentionDays); err != nil {
			logger.Error().Err(err).Msg("audit cleanup failed")
		}
	}); err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		engine: buildRouter(cfg, h),
		cron:   c,
	}, nil
}

func (a *app) run() error {
	a.cron.Start()
	defer a.cron.Stop()

	addr := a.cfg.Server.Addr()
	logger.Info().Str("addr", addr).Msg("server listening")
	return a.engine.Run(addr)
}
