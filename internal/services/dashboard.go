package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// DashboardService manages dashboards and renders widget data.
type DashboardService struct {
	db      *gorm.DB
	perm    *PermissionService
	records *RecordService
	fields  *FieldService
}

func NewDashboardService(db *gorm.DB, perm *PermissionService, records *RecordService, fields *FieldService) *DashboardService {
	return &DashboardService{db: db, perm: perm, records: records, fields: fields}
}

// requireDashboardAccess gates the dashboard area: tenant owners and
// members holding the admin role key.
func (s *DashboardService) requireDashboardAccess(tenantID, userID string) *response.AppError {
	m, appErr := s.perm.Membership(tenantID, userID)
	if appErr != nil {
		return appErr
	}
	if m.RoleKey == models.RoleOwner || m.RoleKey == "admin" {
		return nil
	}
	return response.NewForbidden("no access to dashboards")
}

// List returns the tenant's dashboards.
func (s *DashboardService) List(tenantID, userID string) ([]models.Dashboard, *response.AppError) {
	if appErr := s.requireDashboardAccess(tenantID, userID); appErr != nil {
		return nil, appErr
	}
	var dashboards []models.Dashboard
	if err := s.db.Where("tenant_id = ?", tenantID).Order("created_at").Find(&dashboards).Error; err != nil {
		return nil, response.NewServerError("failed to load dashboards")
	}
	return dashboards, nil
}

// Create adds a dashboard owned by the caller.
func (s *DashboardService) Create(tenantID, userID, name string) (*models.Dashboard, *response.AppError) {
	if appErr := s.requireDashboardAccess(tenantID, userID); appErr != nil {
		return nil, appErr
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("dashboard name is required")
	}

	d := models.Dashboard{
		ID:       models.NewID("dsh"),
		TenantID: tenantID,
		Name:     name,
		OwnerID:  userID,
	}
	if err := s.db.Create(&d).Error; err != nil {
		return nil, response.NewServerError("failed to create dashboard")
	}
	return &d, nil
}

// Rename changes a dashboard's name.
func (s *DashboardService) Rename(tenantID, userID, dashboardID, name string) (*models.Dashboard, *response.AppError) {
	d, appErr := s.load(tenantID, userID, dashboardID)
	if appErr != nil {
		return nil, appErr
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("dashboard name is required")
	}
	if err := s.db.Model(d).Update("name", name).Error; err != nil {
		return nil, response.NewServerError("failed to rename dashboard")
	}
	d.Name = name
	return d, nil
}

// Delete removes a dashboard and its widgets.
func (s *DashboardService) Delete(tenantID, userID, dashboardID string) *response.AppError {
	d, appErr := s.load(tenantID, userID, dashboardID)
	if appErr != nil {
		return appErr
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dashboard_id = ?", d.ID).Delete(&models.DashboardWidget{}).Error; err != nil {
			return err
		}
		return tx.Delete(d).Error
	})
	if err != nil {
		return response.NewServerError("failed to delete dashboard")
	}
	return nil
}

// WidgetInput creates or updates a widget.
type WidgetInput struct {
	Title  string              `json:"title"`
	Kind   string              `json:"kind"`
	Layout models.WidgetLayout `json:"layout"`
	Query  models.WidgetQuery  `json:"query"`
}

var widgetKinds = map[string]bool{
	models.WidgetMetric: true,
	models.WidgetBar:    true,
	models.WidgetPie:    true,
	models.WidgetLine:   true,
	models.WidgetTable:  true,
}

// Widgets lists a dashboard's widgets in layout order.
func (s *DashboardService) Widgets(tenantID, userID, dashboardID string) ([]models.DashboardWidget, *response.AppError) {
	d, appErr := s.load(tenantID, userID, dashboardID)
	if appErr != nil {
		return nil, appErr
	}
	var widgets []models.DashboardWidget
	if err := s.db.Where("dashboard_id = ?", d.ID).
		Order("sort_order, id").Find(&widgets).Error; err != nil {
		return nil, response.NewServerError("failed to load widgets")
	}
	return widgets, nil
}

// AddWidget appends a widget to a dashboard.
func (s *DashboardService) AddWidget(tenantID, userID, dashboardID string, in WidgetInput) (*models.DashboardWidget, *response.AppError) {
	d, appErr := s.load(tenantID, userID, dashboardID)
	if appErr != nil {
		return nil, appErr
	}
	if !widgetKinds[in.Kind] {
		return nil, response.NewBadRequest("unknown widget kind: " + in.Kind)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, response.NewBadRequest("widget title is required")
	}

	w := models.DashboardWidget{
		ID:          models.NewID("wgt"),
		TenantID:    tenantID,
		DashboardID: d.ID,
		Title:       strings.TrimSpace(in.Title),
		Kind:        in.Kind,
	}
	w.SetLayout(in.Layout)
	w.SetQuery(in.Query)

	if err := s.db.Create(&w).Error; err != nil {
		return nil, response.NewServerError("failed to create widget")
	}
	return &w, nil
}

// UpdateWidget replaces a widget's title, layout and query.
func (s *DashboardService) UpdateWidget(tenantID, userID, dashboardID, widgetID string, in WidgetInput) (*models.DashboardWidget, *response.AppError) {
	d, appErr := s.load(tenantID, userID, dashboardID)
	if appErr != nil {
		return nil, appErr
	}

	var w models.DashboardWidget
	err := s.db.Where("id = ? AND dashboard_id = ?", widgetID, d.ID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("widget not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load widget")
	}

	if in.Kind != "" {
		if !widgetKinds[in.Kind] {
			return nil, response.NewBadRequest("unknown widget kind: " + in.Kind)
		}
		w.Kind = in.Kind
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		w.Title = title
	}
	w.SetLayout(in.Layout)
	w.SetQuery(in.Query)

	if err := s.db.Save(&w).Error; err != nil {
		return nil, response.NewServerError("failed to update widget")
	}
	return &w, nil
}

// RemoveWidget deletes one widget.
func (s *DashboardService) RemoveWidget(tenantID, userID, dashboardID, widgetID string) *response.AppError {
	d, appErr := s.load(tenantID, userID, dashboardID)
	if appErr != nil {
		return appErr
	}
	res := s.db.Where("id = ? AND dashboard_id = ?", widgetID, d.ID).Delete(&models.DashboardWidget{})
	if res.Error != nil {
		return response.NewServerError("failed to delete widget")
	}
	if res.RowsAffected == 0 {
		return response.NewNotFound("widget not found")
	}
	return nil
}

// WidgetDataOptions are per-request overrides on top of the widget's
// stored query. Zero values leave the stored query untouched.
type WidgetDataOptions struct {
	Metric       string `form:"aggregation" json:"aggregation"`
	GroupFieldID string `form:"groupFieldId" json:"groupFieldId"`
	Limit        int    `form:"limit" json:"limit"`
}

// WidgetData resolves one widget's aggregation over its table. The
// caller needs read access on the bound table.
func (s *DashboardService) WidgetData(tenantID, userID, dashboardID, widgetID string, opts WidgetDataOptions) (any, *response.AppError) {
	d, appErr := s.load(tenantID, userID, dashboardID)
	if appErr != nil {
		return nil, appErr
	}

	var w models.DashboardWidget
	err := s.db.Where("id = ? AND dashboard_id = ?", widgetID, d.ID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("widget not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load widget")
	}

	q := w.Query()
	if opts.Metric != "" {
		q.Metric = opts.Metric
	}
	if opts.GroupFieldID != "" {
		q.GroupFieldID = opts.GroupFieldID
	}
	if opts.Limit > 0 {
		q.Limit = opts.Limit
	}
	if q.TableID == "" {
		return widgetError(w.Kind, "widget has no table bound"), nil
	}
	table, appErr := s.perm.CheckTableRead(tenantID, userID, q.TableID)
	if appErr != nil {
		return nil, appErr
	}

	fieldMap, appErr := s.fields.Map(table.ID)
	if appErr != nil {
		return nil, appErr
	}
	records, appErr := s.records.Load(table.ID)
	if appErr != nil {
		return nil, appErr
	}
	records = ApplyFilters(records, q.Filters, "and", fieldMap)

	switch w.Kind {
	case models.WidgetMetric:
		if (q.Metric == MetricSum || q.Metric == MetricAvg) && q.FieldID == "" {
			return widgetError(w.Kind, "metric field is not selected"), nil
		}
		value, appErr := AggregateMetric(records, q.Metric, q.FieldID)
		if appErr != nil {
			return nil, appErr
		}
		return map[string]any{"type": w.Kind, "data": map[string]any{"value": value}}, nil
	case models.WidgetBar, models.WidgetPie, models.WidgetLine:
		if q.GroupFieldID == "" {
			return widgetError(w.Kind, "group field is not selected"), nil
		}
		buckets, appErr := AggregateGroups(records, q.GroupFieldID, q.Metric, q.FieldID)
		if appErr != nil {
			return nil, appErr
		}
		return map[string]any{"type": w.Kind, "data": GroupPoints(buckets, w.Kind)}, nil
	case models.WidgetTable:
		window := TableWindow(records, q.Limit)
		if len(q.FieldIDs) > 0 {
			keep := make(map[string]bool, len(q.FieldIDs))
			for _, id := range q.FieldIDs {
				keep[id] = true
			}
			for i := range window {
				trimmed := make(map[string]any, len(keep))
				for id, v := range window[i].Values {
					if keep[id] {
						trimmed[id] = v
					}
				}
				window[i].Values = trimmed
			}
		}
		return map[string]any{"type": w.Kind, "data": map[string]any{"records": window}}, nil
	default:
		return nil, response.NewBadRequest("unknown widget kind: " + w.Kind)
	}
}

// widgetError is a renderable misconfiguration payload, not a request
// failure. The client shows it inside the widget frame.
func widgetError(kind, msg string) map[string]any {
	return map[string]any{"type": kind, "data": nil, "error": msg}
}

func (s *DashboardService) load(tenantID, userID, dashboardID string) (*models.Dashboard, *response.AppError) {
	if appErr := s.requireDashboardAccess(tenantID, userID); appErr != nil {
		return nil, appErr
	}
	var d models.Dashboard
	err := s.db.Where("id = ? AND tenant_id = ?", dashboardID, tenantID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("dashboard not found")
	}
	if err != nil {
		return nil, response.NewServerError("failed to load dashboard")
	}
	return &d, nil
}
