package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Widget chart kinds.
const (
	WidgetMetric = "metric"
	WidgetBar    = "bar"
	WidgetPie    = "pie"
	WidgetLine   = "line"
	WidgetTable  = "table"
)

// Dashboard is a tenant-scoped collection of widgets.
type Dashboard struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string    `gorm:"size:64;index;not null" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	OwnerID   string    `gorm:"size:64;index;not null" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WidgetLayout is the grid placement of a widget.
type WidgetLayout struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// WidgetQuery is the aggregation request a widget renders.
type WidgetQuery struct {
	TableID      string       `json:"tableId"`
	Kind         string       `json:"kind"`
	Metric       string       `json:"metric,omitempty"`
	FieldID      string       `json:"fieldId,omitempty"`
	GroupFieldID string       `json:"groupFieldId,omitempty"`
	Filters      []FilterItem `json:"filters,omitempty"`
	Limit        int          `json:"limit,omitempty"`
	FieldIDs     []string     `json:"fieldIds,omitempty"`
}

// DashboardWidget is one chart on a dashboard. Layout and query are
// stored as JSON; SortOrder is derived from layout as y*100+x.
type DashboardWidget struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID    string    `gorm:"size:64;index;not null" json:"tenant_id"`
	DashboardID string    `gorm:"size:64;index;not null" json:"dashboard_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Kind        string    `gorm:"size:32;not null" json:"kind"`
	LayoutJSON  string    `gorm:"type:text" json:"-"`
	QueryJSON   string    `gorm:"type:text" json:"-"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Layout decodes the stored placement; zero layout when unset.
func (w *DashboardWidget) Layout() WidgetLayout {
	var l WidgetLayout
	if strings.TrimSpace(w.LayoutJSON) == "" {
		return l
	}
	_ = json.Unmarshal([]byte(w.LayoutJSON), &l)
	return l
}

// SetLayout stores the placement and refreshes SortOrder.
func (w *DashboardWidget) SetLayout(l WidgetLayout) {
	data, _ := json.Marshal(l)
	w.LayoutJSON = string(data)
	w.SortOrder = l.Y*100 + l.X
}

// Query decodes the stored aggregation request.
func (w *DashboardWidget) Query() WidgetQuery {
	var q WidgetQuery
	if strings.TrimSpace(w.QueryJSON) == "" {
		return q
	}
	_ = json.Unmarshal([]byte(w.QueryJSON), &q)
	return q
}

// SetQuery stores the aggregation request.
func (w *DashboardWidget) SetQuery(q WidgetQuery) {
	data, _ := json.Marshal(q)
	w.QueryJSON = string(data)
}

func (Dashboard) TableName() string       { return "dashboards" }
func (DashboardWidget) TableName() string { return "dashboard_widgets" }
