package services

import (
	"net/http"
	"testing"

	"github.com/gridbase/gridbase/internal/models"
)

func TestQuery_OwnerWithoutView(t *testing.T) {
	f := newFixture(t)
	name := f.addField(t, "name", models.FieldTypeText)
	f.addRecord(t, map[string]any{name.ID: "a"})
	f.addRecord(t, map[string]any{name.ID: "b"})

	res, appErr := f.records.Query(f.tenant.ID, f.owner.ID, f.table.ID, QueryRequest{})
	if appErr != nil {
		t.Fatalf("owner query without view: %v", appErr)
	}
	if res.Total != 2 || len(res.Records) != 2 {
		t.Errorf("got total=%d len=%d, want 2/2", res.Total, len(res.Records))
	}
}

func TestQuery_MemberRequiresView(t *testing.T) {
	f := newFixture(t)
	f.grant(t, f.member.ID, true, false)

	_, appErr := f.records.Query(f.tenant.ID, f.member.ID, f.table.ID, QueryRequest{})
	if appErr == nil || appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("member without viewId should get 400, got %v", appErr)
	}

	// Table read alone is not enough; the view needs its own row.
	_, appErr = f.records.Query(f.tenant.ID, f.member.ID, f.table.ID, QueryRequest{ViewID: f.view.ID})
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("member without a view row should get 403, got %v", appErr)
	}

	f.grantView(t, f.member.ID, true, false)
	if _, appErr := f.records.Query(f.tenant.ID, f.member.ID, f.table.ID, QueryRequest{ViewID: f.view.ID}); appErr != nil {
		t.Errorf("member with table read and a view row should query: %v", appErr)
	}
}

func TestQuery_ViewGrantWithoutTableReadDenied(t *testing.T) {
	f := newFixture(t)
	name := f.addField(t, "name", models.FieldTypeText)
	f.addRecord(t, map[string]any{name.ID: "a"})

	f.grantView(t, f.member.ID, true, false)

	_, appErr := f.records.Query(f.tenant.ID, f.member.ID, f.table.ID, QueryRequest{ViewID: f.view.ID})
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("view grant without table read should get 403, got %v", appErr)
	}
	if n := f.auditCount(t, models.AuditTableDenied); n != 1 {
		t.Errorf("table denial should be audited, got %d rows", n)
	}
}

func TestQuery_ViewConfigApplies(t *testing.T) {
	f := newFixture(t)
	status := f.addField(t, "status", models.FieldTypeSingleSelect)
	f.addRecord(t, map[string]any{status.ID: "open"})
	f.addRecord(t, map[string]any{status.ID: "done"})
	f.addRecord(t, map[string]any{status.ID: "open"})

	cfg := f.view.Config()
	cfg.Filters = []models.FilterItem{{FieldID: status.ID, Op: "eq", Value: "open"}}
	f.view.SetConfig(cfg)
	if err := f.db.Save(&f.view).Error; err != nil {
		t.Fatal(err)
	}

	res, appErr := f.records.Query(f.tenant.ID, f.owner.ID, f.table.ID, QueryRequest{ViewID: f.view.ID})
	if appErr != nil {
		t.Fatalf("query: %v", appErr)
	}
	if res.Total != 2 {
		t.Errorf("view filter should leave 2 records, got %d", res.Total)
	}

	// Explicit filters replace the view's, even when empty.
	res, appErr = f.records.Query(f.tenant.ID, f.owner.ID, f.table.ID, QueryRequest{
		ViewID:  f.view.ID,
		Filters: []models.FilterItem{},
	})
	if appErr != nil {
		t.Fatalf("query with explicit filters: %v", appErr)
	}
	if res.Total != 3 {
		t.Errorf("explicit empty filters should replace view filters, got %d records", res.Total)
	}
}

func TestQuery_FilterLogic(t *testing.T) {
	f := newFixture(t)
	status := f.addField(t, "status", models.FieldTypeSingleSelect)
	points := f.addField(t, "points", models.FieldTypeNumber)
	f.addRecord(t, map[string]any{status.ID: "open", points.ID: 1.0})
	f.addRecord(t, map[string]any{status.ID: "done", points.ID: 2.0})
	f.addRecord(t, map[string]any{status.ID: "open", points.ID: 5.0})

	filters := []models.FilterItem{
		{FieldID: status.ID, Op: "eq", Value: "done"},
		{FieldID: points.ID, Op: "gt", Value: 3.0},
	}

	res, appErr := f.records.Query(f.tenant.ID, f.owner.ID, f.table.ID, QueryRequest{
		Filters: filters, FilterLogic: "or",
	})
	if appErr != nil {
		t.Fatalf("or query: %v", appErr)
	}
	if res.Total != 2 {
		t.Errorf("or logic should match 2 records, got %d", res.Total)
	}

	res, appErr = f.records.Query(f.tenant.ID, f.owner.ID, f.table.ID, QueryRequest{
		Filters: filters,
	})
	if appErr != nil {
		t.Fatalf("and query: %v", appErr)
	}
	if res.Total != 0 {
		t.Errorf("and logic should match 0 records, got %d", res.Total)
	}

	_, appErr = f.records.Query(f.tenant.ID, f.owner.ID, f.table.ID, QueryRequest{
		Filters: filters, FilterLogic: "xor",
	})
	if appErr == nil || appErr.HTTPStatus != 400 {
		t.Fatalf("expected 400 for unknown filterLogic, got %v", appErr)
	}
}

func TestCreateRecord(t *testing.T) {
	f := newFixture(t)
	name := f.addField(t, "name", models.FieldTypeText)
	hours := f.addField(t, "hours", models.FieldTypeNumber)

	rec, appErr := f.records.Create(f.tenant.ID, f.owner.ID, f.table.ID, map[string]any{
		name.ID:  "task one",
		hours.ID: 2.5,
	})
	if appErr != nil {
		t.Fatalf("create: %v", appErr)
	}
	got, appErr := f.records.Get(f.tenant.ID, f.owner.ID, f.table.ID, rec.ID)
	if appErr != nil {
		t.Fatalf("get: %v", appErr)
	}
	if got.Values[name.ID] != "task one" {
		t.Errorf("name = %v", got.Values[name.ID])
	}
	if got.Values[hours.ID] != 2.5 {
		t.Errorf("hours = %v", got.Values[hours.ID])
	}
}

func TestCreateRecord_RejectsBadValue(t *testing.T) {
	f := newFixture(t)
	hours := f.addField(t, "hours", models.FieldTypeNumber)

	_, appErr := f.records.Create(f.tenant.ID, f.owner.ID, f.table.ID, map[string]any{hours.ID: "lots"})
	if appErr == nil || appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("string in a number field should get 400, got %v", appErr)
	}

	_, appErr = f.records.Create(f.tenant.ID, f.owner.ID, f.table.ID, map[string]any{"fld_nope": "x"})
	if appErr == nil || appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("unknown field id should get 400, got %v", appErr)
	}
}

func TestCreateRecord_ButtonDisabled(t *testing.T) {
	f := newFixture(t)
	f.addField(t, "name", models.FieldTypeText)
	row := f.grant(t, f.member.ID, true, true)
	row.CanCreateRecord = false
	if err := f.db.Save(row).Error; err != nil {
		t.Fatal(err)
	}

	_, appErr := f.records.Create(f.tenant.ID, f.member.ID, f.table.ID, map[string]any{})
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("addRecord disabled should get 403, got %v", appErr)
	}
}

func TestUpdateRecord_NilClearsCell(t *testing.T) {
	f := newFixture(t)
	name := f.addField(t, "name", models.FieldTypeText)
	rec := f.addRecord(t, map[string]any{name.ID: "before"})

	got, appErr := f.records.Update(f.tenant.ID, f.owner.ID, f.table.ID, rec.ID, map[string]any{name.ID: nil})
	if appErr != nil {
		t.Fatalf("update: %v", appErr)
	}
	if _, ok := got.Values[name.ID]; ok {
		t.Errorf("cleared cell should be absent, got %v", got.Values[name.ID])
	}
}

func TestDeleteRecords(t *testing.T) {
	f := newFixture(t)
	name := f.addField(t, "name", models.FieldTypeText)
	a := f.addRecord(t, map[string]any{name.ID: "a"})
	b := f.addRecord(t, map[string]any{name.ID: "b"})

	if appErr := f.records.Delete(f.tenant.ID, f.owner.ID, f.table.ID, []string{a.ID}); appErr != nil {
		t.Fatalf("delete: %v", appErr)
	}
	res, appErr := f.records.Query(f.tenant.ID, f.owner.ID, f.table.ID, QueryRequest{})
	if appErr != nil {
		t.Fatalf("query: %v", appErr)
	}
	if res.Total != 1 || res.Records[0].ID != b.ID {
		t.Errorf("remaining records = %v", res.Records)
	}

	var cells int64
	f.db.Model(&models.RecordValue{}).Where("record_id = ?", a.ID).Count(&cells)
	if cells != 0 {
		t.Errorf("deleted record should drop its cells, %d left", cells)
	}

	if appErr := f.records.Delete(f.tenant.ID, f.owner.ID, f.table.ID, nil); appErr == nil {
		t.Error("empty id list should be rejected")
	}
}

func TestGetRecord_WrongTable(t *testing.T) {
	f := newFixture(t)
	name := f.addField(t, "name", models.FieldTypeText)
	rec := f.addRecord(t, map[string]any{name.ID: "a"})

	other := models.Table{ID: models.NewID("tbl"), TenantID: f.tenant.ID, BaseID: f.base.ID, Name: "other"}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}
	_, appErr := f.records.Get(f.tenant.ID, f.owner.ID, other.ID, rec.ID)
	if appErr == nil || appErr.HTTPStatus != http.StatusNotFound {
		t.Errorf("record looked up through the wrong table should 404, got %v", appErr)
	}
}
