package services

import (
	"net/http"
	"testing"

	"github.com/gridbase/gridbase/internal/models"
)

func newTableService(f *fixture) *TableService {
	return NewTableService(f.db, f.perm, NewFieldTypeService())
}

func TestCreateTable_OwnerOnlyWithDefaultView(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)

	table, appErr := svc.CreateTable(f.tenant.ID, f.owner.ID, f.base.ID, "bugs")
	if appErr != nil {
		t.Fatalf("create table: %v", appErr)
	}
	var views int64
	f.db.Model(&models.View{}).Where("table_id = ?", table.ID).Count(&views)
	if views != 1 {
		t.Errorf("new table should carry one view, got %d", views)
	}

	_, appErr = svc.CreateTable(f.tenant.ID, f.member.ID, f.base.ID, "nope")
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("member create should get 403, got %v", appErr)
	}
}

func TestListTables_FilteredForMembers(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)
	hidden := models.Table{ID: models.NewID("tbl"), TenantID: f.tenant.ID, BaseID: f.base.ID, Name: "hidden"}
	if err := f.db.Create(&hidden).Error; err != nil {
		t.Fatal(err)
	}
	f.grant(t, f.member.ID, true, false)

	tables, appErr := svc.ListTables(f.tenant.ID, f.owner.ID, f.base.ID)
	if appErr != nil {
		t.Fatal(appErr)
	}
	if len(tables) != 2 {
		t.Errorf("owner should see both tables, got %d", len(tables))
	}

	tables, appErr = svc.ListTables(f.tenant.ID, f.member.ID, f.base.ID)
	if appErr != nil {
		t.Fatal(appErr)
	}
	if len(tables) != 1 || tables[0].ID != f.table.ID {
		t.Errorf("member should see only granted tables, got %v", tables)
	}
}

func TestDeleteTable_Cascades(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)
	name := f.addField(t, "name", models.FieldTypeText)
	rec := f.addRecord(t, map[string]any{name.ID: "a"})
	f.grant(t, f.member.ID, true, false)

	if appErr := svc.DeleteTable(f.tenant.ID, f.owner.ID, f.table.ID); appErr != nil {
		t.Fatalf("delete table: %v", appErr)
	}

	var n int64
	f.db.Model(&models.Record{}).Where("table_id = ?", f.table.ID).Count(&n)
	if n != 0 {
		t.Errorf("records left: %d", n)
	}
	f.db.Model(&models.RecordValue{}).Where("record_id = ?", rec.ID).Count(&n)
	if n != 0 {
		t.Errorf("record values left: %d", n)
	}
	f.db.Model(&models.View{}).Where("table_id = ?", f.table.ID).Count(&n)
	if n != 0 {
		t.Errorf("views left: %d", n)
	}
	f.db.Model(&models.Field{}).Where("table_id = ?", f.table.ID).Count(&n)
	if n != 0 {
		t.Errorf("fields left: %d", n)
	}
	f.db.Model(&models.TablePermission{}).Where("table_id = ?", f.table.ID).Count(&n)
	if n != 0 {
		t.Errorf("permission rows left: %d", n)
	}
}

func TestReplacePermissions_OwnerFloor(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)

	// The new list tries to demote the owner and grant the member write.
	appErr := svc.ReplacePermissions(f.tenant.ID, f.owner.ID, f.table.ID, []TableGrant{
		{UserID: f.owner.ID, CanRead: false, CanWrite: false},
		{UserID: f.member.ID, CanRead: false, CanWrite: true},
	})
	if appErr != nil {
		t.Fatalf("replace: %v", appErr)
	}

	var rows []models.TablePermission
	if err := f.db.Where("table_id = ?", f.table.ID).Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	byUser := map[string]models.TablePermission{}
	for _, r := range rows {
		byUser[r.UserID] = r
	}

	if got := byUser[f.owner.ID]; !got.CanRead || !got.CanWrite {
		t.Errorf("owner row should stay read+write, got %+v", got)
	}
	if got := byUser[f.member.ID]; !got.CanRead || !got.CanWrite {
		t.Errorf("write grant should carry read, got %+v", got)
	}
}

func TestReplacePermissions_RejectsNonMembers(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)

	outsider := models.User{ID: models.NewID("usr"), Email: "out@test", Account: "out", Name: "out", PasswordHash: "x"}
	if err := f.db.Create(&outsider).Error; err != nil {
		t.Fatal(err)
	}

	appErr := svc.ReplacePermissions(f.tenant.ID, f.owner.ID, f.table.ID, []TableGrant{
		{UserID: outsider.ID, CanRead: true},
	})
	if appErr == nil || appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("granting a non-member should get 400, got %v", appErr)
	}
	var n int64
	f.db.Model(&models.TablePermission{}).
		Where("table_id = ? AND user_id = ?", f.table.ID, outsider.ID).Count(&n)
	if n != 0 {
		t.Error("rejected grant should leave no row")
	}
}

func TestTableApplyRoleDefaults(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)

	if appErr := svc.ApplyRoleDefaults(f.tenant.ID, f.member.ID, f.table.ID); appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("member apply should get 403, got %v", appErr)
	}

	if appErr := svc.ApplyRoleDefaults(f.tenant.ID, f.owner.ID, f.table.ID); appErr != nil {
		t.Fatalf("apply: %v", appErr)
	}

	var rows []models.TablePermission
	if err := f.db.Where("table_id = ?", f.table.ID).Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	byUser := map[string]models.TablePermission{}
	for _, r := range rows {
		byUser[r.UserID] = r
	}
	if got := byUser[f.owner.ID]; !got.CanRead || !got.CanWrite {
		t.Errorf("owner defaults = %+v", got)
	}
	// No stored role to consult, so the member falls back to read-only.
	if got := byUser[f.member.ID]; !got.CanRead || got.CanWrite {
		t.Errorf("member defaults = %+v", got)
	}
}

func TestReplacePermissions_PreservesButtonFlags(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)
	row := f.grant(t, f.member.ID, true, false)
	row.CanDeleteRecord = false
	if err := f.db.Save(row).Error; err != nil {
		t.Fatal(err)
	}

	appErr := svc.ReplacePermissions(f.tenant.ID, f.owner.ID, f.table.ID, []TableGrant{
		{UserID: f.member.ID, CanRead: true, CanWrite: true},
	})
	if appErr != nil {
		t.Fatalf("replace: %v", appErr)
	}

	var got models.TablePermission
	if err := f.db.Where("table_id = ? AND user_id = ?", f.table.ID, f.member.ID).First(&got).Error; err != nil {
		t.Fatal(err)
	}
	if got.CanDeleteRecord {
		t.Error("button flags of a surviving user should be preserved")
	}
	if !got.CanWrite {
		t.Error("access flags should be updated")
	}
}

func TestReplacePermissions_RemovesDroppedUsers(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)
	f.grant(t, f.member.ID, true, true)

	if appErr := svc.ReplacePermissions(f.tenant.ID, f.owner.ID, f.table.ID, nil); appErr != nil {
		t.Fatalf("replace: %v", appErr)
	}

	var n int64
	f.db.Model(&models.TablePermission{}).
		Where("table_id = ? AND user_id = ?", f.table.ID, f.member.ID).Count(&n)
	if n != 0 {
		t.Error("user absent from the new list should lose their row")
	}
}

func TestSetButtonFlags(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)
	f.grant(t, f.member.ID, true, true)

	off := false
	appErr := svc.SetButtonFlags(f.tenant.ID, f.owner.ID, f.table.ID, f.member.ID, ButtonFlags{CanExportRecords: &off})
	if appErr != nil {
		t.Fatalf("set flags: %v", appErr)
	}

	var row models.TablePermission
	if err := f.db.Where("table_id = ? AND user_id = ?", f.table.ID, f.member.ID).First(&row).Error; err != nil {
		t.Fatal(err)
	}
	if row.CanExportRecords {
		t.Error("export should be off")
	}
	if !row.CanCreateRecord {
		t.Error("untouched flags should keep their value")
	}

	// No row, no patch.
	other := models.User{ID: models.NewID("usr"), Email: "o@test", Account: "o", Name: "o", PasswordHash: "x"}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}
	appErr = svc.SetButtonFlags(f.tenant.ID, f.owner.ID, f.table.ID, other.ID, ButtonFlags{CanExportRecords: &off})
	if appErr == nil || appErr.HTTPStatus != http.StatusNotFound {
		t.Errorf("missing row should 404, got %v", appErr)
	}
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)

	res, appErr := svc.Import(f.tenant.ID, f.owner.ID, f.table.ID, ImportBundle{
		ViewName: "sprint",
		Fields: []ImportField{
			{Name: "title", Type: models.FieldTypeText},
			{Name: "points", Type: models.FieldTypeNumber},
		},
		Records: []map[string]any{
			{"title": "one", "points": 3.0},
			{"title": "two", "unknown column": "ignored"},
		},
	})
	if appErr != nil {
		t.Fatalf("import: %v", appErr)
	}
	if res.RecordCount != 2 {
		t.Errorf("record count = %d", res.RecordCount)
	}
	if len(res.FieldIDs) != 2 {
		t.Errorf("field ids = %v", res.FieldIDs)
	}

	var fields int64
	f.db.Model(&models.Field{}).Where("table_id = ?", f.table.ID).Count(&fields)
	if fields != 2 {
		t.Errorf("imported fields = %d", fields)
	}
	var views int64
	f.db.Model(&models.View{}).Where("table_id = ?", f.table.ID).Count(&views)
	if views != 2 {
		t.Errorf("import should add one view, table has %d", views)
	}

	// The importer gets a read/write grant on the new view.
	var vp models.ViewPermission
	if err := f.db.Where("view_id = ? AND user_id = ?", res.ViewID, f.owner.ID).First(&vp).Error; err != nil {
		t.Fatalf("view grant: %v", err)
	}
	if !vp.CanRead || !vp.CanWrite {
		t.Errorf("importer grant = %+v", vp)
	}
}

func TestImport_AtomicOnBadValue(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)

	_, appErr := svc.Import(f.tenant.ID, f.owner.ID, f.table.ID, ImportBundle{
		ViewName: "broken",
		Fields:   []ImportField{{Name: "points", Type: models.FieldTypeNumber}},
		Records: []map[string]any{
			{"points": 1.0},
			{"points": "not a number"},
		},
	})
	if appErr == nil || appErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("bad cell should get 400, got %v", appErr)
	}

	var n int64
	f.db.Model(&models.View{}).Where("table_id = ? AND name = ?", f.table.ID, "broken").Count(&n)
	if n != 0 {
		t.Error("failed import should leave no view behind")
	}
	f.db.Model(&models.Record{}).Where("table_id = ?", f.table.ID).Count(&n)
	if n != 0 {
		t.Error("failed import should leave no records behind")
	}
}

func TestImport_Validation(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)

	cases := []struct {
		name   string
		bundle ImportBundle
	}{
		{"no view name", ImportBundle{Fields: []ImportField{{Name: "a", Type: "text"}}}},
		{"no fields", ImportBundle{ViewName: "x"}},
		{"dup field", ImportBundle{ViewName: "x", Fields: []ImportField{{Name: "a", Type: "text"}, {Name: "a", Type: "text"}}}},
		{"bad type", ImportBundle{ViewName: "x", Fields: []ImportField{{Name: "a", Type: "rollup"}}}},
		{"select without options", ImportBundle{ViewName: "x", Fields: []ImportField{{Name: "a", Type: "singleSelect"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, appErr := svc.Import(f.tenant.ID, f.owner.ID, f.table.ID, tc.bundle)
			if appErr == nil || appErr.HTTPStatus != http.StatusBadRequest {
				t.Errorf("got %v, want 400", appErr)
			}
		})
	}
}

func TestImport_NeedsButton(t *testing.T) {
	f := newFixture(t)
	svc := newTableService(f)
	row := f.grant(t, f.member.ID, true, true)
	row.CanImportRecords = false
	if err := f.db.Save(row).Error; err != nil {
		t.Fatal(err)
	}

	_, appErr := svc.Import(f.tenant.ID, f.member.ID, f.table.ID, ImportBundle{
		ViewName: "x",
		Fields:   []ImportField{{Name: "a", Type: models.FieldTypeText}},
	})
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("import with the button off should get 403, got %v", appErr)
	}
}
