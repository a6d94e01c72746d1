package services

import (
	"net/http"
	"testing"

	"github.com/gridbase/gridbase/internal/models"
)

func TestCheckTable_NonMember(t *testing.T) {
	f := newFixture(t)
	stranger := models.User{ID: models.NewID("usr"), Email: "s@test", Account: "s", Name: "s", PasswordHash: "x"}
	if err := f.db.Create(&stranger).Error; err != nil {
		t.Fatal(err)
	}

	_, appErr := f.perm.CheckTableRead(f.tenant.ID, stranger.ID, f.table.ID)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("non-member should get 403, got %v", appErr)
	}
}

func TestCheckTable_OwnerBypass(t *testing.T) {
	f := newFixture(t)

	if _, appErr := f.perm.CheckTableRead(f.tenant.ID, f.owner.ID, f.table.ID); appErr != nil {
		t.Errorf("owner read should bypass rows: %v", appErr)
	}
	if _, appErr := f.perm.CheckTableWrite(f.tenant.ID, f.owner.ID, f.table.ID); appErr != nil {
		t.Errorf("owner write should bypass rows: %v", appErr)
	}
}

func TestCheckTable_DefaultDeny(t *testing.T) {
	f := newFixture(t)

	_, appErr := f.perm.CheckTableRead(f.tenant.ID, f.member.ID, f.table.ID)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("member without a row should get 403, got %v", appErr)
	}
	if n := f.auditCount(t, models.AuditTableDenied); n != 1 {
		t.Errorf("denial should be audited once, got %d rows", n)
	}
}

func TestCheckTable_ReadRowGrantsReadNotWrite(t *testing.T) {
	f := newFixture(t)
	f.grant(t, f.member.ID, true, false)

	if _, appErr := f.perm.CheckTableRead(f.tenant.ID, f.member.ID, f.table.ID); appErr != nil {
		t.Errorf("read row should grant read: %v", appErr)
	}
	_, appErr := f.perm.CheckTableWrite(f.tenant.ID, f.member.ID, f.table.ID)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("read row should not grant write, got %v", appErr)
	}
}

func TestCheckTable_CrossTenantAudited(t *testing.T) {
	f := newFixture(t)

	other := models.Tenant{ID: models.NewID("ten"), Name: "other"}
	otherTable := models.Table{ID: models.NewID("tbl"), TenantID: other.ID, BaseID: "none", Name: "secret"}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}
	if err := f.db.Create(&otherTable).Error; err != nil {
		t.Fatal(err)
	}

	_, appErr := f.perm.CheckTableRead(f.tenant.ID, f.owner.ID, otherTable.ID)
	if appErr == nil || appErr.HTTPStatus != http.StatusNotFound {
		t.Errorf("foreign table should read as not found, got %v", appErr)
	}
	if n := f.auditCount(t, models.AuditCrossTenantAccess); n != 1 {
		t.Errorf("cross-tenant attempt should be audited once, got %d rows", n)
	}
}

func TestCheckButton(t *testing.T) {
	f := newFixture(t)
	row := f.grant(t, f.member.ID, true, true)

	if appErr := f.perm.CheckButton(f.tenant.ID, f.member.ID, f.table.ID, ButtonCreateRecord); appErr != nil {
		t.Errorf("default-allow button rejected: %v", appErr)
	}

	row.CanCreateRecord = false
	if err := f.db.Save(row).Error; err != nil {
		t.Fatal(err)
	}
	appErr := f.perm.CheckButton(f.tenant.ID, f.member.ID, f.table.ID, ButtonCreateRecord)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("disabled button should be refused, got %v", appErr)
	}

	// Owners ignore button flags entirely.
	if appErr := f.perm.CheckButton(f.tenant.ID, f.owner.ID, f.table.ID, ButtonCreateRecord); appErr != nil {
		t.Errorf("owner should bypass button flags: %v", appErr)
	}
}

func TestCheckButton_NoRow(t *testing.T) {
	f := newFixture(t)

	appErr := f.perm.CheckButton(f.tenant.ID, f.member.ID, f.table.ID, ButtonCreateRecord)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("button check without a base row should get 403, got %v", appErr)
	}
	if n := f.auditCount(t, models.AuditButtonDenied); n != 1 {
		t.Errorf("denial should be audited once, got %d rows", n)
	}
}

func TestCheckViewRead(t *testing.T) {
	f := newFixture(t)

	// No table row, no view row: denied.
	appErr := f.perm.CheckViewRead(f.tenant.ID, f.member.ID, &f.view)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("member without any grant should get 403, got %v", appErr)
	}

	// A view row alone does not open the view without table read.
	f.grantView(t, f.member.ID, true, false)
	appErr = f.perm.CheckViewRead(f.tenant.ID, f.member.ID, &f.view)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Fatalf("view row without table read should get 403, got %v", appErr)
	}
	if n := f.auditCount(t, models.AuditViewDenied); n != 2 {
		t.Errorf("denials should be audited, got %d rows", n)
	}

	// Table read plus the view row opens it.
	f.grant(t, f.member.ID, true, false)
	if appErr := f.perm.CheckViewRead(f.tenant.ID, f.member.ID, &f.view); appErr != nil {
		t.Errorf("table read plus view row should grant view read: %v", appErr)
	}
}

func TestCheckViewRead_TableReadAloneDenied(t *testing.T) {
	f := newFixture(t)
	f.grant(t, f.member.ID, true, true)

	appErr := f.perm.CheckViewRead(f.tenant.ID, f.member.ID, &f.view)
	if appErr == nil || appErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("table access without a view row should get 403, got %v", appErr)
	}

	// Owners bypass the row requirement.
	if appErr := f.perm.CheckViewRead(f.tenant.ID, f.owner.ID, &f.view); appErr != nil {
		t.Errorf("owner should bypass view rows: %v", appErr)
	}
}

func TestParseButtonAction(t *testing.T) {
	for _, name := range []string{"createRecord", "deleteRecord", "importRecords", "exportRecords", "manageFilters", "manageSorts"} {
		a, ok := ParseButtonAction(name)
		if !ok {
			t.Errorf("%s should parse", name)
			continue
		}
		if a.String() != name {
			t.Errorf("round trip %s -> %s", name, a.String())
		}
	}
	if _, ok := ParseButtonAction("share"); ok {
		t.Error("unknown action should not parse")
	}
}

func TestReferenceMembers(t *testing.T) {
	f := newFixture(t)
	f.grant(t, f.member.ID, true, false)

	users, appErr := f.perm.ReferenceMembers(f.tenant.ID, f.table.ID)
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	// Only permission-row holders count; the owner has no row here.
	if len(users) != 1 || users[0].ID != f.member.ID {
		t.Errorf("reference set should be exactly the granted member, got %v", users)
	}
}

func TestMyButtons(t *testing.T) {
	f := newFixture(t)

	set, appErr := f.perm.MyButtons(f.tenant.ID, f.owner.ID, f.table.ID)
	if appErr != nil {
		t.Fatalf("owner buttons: %v", appErr)
	}
	if !set.CanCreateRecord || !set.CanManageSorts {
		t.Error("owners should hold every button")
	}

	row := f.grant(t, f.member.ID, true, false)
	row.CanExportRecords = false
	if err := f.db.Save(row).Error; err != nil {
		t.Fatal(err)
	}

	set, appErr = f.perm.MyButtons(f.tenant.ID, f.member.ID, f.table.ID)
	if appErr != nil {
		t.Fatalf("member buttons: %v", appErr)
	}
	if set.CanExportRecords {
		t.Error("disabled flag should show as off")
	}
	if !set.Allowed(ButtonCreateRecord) || set.Allowed(ButtonExportRecords) {
		t.Error("Allowed should mirror the flags")
	}
}
