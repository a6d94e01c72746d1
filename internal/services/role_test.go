package services

import (
	"testing"

	"github.com/gridbase/gridbase/internal/models"
)

func TestEnsureBuiltinRoles_Idempotent(t *testing.T) {
	f := newFixture(t)
	roles := NewRoleService(f.db)

	for i := 0; i < 2; i++ {
		if err := roles.EnsureBuiltinRoles(f.tenant.ID); err != nil {
			t.Fatalf("ensure builtin roles: %v", err)
		}
	}

	var n int64
	f.db.Model(&models.TenantRole{}).Where("tenant_id = ?", f.tenant.ID).Count(&n)
	if n != 5 {
		t.Errorf("got %d roles, want 5", n)
	}

	admin, appErr := roles.Get(f.tenant.ID, "admin")
	if appErr != nil {
		t.Fatalf("get admin: %v", appErr)
	}
	if !admin.Builtin || !admin.CanInvite || !admin.CanWriteData {
		t.Errorf("admin role = %+v", admin)
	}
	member, appErr := roles.Get(f.tenant.ID, "member")
	if appErr != nil {
		t.Fatalf("get member: %v", appErr)
	}
	if member.CanWriteData || !member.CanReadData {
		t.Errorf("member role = %+v", member)
	}
}

func TestApplyRoleDefaults(t *testing.T) {
	f := newFixture(t)
	roles := NewRoleService(f.db)
	if err := roles.EnsureBuiltinRoles(f.tenant.ID); err != nil {
		t.Fatal(err)
	}

	dev, appErr := roles.Get(f.tenant.ID, "developer")
	if appErr != nil {
		t.Fatal(appErr)
	}
	if err := roles.ApplyRoleDefaults(f.db, f.tenant.ID, f.member.ID, dev); err != nil {
		t.Fatalf("apply defaults: %v", err)
	}

	var row models.TablePermission
	if err := f.db.Where("table_id = ? AND user_id = ?", f.table.ID, f.member.ID).First(&row).Error; err != nil {
		t.Fatal(err)
	}
	// Write-capable roles imply read even when read is unset.
	if !row.CanRead || !row.CanWrite {
		t.Errorf("developer defaults = %+v", row)
	}
	if !row.CanCreateRecord || !row.CanManageSorts {
		t.Error("fresh rows should have all buttons on")
	}
	var vp models.ViewPermission
	if err := f.db.Where("view_id = ? AND user_id = ?", f.view.ID, f.member.ID).First(&vp).Error; err != nil {
		t.Fatalf("view row: %v", err)
	}
	if !vp.CanRead || !vp.CanWrite {
		t.Errorf("developer view defaults = %+v", vp)
	}

	// Reapplying a read-only role downgrades access but keeps buttons.
	row.CanDeleteRecord = false
	if err := f.db.Save(&row).Error; err != nil {
		t.Fatal(err)
	}
	readonly, appErr := roles.Get(f.tenant.ID, "member")
	if appErr != nil {
		t.Fatal(appErr)
	}
	if err := roles.ApplyRoleDefaults(f.db, f.tenant.ID, f.member.ID, readonly); err != nil {
		t.Fatal(err)
	}
	if err := f.db.Where("table_id = ? AND user_id = ?", f.table.ID, f.member.ID).First(&row).Error; err != nil {
		t.Fatal(err)
	}
	if row.CanWrite || !row.CanRead {
		t.Errorf("downgraded row = %+v", row)
	}
	if row.CanDeleteRecord {
		t.Error("button flags should survive a role reapply")
	}
	vp = models.ViewPermission{}
	if err := f.db.Where("view_id = ? AND user_id = ?", f.view.ID, f.member.ID).First(&vp).Error; err != nil {
		t.Fatal(err)
	}
	if vp.CanWrite || !vp.CanRead {
		t.Errorf("downgraded view row = %+v", vp)
	}
}
