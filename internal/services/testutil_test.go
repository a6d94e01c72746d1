package services

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gridbase/gridbase/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fixture is a seeded tenant with an owner, a plain member and a table.
type fixture struct {
	db      *gorm.DB
	tenant  models.Tenant
	owner   models.User
	member  models.User
	base    models.Base
	table   models.Table
	view    models.View
	audit   *AuditService
	perm    *PermissionService
	fields  *FieldService
	records *RecordService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	f := &fixture{db: db}
	f.tenant = models.Tenant{ID: models.NewID("ten"), Name: "t"}
	f.owner = models.User{ID: models.NewID("usr"), Email: "owner@test", Account: "owner", Name: "owner", PasswordHash: "x"}
	f.member = models.User{ID: models.NewID("usr"), Email: "member@test", Account: "member", Name: "member", PasswordHash: "x"}
	f.base = models.Base{ID: models.NewID("bse"), TenantID: f.tenant.ID, Name: "b"}
	f.table = models.Table{ID: models.NewID("tbl"), TenantID: f.tenant.ID, BaseID: f.base.ID, Name: "tasks"}
	f.view = models.View{ID: models.NewID("viw"), TenantID: f.tenant.ID, TableID: f.table.ID, Name: "grid", Type: "grid"}
	f.view.SetConfig(models.DefaultViewConfig())

	for _, row := range []any{&f.tenant, &f.owner, &f.member, &f.base, &f.table, &f.view} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	memberships := []models.Membership{
		{ID: models.NewID("mem"), TenantID: f.tenant.ID, UserID: f.owner.ID, RoleKey: models.RoleOwner},
		{ID: models.NewID("mem"), TenantID: f.tenant.ID, UserID: f.member.ID, RoleKey: models.RoleMember},
	}
	for i := range memberships {
		if err := db.Create(&memberships[i]).Error; err != nil {
			t.Fatalf("seed membership: %v", err)
		}
	}

	f.audit = NewAuditService(db)
	f.perm = NewPermissionService(db, f.audit)
	f.fields = NewFieldService(db, f.perm)
	f.records = NewRecordService(db, f.perm, NewFieldTypeService(), f.fields)
	return f
}

func (f *fixture) grant(t *testing.T, userID string, read, write bool) *models.TablePermission {
	t.Helper()
	row := models.TablePermission{
		ID:               models.NewID("tpm"),
		TenantID:         f.tenant.ID,
		TableID:          f.table.ID,
		UserID:           userID,
		CanRead:          read,
		CanWrite:         write,
		CanCreateRecord:  true,
		CanDeleteRecord:  true,
		CanImportRecords: true,
		CanExportRecords: true,
		CanManageFilters: true,
		CanManageSorts:   true,
	}
	if err := f.db.Create(&row).Error; err != nil {
		t.Fatalf("grant permission: %v", err)
	}
	return &row
}

func (f *fixture) grantView(t *testing.T, userID string, read, write bool) *models.ViewPermission {
	t.Helper()
	row := models.ViewPermission{
		ID:       models.NewID("vpm"),
		TenantID: f.tenant.ID,
		ViewID:   f.view.ID,
		UserID:   userID,
		CanRead:  read,
		CanWrite: write,
	}
	if err := f.db.Create(&row).Error; err != nil {
		t.Fatalf("grant view permission: %v", err)
	}
	return &row
}

func (f *fixture) addField(t *testing.T, name, fieldType string) *models.Field {
	t.Helper()
	field := models.Field{
		ID:       models.NewID("fld"),
		TenantID: f.tenant.ID,
		TableID:  f.table.ID,
		Name:     name,
		Type:     fieldType,
	}
	if err := f.db.Create(&field).Error; err != nil {
		t.Fatalf("seed field: %v", err)
	}
	return &field
}

func (f *fixture) addRecord(t *testing.T, values map[string]any) *models.Record {
	t.Helper()
	rec := models.Record{ID: models.NewID("rec"), TenantID: f.tenant.ID, TableID: f.table.ID}
	if err := f.db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
	for fieldID, v := range values {
		cell := models.RecordValue{RecordID: rec.ID, FieldID: fieldID, ValueJSON: models.EncodeValue(v)}
		if err := f.db.Create(&cell).Error; err != nil {
			t.Fatalf("seed record value: %v", err)
		}
	}
	return &rec
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&n).Error; err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	return n
}
