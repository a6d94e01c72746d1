package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"gorm.io/gorm"

	"github.com/gridbase/gridbase/internal/config"
	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/internal/utils"
	"github.com/gridbase/gridbase/pkg/logger"
)

// Seed provisions the default tenant, roles, owner account and a sample
// table on first start. Re-running against a seeded database is a no-op.
func Seed(db *gorm.DB, cfg config.SeedConfig) error {
	if !cfg.Enabled {
		return nil
	}

	var tenants int64
	if err := db.Model(&models.Tenant{}).Count(&tenants).Error; err != nil {
		return err
	}
	if tenants > 0 {
		return nil
	}

	password := cfg.OwnerPassword
	generated := false
	if password == "" {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		password = hex.EncodeToString(buf)
		generated = true
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	tenant := models.Tenant{ID: models.NewID("ten"), Name: "默认空间"}
	owner := models.User{
		ID:            models.NewID("usr"),
		Email:         cfg.OwnerEmail,
		Account:       "admin",
		Name:          "Owner",
		PasswordHash:  hash,
		DefaultTenant: tenant.ID,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		membership := models.Membership{
			ID:       models.NewID("mem"),
			TenantID: tenant.ID,
			UserID:   owner.ID,
			RoleKey:  models.RoleOwner,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		if err := NewRoleService(tx).EnsureBuiltinRoles(tenant.ID); err != nil {
			return err
		}
		return seedSampleData(tx, tenant.ID, cfg.SampleRecords)
	})
	if err != nil {
		return err
	}

	if generated {
		logger.Info().
			Str("email", owner.Email).
			Str("password", password).
			Msg("seeded owner account with generated password")
	} else {
		logger.Info().Str("email", owner.Email).Msg("seeded owner account")
	}
	return nil
}

// seedSampleData creates a demo base and task table with n records.
func seedSampleData(tx *gorm.DB, tenantID string, n int) error {
	base := models.Base{ID: models.NewID("bse"), TenantID: tenantID, Name: "示例项目"}
	if err := tx.Create(&base).Error; err != nil {
		return err
	}
	table := models.Table{ID: models.NewID("tbl"), TenantID: tenantID, BaseID: base.ID, Name: "任务"}
	if err := tx.Create(&table).Error; err != nil {
		return err
	}
	view := models.View{
		ID:       models.NewID("viw"),
		TenantID: tenantID,
		TableID:  table.ID,
		Name:     "表格视图",
		Type:     "grid",
	}
	view.SetConfig(models.DefaultViewConfig())
	if err := tx.Create(&view).Error; err != nil {
		return err
	}

	statusField := models.Field{
		ID: models.NewID("fld"), TenantID: tenantID, TableID: table.ID,
		Name: "状态", Type: models.FieldTypeSingleSelect, SortOrder: 3,
	}
	// Option ids double as the display names so seeded cell values and
	// filter presets stay human readable.
	statusField.SetOptions([]models.FieldOption{
		{ID: "待处理", Name: "待处理", Color: "gray"},
		{ID: "进行中", Name: "进行中", Color: "blue"},
		{ID: "已完成", Name: "已完成", Color: "green"},
	})

	fields := []models.Field{
		{ID: models.NewID("fld"), TenantID: tenantID, TableID: table.ID, Name: "标题", Type: models.FieldTypeText, SortOrder: 1},
		{ID: models.NewID("fld"), TenantID: tenantID, TableID: table.ID, Name: "工时", Type: models.FieldTypeNumber, SortOrder: 2},
		statusField,
		{ID: models.NewID("fld"), TenantID: tenantID, TableID: table.ID, Name: "截止日期", Type: models.FieldTypeDate, SortOrder: 4},
		{ID: models.NewID("fld"), TenantID: tenantID, TableID: table.ID, Name: "已归档", Type: models.FieldTypeCheckbox, SortOrder: 5},
	}
	for i := range fields {
		if err := tx.Create(&fields[i]).Error; err != nil {
			return err
		}
	}

	statuses := []string{"待处理", "进行中", "已完成"}
	for i := 0; i < n; i++ {
		record := models.Record{ID: models.NewID("rec"), TenantID: tenantID, TableID: table.ID}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		cells := []models.RecordValue{
			{RecordID: record.ID, FieldID: fields[0].ID, ValueJSON: models.EncodeValue(fmt.Sprintf("任务 %d", i+1))},
			{RecordID: record.ID, FieldID: fields[1].ID, ValueJSON: models.EncodeValue(float64(i%40 + 1))},
			{RecordID: record.ID, FieldID: fields[2].ID, ValueJSON: models.EncodeValue(statuses[i%len(statuses)])},
			{RecordID: record.ID, FieldID: fields[4].ID, ValueJSON: models.EncodeValue(i%7 == 0)},
		}
		if err := tx.Create(&cells).Error; err != nil {
			return err
		}
	}
	return nil
}
