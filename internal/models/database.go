package models

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gridbase/gridbase/internal/config"
	"github.com/gridbase/gridbase/pkg/logger"
)

var db *gorm.DB

// InitDB opens the configured database and runs migrations.
func InitDB(cfg config.DatabaseConfig) error {
	dialector, err := openDialector(cfg)
	if err != nil {
		return err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(gdb); err != nil {
		return err
	}

	db = gdb
	logger.Info().Str("driver", cfg.Driver).Msg("database ready")
	return nil
}

func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return sqlite.Open(cfg.DSN()), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Migrate creates or updates the schema for all entities.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&Tenant{},
		&User{},
		&Membership{},
		&TenantRole{},
		&Base{},
		&Table{},
		&View{},
		&Field{},
		&Record{},
		&RecordValue{},
		&TablePermission{},
		&ViewPermission{},
		&Dashboard{},
		&DashboardWidget{},
		&AuditLog{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	return db
}

// SetDB swaps the shared handle, used by tests.
func SetDB(gdb *gorm.DB) {
	db = gdb
}
