package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	CORS     CORSConfig     `yaml:"cors"`
	Log      LogConfig      `yaml:"log"`
	Seed     SeedConfig     `yaml:"seed"`
	Audit    AuditConfig    `yaml:"audit"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite, mysql, postgres
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite file
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessExpireMin   int    `yaml:"access_expire_min"`
	RefreshExpireDays int    `yaml:"refresh_expire_days"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

type SeedConfig struct {
	Enabled       bool   `yaml:"enabled"`
	OwnerEmail    string `yaml:"owner_email"`
	OwnerPassword string `yaml:"owner_password"`
	SampleRecords int    `yaml:"sample_records"`
}

type AuditConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	CleanupCron   string `yaml:"cleanup_cron"`
}

// Load reads the YAML config file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required (set jwt.secret or GRIDBASE_JWT_SECRET)")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "gridbase.db",
		},
		JWT: JWTConfig{
			AccessExpireMin:   30,
			RefreshExpireDays: 7,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:5173"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Seed: SeedConfig{
			Enabled:       true,
			OwnerEmail:    "owner@example.com",
			SampleRecords: 2000,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
			CleanupCron:   "0 3 * * *",
		},
	}
}

func applyEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr("GRIDBASE_SERVER_HOST", &cfg.Server.Host)
	setInt("GRIDBASE_SERVER_PORT", &cfg.Server.Port)
	setStr("GRIDBASE_SERVER_MODE", &cfg.Server.Mode)

	setStr("GRIDBASE_DB_DRIVER", &cfg.Database.Driver)
	setStr("GRIDBASE_DB_HOST", &cfg.Database.Host)
	setInt("GRIDBASE_DB_PORT", &cfg.Database.Port)
	setStr("GRIDBASE_DB_USER", &cfg.Database.User)
	setStr("GRIDBASE_DB_PASSWORD", &cfg.Database.Password)
	setStr("GRIDBASE_DB_NAME", &cfg.Database.Name)
	setStr("GRIDBASE_DB_PATH", &cfg.Database.Path)

	setStr("GRIDBASE_JWT_SECRET", &cfg.JWT.Secret)
	setInt("GRIDBASE_JWT_ACCESS_EXPIRE_MIN", &cfg.JWT.AccessExpireMin)
	setInt("GRIDBASE_JWT_REFRESH_EXPIRE_DAYS", &cfg.JWT.RefreshExpireDays)

	if v := os.Getenv("GRIDBASE_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.CORS.AllowOrigins = origins
	}

	setStr("GRIDBASE_LOG_LEVEL", &cfg.Log.Level)
	setStr("GRIDBASE_LOG_FORMAT", &cfg.Log.Format)

	setStr("GRIDBASE_SEED_OWNER_EMAIL", &cfg.Seed.OwnerEmail)
	setStr("GRIDBASE_SEED_OWNER_PASSWORD", &cfg.Seed.OwnerPassword)
	setInt("GRIDBASE_AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays)
}

// DSN builds the driver connection string.
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			d.Host, d.Port, d.User, d.Password, d.Name)
	default:
		return d.Path
	}
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
