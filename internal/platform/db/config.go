package db

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	defaultTimezone       = "Asia/Karachi"
	defaultMaxDutyHours   = 12
	defaultLookbackDays   = 2
	defaultServerAddr     = ":8443"
	jwtSecretEnv          = "ATLAS_JWT_SECRET"
	DefaultConfigFilePath = "config/config.yaml"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Path     string `yaml:"path"` // sqlite のみ
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// DutyConfig は勤務ポリシー。全ユーザ共通の組織タイムゾーンで日付を切る。
// ManualLogLookbackDays は 0（当日のみ）を許すのでポインタで未指定と区別する。
type DutyConfig struct {
	Timezone              string `yaml:"timezone"`
	MaxDutyHours          int    `yaml:"max_duty_hours"`
	ManualLogLookbackDays *int   `yaml:"manual_log_lookback_days"`
}

type Config struct {
	Version     string         `yaml:"version"`
	Mode        string         `yaml:"mode"`
	DB          DatabaseConfig `yaml:"database"`
	Certificate Certs          `yaml:"certificate"`
	Server      ServerConfig   `yaml:"server"`
	Auth        AuthConfig     `yaml:"auth"`
	Duty        DutyConfig     `yaml:"duty"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	cfg.applyDefaults()
	if v := os.Getenv(jwtSecretEnv); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = DriverMySQL
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Duty.Timezone == "" {
		c.Duty.Timezone = defaultTimezone
	}
	if c.Duty.MaxDutyHours == 0 {
		c.Duty.MaxDutyHours = defaultMaxDutyHours
	}
	if c.Duty.ManualLogLookbackDays == nil {
		days := defaultLookbackDays
		c.Duty.ManualLogLookbackDays = &days
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	switch c.DB.Driver {
	case DriverMySQL:
		if c.DB.Host == "" || c.DB.DBName == "" {
			return errors.New("database.host and database.dbname are required for mysql")
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.DB.Driver)
	}
	if c.Duty.MaxDutyHours < 1 || c.Duty.MaxDutyHours > 24 {
		return fmt.Errorf("duty.max_duty_hours must be within 1..24, got %d", c.Duty.MaxDutyHours)
	}
	if c.Duty.ManualLogLookbackDays == nil || *c.Duty.ManualLogLookbackDays < 0 {
		return fmt.Errorf("duty.manual_log_lookback_days must be >= 0")
	}
	if c.Mode == "release" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or %s) is required in release mode", jwtSecretEnv)
	}
	return nil
}
