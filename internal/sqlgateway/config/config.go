package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type DbConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DbName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

// Dsn renders the config as a keyword/value connection string for the pgx
// stdlib driver.
func (c DbConfig) Dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DbName, c.SSLMode)
}

type ConfigParam struct {
	ServerPort string `toml:"server_port"`
	HandleCORS bool   `toml:"handle_cors"`

	// MetadataDb holds TenantDatabase, ProvisionRecord, query history and
	// saved queries. AdminDb is the maintenance connection used only by the
	// provisioning lifecycle to create and drop tenant databases.
	MetadataDb DbConfig `toml:"metadata_db"`
	AdminDb    DbConfig `toml:"admin_db"`

	// Per-tenant pool bounds.
	TenantPoolMaxConns    int    `toml:"tenant_pool_max_conns"`
	TenantAcquireTimeout  string `toml:"tenant_acquire_timeout"`
	StatementTimeout      string `toml:"statement_timeout"`
	LockTimeout           string `toml:"lock_timeout"`
	QueryHistoryLimit     int    `toml:"query_history_limit"`
	TenantDbHost          string `toml:"tenant_db_host"`
	TenantDbPort          int    `toml:"tenant_db_port"`
	TenantDbSSLMode       string `toml:"tenant_db_sslmode"`
	MaskConnectionStrings bool   `toml:"mask_connection_strings"`
}

func (c *ConfigParam) AcquireTimeout() time.Duration {
	return parseDurationOr(c.TenantAcquireTimeout, 5*time.Second)
}

func (c *ConfigParam) QueryTimeout() time.Duration {
	return parseDurationOr(c.StatementTimeout, 15*time.Second)
}

func (c *ConfigParam) LockWaitTimeout() time.Duration {
	return parseDurationOr(c.LockTimeout, 3*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

func LoadConfig(filename string) error {
	if filename == "" {
		cfg = defaultConfig()
		return nil
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	cp := *defaultConfig()
	if _, err := toml.Decode(string(content), &cp); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}
	cfg = &cp
	return nil
}

func defaultConfig() *ConfigParam {
	return &ConfigParam{
		ServerPort: "8210",
		HandleCORS: true,
		MetadataDb: DbConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "gateway_api",
			Password: "abc@123",
			DbName:   "gatewaymeta",
			SSLMode:  "disable",
		},
		AdminDb: DbConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "abc@123",
			DbName:   "postgres",
			SSLMode:  "disable",
		},
		TenantPoolMaxConns:    10,
		TenantAcquireTimeout:  "5s",
		StatementTimeout:      "15s",
		LockTimeout:           "3s",
		QueryHistoryLimit:     100,
		TenantDbHost:          "localhost",
		TenantDbPort:          5432,
		TenantDbSSLMode:       "disable",
		MaskConnectionStrings: true,
	}
}

func init() {
	if err := LoadConfig(""); err != nil {
		panic(err)
	}
}
