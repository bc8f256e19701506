package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yukikurage/kpi-management-api/internal/constants"
)

type Config struct {
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPath        string
	RedisHost     string
	RedisPort     string
	SessionSecret string
	GinMode       string
	HTTPAddr      string
	LogLevel      string

	ApprovalTokenSecret string
	ApprovalTokenTTL    time.Duration
	PublicBaseURL       string

	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	BootstrapAdminUsername string
	BootstrapAdminPassword string
}

var defaults = map[string]any{
	"DB_DRIVER":                "mysql",
	"DB_HOST":                  "localhost",
	"DB_PORT":                  "3306",
	"DB_USER":                  "kpiuser",
	"DB_PASSWORD":              "kpipassword",
	"DB_NAME":                  "kpi_management",
	"DB_PATH":                  "kpi.db",
	"REDIS_HOST":               "localhost",
	"REDIS_PORT":               "6379",
	"SESSION_SECRET":           "default-secret-key-change-me",
	"GIN_MODE":                 "debug",
	"HTTP_ADDR":                ":8080",
	"LOG_LEVEL":                "info",
	"APPROVAL_TOKEN_SECRET":    "default-approval-secret-change-me",
	"APPROVAL_TOKEN_TTL":       constants.DefaultApprovalTokenTTL,
	"PUBLIC_BASE_URL":          "http://localhost:8080",
	"NOTIFY_WEBHOOK_URL":       "",
	"NOTIFY_TIMEOUT":           5 * time.Second,
	"BOOTSTRAP_ADMIN_USERNAME": "",
	"BOOTSTRAP_ADMIN_PASSWORD": "",
}

// Load reads configuration from the environment and, when configFile is not
// empty, from that file. Environment variables win over file values.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		DBDriver:               strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:                 v.GetString("DB_HOST"),
		DBPort:                 v.GetString("DB_PORT"),
		DBUser:                 v.GetString("DB_USER"),
		DBPassword:             v.GetString("DB_PASSWORD"),
		DBName:                 v.GetString("DB_NAME"),
		DBPath:                 v.GetString("DB_PATH"),
		RedisHost:              v.GetString("REDIS_HOST"),
		RedisPort:              v.GetString("REDIS_PORT"),
		SessionSecret:          v.GetString("SESSION_SECRET"),
		GinMode:                v.GetString("GIN_MODE"),
		HTTPAddr:               v.GetString("HTTP_ADDR"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		ApprovalTokenSecret:    v.GetString("APPROVAL_TOKEN_SECRET"),
		ApprovalTokenTTL:       v.GetDuration("APPROVAL_TOKEN_TTL"),
		PublicBaseURL:          strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		NotifyWebhookURL:       v.GetString("NOTIFY_WEBHOOK_URL"),
		NotifyTimeout:          v.GetDuration("NOTIFY_TIMEOUT"),
		BootstrapAdminUsername: strings.TrimSpace(v.GetString("BOOTSTRAP_ADMIN_USERNAME")),
		BootstrapAdminPassword: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want mysql, postgres or sqlite)", c.DBDriver)
	}
	if c.ApprovalTokenTTL <= 0 {
		return fmt.Errorf("APPROVAL_TOKEN_TTL must be positive")
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 5 * time.Second
	}
	return nil
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}
