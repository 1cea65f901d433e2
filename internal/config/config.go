// Package config loads the hub's process configuration from environment
// variables, generalizing the teacher's common.SetConfigFromEnvVars
// (common/os.go) reflection-based loader to this domain's nullable quota
// fields and list-valued settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Config is the hub's complete process configuration. Every field carries
// an `env:"KOHAKU_HUB_..."` tag consumed by setFromEnvVars.
type Config struct {
	Mode     string `env:"KOHAKU_HUB_MODE"`
	BaseURL  string `env:"KOHAKU_HUB_BASE_URL"`
	SiteName string `env:"KOHAKU_HUB_SITE_NAME"`
	Workers  int    `env:"KOHAKU_HUB_WORKERS"`

	DBBackend   string `env:"KOHAKU_HUB_DB_BACKEND"`
	DatabaseURL string `env:"KOHAKU_HUB_DATABASE_URL"`
	DatabaseKey string `env:"KOHAKU_HUB_DATABASE_KEY"`

	// DatabaseURLReadonly, when set, gates internal/admin's SQL console —
	// the route refuses to start without a distinct readonly connection.
	DatabaseURLReadonly string `env:"KOHAKU_HUB_DATABASE_URL_READONLY"`

	S3Endpoint  string `env:"KOHAKU_HUB_S3_ENDPOINT"`
	S3Access    string `env:"KOHAKU_HUB_S3_ACCESS_KEY"`
	S3Secret    string `env:"KOHAKU_HUB_S3_SECRET_KEY"`
	S3Bucket    string `env:"KOHAKU_HUB_S3_BUCKET"`
	S3UseSSL    bool   `env:"KOHAKU_HUB_S3_USE_SSL"`
	S3Region    string `env:"KOHAKU_HUB_S3_REGION"`

	LakeFSEndpoint      string `env:"KOHAKU_HUB_LAKEFS_ENDPOINT"`
	LakeFSAccessKey     string `env:"KOHAKU_HUB_LAKEFS_ACCESS_KEY"`
	LakeFSSecretKey     string `env:"KOHAKU_HUB_LAKEFS_SECRET_KEY"`
	LakeFSRepoNamespace string `env:"KOHAKU_HUB_LAKEFS_REPO_NAMESPACE"`

	SessionSecret      string `env:"KOHAKU_HUB_SESSION_SECRET"`
	SessionExpiresDays int    `env:"KOHAKU_HUB_SESSION_EXPIRES_DAYS"`
	AdminSecretToken   string `env:"KOHAKU_HUB_ADMIN_SECRET_TOKEN"`
	AdminEnabled       bool   `env:"KOHAKU_HUB_ADMIN_ENABLED"`

	// Nullable: unset means "unlimited", matching spec.md's *int64 quota
	// semantics; a 0 value would instead mean "no storage allowed".
	QuotaDefaultUserPrivateBytes *int64 `env:"KOHAKU_HUB_QUOTA_DEFAULT_USER_PRIVATE_BYTES"`
	QuotaDefaultUserPublicBytes  *int64 `env:"KOHAKU_HUB_QUOTA_DEFAULT_USER_PUBLIC_BYTES"`
	QuotaDefaultOrgPrivateBytes  *int64 `env:"KOHAKU_HUB_QUOTA_DEFAULT_ORG_PRIVATE_BYTES"`
	QuotaDefaultOrgPublicBytes   *int64 `env:"KOHAKU_HUB_QUOTA_DEFAULT_ORG_PUBLIC_BYTES"`

	LFSThresholdBytes int64 `env:"KOHAKU_HUB_LFS_THRESHOLD_BYTES"`

	FallbackEnabled          bool     `env:"KOHAKU_HUB_FALLBACK_ENABLED"`
	FallbackSources          []string `env:"KOHAKU_HUB_FALLBACK_SOURCES"`
	FallbackCacheTTLSeconds  int64    `env:"KOHAKU_HUB_FALLBACK_CACHE_TTL_SECONDS"`
	FallbackTimeoutSeconds   int64    `env:"KOHAKU_HUB_FALLBACK_TIMEOUT_SECONDS"`

	SMTPHost     string `env:"KOHAKU_HUB_SMTP_HOST"`
	SMTPPort     int    `env:"KOHAKU_HUB_SMTP_PORT"`
	SMTPUsername string `env:"KOHAKU_HUB_SMTP_USERNAME"`
	SMTPPassword string `env:"KOHAKU_HUB_SMTP_PASSWORD"`
	SMTPFrom     string `env:"KOHAKU_HUB_SMTP_FROM"`
	SMTPEnabled  bool   `env:"KOHAKU_HUB_SMTP_ENABLED"`

	RedisURL    string `env:"KOHAKU_HUB_REDIS_URL"`
	RabbitMQURL string `env:"KOHAKU_HUB_RABBITMQ_URL"`

	EnvName string `env:"ENV_NAME"`
}

// New loads and validates a Config from the process environment.
func New() (*Config, error) {
	cfg := &Config{}
	if err := setFromEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = "local"
	}

	if cfg.DBBackend == "" {
		cfg.DBBackend = "sqlite"
	}

	if cfg.SiteName == "" {
		cfg.SiteName = "KohakuHub"
	}

	if cfg.Workers == 0 {
		cfg.Workers = 1
	}

	if cfg.SessionExpiresDays == 0 {
		cfg.SessionExpiresDays = 30
	}

	if cfg.LFSThresholdBytes == 0 {
		cfg.LFSThresholdBytes = 10 * 1024 * 1024 // 10 MiB, matches the HF client default.
	}

	if cfg.FallbackCacheTTLSeconds == 0 {
		cfg.FallbackCacheTTLSeconds = 300
	}

	if cfg.FallbackTimeoutSeconds == 0 {
		cfg.FallbackTimeoutSeconds = 30
	}
}

func (cfg *Config) validate() error {
	if cfg.DBBackend != "sqlite" && cfg.DBBackend != "postgres" {
		return fmt.Errorf("config: KOHAKU_HUB_DB_BACKEND must be sqlite or postgres, got %q", cfg.DBBackend)
	}

	if cfg.Mode != "local" && cfg.Mode != "remote" {
		return fmt.Errorf("config: KOHAKU_HUB_MODE must be local or remote, got %q", cfg.Mode)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("config: KOHAKU_HUB_DATABASE_URL is required")
	}

	if cfg.AdminEnabled && strings.TrimSpace(cfg.AdminSecretToken) == "" {
		return fmt.Errorf("config: KOHAKU_HUB_ADMIN_ENABLED requires KOHAKU_HUB_ADMIN_SECRET_TOKEN")
	}

	return nil
}

var (
	localEnvOnce sync.Once
)

// LoadDotEnvOnce mirrors the teacher's InitLocalEnvConfig: when ENV_NAME is
// "local" (the default), a .env file is loaded into the process exactly
// once, before New() reads the environment.
func LoadDotEnvOnce() {
	localEnvOnce.Do(func() {
		envName := GetenvOrDefault("ENV_NAME", "local")
		if envName != "local" {
			return
		}

		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "config: no .env file found, continuing with process environment")
		}
	})
}
