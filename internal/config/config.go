package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Environment    string               `yaml:"environment"`
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Secrets        SecretsConfig        `yaml:"secrets"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Settlement     SettlementConfig     `yaml:"settlement"`
	Dedup          DedupConfig          `yaml:"dedup"`
	Auth           AuthConfig           `yaml:"auth"`
	Logger         LoggerConfig         `yaml:"logger"`
}

// ServerConfig holds HTTP, health and metrics listener configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	Port            int           `yaml:"port"`
	HealthPort      int           `yaml:"health_port"`
	MetricsPort     int           `yaml:"metrics_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	// PasswordSecretPath, when set, resolves Password through the secrets backend
	PasswordSecretPath string `yaml:"password_secret_path"`
	Port               int    `yaml:"port"`
	MaxConns           int32  `yaml:"max_conns"`
	MinConns           int32  `yaml:"min_conns"`
}

// RedisConfig holds the dedup store connection. Empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"key_prefix"`
	DB        int    `yaml:"db"`
}

// SecretsConfig selects the secrets backend
type SecretsConfig struct {
	Backend        string        `yaml:"backend"` // env, aws, vault, gcp
	BaseDir        string        `yaml:"base_dir"`
	AWSRegion      string        `yaml:"aws_region"`
	AWSProfile     string        `yaml:"aws_profile"`
	AWSEndpoint    string        `yaml:"aws_endpoint"`
	VaultAddress   string        `yaml:"vault_address"`
	VaultAuth      string        `yaml:"vault_auth"`
	VaultToken     string        `yaml:"vault_token"`
	VaultRoleID    string        `yaml:"vault_role_id"`
	VaultSecretID  string        `yaml:"vault_secret_id"`
	VaultMount     string        `yaml:"vault_mount"`
	VaultKVVersion string        `yaml:"vault_kv_version"`
	GCPProjectID   string        `yaml:"gcp_project_id"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// ReconciliationConfig holds matching thresholds (minor units) and parallelism
type ReconciliationConfig struct {
	FeeMismatchMin    int64 `yaml:"fee_mismatch_min"`
	FeeMismatchMax    int64 `yaml:"fee_mismatch_max"`
	RoundingTolerance int64 `yaml:"rounding_tolerance"`
	WindowDays        int   `yaml:"window_days"`
	Workers           int   `yaml:"workers"`
}

// SettlementConfig holds deduction rates in percent and the tier seed file
type SettlementConfig struct {
	GSTPercent     decimal.Decimal `yaml:"gst_percent"`
	TDSPercent     decimal.Decimal `yaml:"tds_percent"`
	ReservePercent decimal.Decimal `yaml:"reserve_percent"`
	TiersFile      string          `yaml:"tiers_file"`
}

// DedupConfig holds the bank-credit delivery dedup policy
type DedupConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AuthConfig holds shared secrets for cron triggers and inbound webhooks
type AuthConfig struct {
	CronSecret        string `yaml:"cron_secret"`
	CronSecretPath    string `yaml:"cron_secret_path"`
	WebhookSecret     string `yaml:"webhook_secret"`
	WebhookSecretPath string `yaml:"webhook_secret_path"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			HealthPort:      50051,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  100,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "settlement_recon",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		Redis: RedisConfig{KeyPrefix: "settlement-recon"},
		Secrets: SecretsConfig{
			Backend:        "env",
			VaultAuth:      "token",
			VaultMount:     "secret",
			VaultKVVersion: "v2",
			CacheTTL:       5 * time.Minute,
		},
		Reconciliation: ReconciliationConfig{
			FeeMismatchMin:    200,
			FeeMismatchMax:    500,
			RoundingTolerance: 1,
			WindowDays:        2,
			Workers:           4,
		},
		Settlement: SettlementConfig{
			GSTPercent:     decimal.NewFromInt(18),
			TDSPercent:     decimal.NewFromInt(1),
			ReservePercent: decimal.NewFromInt(5),
		},
		Dedup: DedupConfig{
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Logger: LoggerConfig{Level: "info"},
	}
}

// LoadFromEnv builds configuration from defaults, the optional YAML file named
// by CONFIG_FILE, then environment variables, each layer overriding the last.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.HealthPort = getEnvAsInt("HEALTH_PORT", c.Server.HealthPort)
	c.Server.MetricsPort = getEnvAsInt("METRICS_PORT", c.Server.MetricsPort)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.CORSOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", c.Server.CORSOrigins)
	c.Server.RateLimitRPS = getEnvAsFloat("RATE_LIMIT_RPS", c.Server.RateLimitRPS)
	c.Server.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", c.Server.RateLimitBurst)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.PasswordSecretPath = getEnv("DB_PASSWORD_SECRET_PATH", c.Database.PasswordSecretPath)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(c.Database.MaxConns)))
	c.Database.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", int(c.Database.MinConns)))

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.KeyPrefix = getEnv("REDIS_KEY_PREFIX", c.Redis.KeyPrefix)

	c.Secrets.Backend = getEnv("SECRETS_BACKEND", c.Secrets.Backend)
	c.Secrets.BaseDir = getEnv("SECRETS_DIR", c.Secrets.BaseDir)
	c.Secrets.AWSRegion = getEnv("AWS_REGION", c.Secrets.AWSRegion)
	c.Secrets.AWSProfile = getEnv("AWS_PROFILE", c.Secrets.AWSProfile)
	c.Secrets.AWSEndpoint = getEnv("AWS_SECRETS_ENDPOINT", c.Secrets.AWSEndpoint)
	c.Secrets.VaultAddress = getEnv("VAULT_ADDR", c.Secrets.VaultAddress)
	c.Secrets.VaultAuth = getEnv("VAULT_AUTH_METHOD", c.Secrets.VaultAuth)
	c.Secrets.VaultToken = getEnv("VAULT_TOKEN", c.Secrets.VaultToken)
	c.Secrets.VaultRoleID = getEnv("VAULT_ROLE_ID", c.Secrets.VaultRoleID)
	c.Secrets.VaultSecretID = getEnv("VAULT_SECRET_ID", c.Secrets.VaultSecretID)
	c.Secrets.VaultMount = getEnv("VAULT_MOUNT", c.Secrets.VaultMount)
	c.Secrets.VaultKVVersion = getEnv("VAULT_KV_VERSION", c.Secrets.VaultKVVersion)
	c.Secrets.GCPProjectID = getEnv("GCP_PROJECT_ID", c.Secrets.GCPProjectID)
	c.Secrets.CacheTTL = getEnvAsDuration("SECRET_CACHE_TTL", c.Secrets.CacheTTL)

	c.Reconciliation.FeeMismatchMin = getEnvAsInt64("RECON_FEE_MISMATCH_MIN", c.Reconciliation.FeeMismatchMin)
	c.Reconciliation.FeeMismatchMax = getEnvAsInt64("RECON_FEE_MISMATCH_MAX", c.Reconciliation.FeeMismatchMax)
	c.Reconciliation.RoundingTolerance = getEnvAsInt64("RECON_ROUNDING_TOLERANCE", c.Reconciliation.RoundingTolerance)
	c.Reconciliation.WindowDays = getEnvAsInt("RECON_WINDOW_DAYS", c.Reconciliation.WindowDays)
	c.Reconciliation.Workers = getEnvAsInt("RECON_WORKERS", c.Reconciliation.Workers)

	var err error
	if c.Settlement.GSTPercent, err = getEnvAsDecimal("SETTLEMENT_GST_PERCENT", c.Settlement.GSTPercent); err != nil {
		return err
	}
	if c.Settlement.TDSPercent, err = getEnvAsDecimal("SETTLEMENT_TDS_PERCENT", c.Settlement.TDSPercent); err != nil {
		return err
	}
	if c.Settlement.ReservePercent, err = getEnvAsDecimal("SETTLEMENT_RESERVE_PERCENT", c.Settlement.ReservePercent); err != nil {
		return err
	}
	c.Settlement.TiersFile = getEnv("TIERS_FILE", c.Settlement.TiersFile)

	c.Dedup.TTL = getEnvAsDuration("DEDUP_TTL", c.Dedup.TTL)
	c.Dedup.SweepInterval = getEnvAsDuration("DEDUP_SWEEP_INTERVAL", c.Dedup.SweepInterval)

	c.Auth.CronSecret = getEnv("CRON_SECRET", c.Auth.CronSecret)
	c.Auth.CronSecretPath = getEnv("CRON_SECRET_PATH", c.Auth.CronSecretPath)
	c.Auth.WebhookSecret = getEnv("WEBHOOK_SECRET", c.Auth.WebhookSecret)
	c.Auth.WebhookSecretPath = getEnv("WEBHOOK_SECRET_PATH", c.Auth.WebhookSecretPath)

	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)
	c.Logger.Development = getEnvAsBool("LOG_DEVELOPMENT", c.Logger.Development)
	return nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	r := c.Reconciliation
	if r.FeeMismatchMin < 0 || r.FeeMismatchMax <= r.FeeMismatchMin {
		return fmt.Errorf("fee mismatch band (%d, %d] is empty", r.FeeMismatchMin, r.FeeMismatchMax)
	}
	if r.RoundingTolerance < 0 || r.RoundingTolerance >= r.FeeMismatchMin {
		return fmt.Errorf("rounding tolerance %d must be below the fee band", r.RoundingTolerance)
	}
	if r.WindowDays < 0 {
		return fmt.Errorf("RECON_WINDOW_DAYS must not be negative")
	}
	if r.Workers < 1 {
		return fmt.Errorf("RECON_WORKERS must be at least 1")
	}

	s := c.Settlement
	for name, v := range map[string]decimal.Decimal{"gst": s.GSTPercent, "tds": s.TDSPercent, "reserve": s.ReservePercent} {
		if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s percent %s out of range", name, v)
		}
	}

	if c.Dedup.TTL <= 0 {
		return fmt.Errorf("DEDUP_TTL must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS exceeds DB_MAX_CONNS")
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ConnectionString returns a PostgreSQL URL
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Rates are money-affecting, so a malformed value is an error rather than a silent default
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}
