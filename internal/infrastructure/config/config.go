package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	HTTP       HTTPConfig
	JWT        JWTConfig
	Backend    BackendConfig
	Dispensing DispensingConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Printing   PrintingConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// AllowOrigins is the CORS whitelist; empty rejects cross-origin requests
	AllowOrigins   []string
}

// JWTConfig holds the settings used to verify operator tokens
type JWTConfig struct {
	Secret string
	Issuer string
}

// BackendConfig holds the REST backend collaborator settings
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
	// PageSize is the page size used when listing historical transactions
	PageSize int
	// MaxConcurrency bounds the movement-lines fan-out
	MaxConcurrency int
}

// DispensingConfig holds the allocation policy
type DispensingConfig struct {
	Tolerance            decimal.Decimal
	PrivilegeThreshold   int
	SuperRole            string
	AccessModule         string
	HistoricalCause      string
	LotStrategy          string
	SessionTTL           time.Duration
	PrivilegeCacheTTL    time.Duration
	SubmitIdempotencyTTL time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig holds document storage settings
type StorageConfig struct {
	Provider          string // s3 or local
	Endpoint          string
	Region            string
	Bucket            string
	AccessKeyID       string
	SecretAccessKey   string
	UsePathStyle      bool
	PresignExpiration time.Duration
	LocalDir          string
	LocalBaseURL      string
}

// PrintingConfig holds PDF rendering settings
type PrintingConfig struct {
	Enabled    bool
	ChromePath string
	RemoteURL  string
	Timeout    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ExportInterval    time.Duration
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DISP_ prefix (e.g., DISP_BACKEND_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DISP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("dispensing.tolerance", "0.01")

	tolerance, err := parseDecimal(v.GetString("dispensing.tolerance"))
	if err != nil {
		return nil, fmt.Errorf("dispensing.tolerance: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			AllowOrigins:   v.GetStringSlice("http.allow_origins"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Backend: BackendConfig{
			BaseURL:        v.GetString("backend.base_url"),
			Timeout:        v.GetDuration("backend.timeout"),
			PageSize:       v.GetInt("backend.page_size"),
			MaxConcurrency: v.GetInt("backend.max_concurrency"),
		},
		Dispensing: DispensingConfig{
			Tolerance:            tolerance,
			PrivilegeThreshold:   v.GetInt("dispensing.privilege_threshold"),
			SuperRole:            v.GetString("dispensing.super_role"),
			AccessModule:         v.GetString("dispensing.access_module"),
			HistoricalCause:      v.GetString("dispensing.historical_cause"),
			LotStrategy:          v.GetString("dispensing.lot_strategy"),
			SessionTTL:           v.GetDuration("dispensing.session_ttl"),
			PrivilegeCacheTTL:    v.GetDuration("dispensing.privilege_cache_ttl"),
			SubmitIdempotencyTTL: v.GetDuration("dispensing.submit_idempotency_ttl"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Provider:          v.GetString("storage.provider"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKeyID:       v.GetString("storage.access_key_id"),
			SecretAccessKey:   v.GetString("storage.secret_access_key"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			LocalDir:          v.GetString("storage.local_dir"),
			LocalBaseURL:      v.GetString("storage.local_base_url"),
		},
		Printing: PrintingConfig{
			Enabled:    v.GetBool("printing.enabled"),
			ChromePath: v.GetString("printing.chrome_path"),
			RemoteURL:  v.GetString("printing.remote_url"),
			Timeout:    v.GetDuration("printing.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(raw))
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dispensing-bff"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "erp-backend"
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000/api"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Backend.PageSize == 0 {
		cfg.Backend.PageSize = 100
	}
	if cfg.Backend.MaxConcurrency == 0 {
		cfg.Backend.MaxConcurrency = 8
	}
	if cfg.Dispensing.PrivilegeThreshold == 0 {
		cfg.Dispensing.PrivilegeThreshold = 3
	}
	if cfg.Dispensing.SuperRole == "" {
		cfg.Dispensing.SuperRole = "master"
	}
	if cfg.Dispensing.AccessModule == "" {
		cfg.Dispensing.AccessModule = "WAREHOUSE_TRANSACTIONS"
	}
	if cfg.Dispensing.HistoricalCause == "" {
		cfg.Dispensing.HistoricalCause = "PRODUCTION_ORDER"
	}
	if cfg.Dispensing.LotStrategy == "" {
		cfg.Dispensing.LotStrategy = "fefo"
	}
	if cfg.Dispensing.SessionTTL == 0 {
		cfg.Dispensing.SessionTTL = 8 * time.Hour
	}
	if cfg.Dispensing.PrivilegeCacheTTL == 0 {
		cfg.Dispensing.PrivilegeCacheTTL = 15 * time.Minute
	}
	if cfg.Dispensing.SubmitIdempotencyTTL == 0 {
		cfg.Dispensing.SubmitIdempotencyTTL = 10 * time.Minute
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = "local"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "dispensations"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = "./data/documents"
	}
	if cfg.Printing.Timeout == 0 {
		cfg.Printing.Timeout = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "dispensing-bff"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}
	if c.Backend.PageSize < 0 || c.Backend.MaxConcurrency < 0 {
		return fmt.Errorf("backend.page_size and backend.max_concurrency cannot be negative")
	}
	if c.Dispensing.Tolerance.IsNegative() {
		return fmt.Errorf("dispensing.tolerance cannot be negative")
	}
	if c.Dispensing.PrivilegeThreshold < 0 {
		return fmt.Errorf("dispensing.privilege_threshold cannot be negative")
	}
	switch c.Dispensing.LotStrategy {
	case "fefo", "fifo", "standard":
	default:
		return fmt.Errorf("dispensing.lot_strategy must be one of fefo, fifo, standard; got %q", c.Dispensing.LotStrategy)
	}
	switch c.Storage.Provider {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 provider")
		}
	case "local":
	default:
		return fmt.Errorf("storage.provider must be s3 or local; got %q", c.Storage.Provider)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
