package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Scheduler SchedulerConfig
	Effect    EffectConfig
	Hosting   HostingConfig
	ERP       ERPConfig
	Fleet     FleetConfig
	Chat      ChatConfig
	CRM       CRMConfig
	Influx    InfluxConfig
	Storage   StorageConfig
	Renderer  RendererConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty host disables Redis; the
// idempotency store and job locks then stay in process.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	TrustedProxies    []string
	// Headers set by the identity proxy in front of the API
	UsernameHeader string
	RolesHeader    string
	// Swagger UI; AllowedIPs holds addresses or CIDRs, empty allows everyone
	SwaggerEnabled    bool
	SwaggerAllowedIPs []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
	ProfilerEnabled   bool
	ProfilerAddress   string // Pyroscope server
}

// SchedulerConfig holds the job schedules
type SchedulerConfig struct {
	Enabled             bool
	NodeCheckSchedule   string
	OnlineCheckSchedule string
	JobTimeout          time.Duration
	MaxConcurrentJobs   int
	LockTTL             time.Duration
}

// EffectConfig holds the side effect processor configuration
type EffectConfig struct {
	ProcessorEnabled bool
	BatchSize        int
	PollInterval     time.Duration
	Concurrency      int
	ExecuteTimeout   time.Duration
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
	IdempotencyTTL   time.Duration
}

// HostingConfig holds the node order rules
type HostingConfig struct {
	RequiredTokenCount int64
	OnlineAfter        time.Duration
	DocumentSecret     string
	SignFlow           string
	KYCFlow            string
}

// ERPConfig holds the ERP JSON-RPC client settings
type ERPConfig struct {
	URL       string
	Database  string
	Username  string
	Password  string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	// Products maps a power socket type to the ERP product of a hosted node
	Products map[string]int64
}

// FleetConfig holds the fleet orchestrator client settings
type FleetConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	RateLimit    float64
	Concurrency  int
}

// ChatConfig holds the chat platform client settings
type ChatConfig struct {
	URL          string
	APIKey       string
	SupportEmail string
	Timeout      time.Duration
	RateLimit    float64
}

// CRMConfig holds the CRM client settings
type CRMConfig struct {
	URL    string
	APIKey string
	// AdminID is the CRM admin that emails to users are sent from
	AdminID   string
	Timeout   time.Duration
	RateLimit float64
}

// InfluxConfig holds the time-series store settings
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// StorageConfig holds the S3 document store settings
type StorageConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// RendererConfig holds the PDF renderer settings
type RendererConfig struct {
	ChromeURL string // remote Chrome DevTools endpoint; empty starts a local browser
	Timeout   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with HOST_ prefix (e.g., HOST_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/hostingd")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("HOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			UsernameHeader:    v.GetString("http.username_header"),
			RolesHeader:       v.GetString("http.roles_header"),
			SwaggerEnabled:    v.GetBool("http.swagger_enabled"),
			SwaggerAllowedIPs: v.GetStringSlice("http.swagger_allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			ProfilerAddress:   v.GetString("telemetry.profiler_address"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			NodeCheckSchedule:   v.GetString("scheduler.node_check_schedule"),
			OnlineCheckSchedule: v.GetString("scheduler.online_check_schedule"),
			JobTimeout:          v.GetDuration("scheduler.job_timeout"),
			MaxConcurrentJobs:   v.GetInt("scheduler.max_concurrent_jobs"),
			LockTTL:             v.GetDuration("scheduler.lock_ttl"),
		},
		Effect: EffectConfig{
			ProcessorEnabled: v.GetBool("effect.processor_enabled"),
			BatchSize:        v.GetInt("effect.batch_size"),
			PollInterval:     v.GetDuration("effect.poll_interval"),
			Concurrency:      v.GetInt("effect.concurrency"),
			ExecuteTimeout:   v.GetDuration("effect.execute_timeout"),
			CleanupInterval:  v.GetDuration("effect.cleanup_interval"),
			CleanupRetention: v.GetDuration("effect.cleanup_retention"),
			IdempotencyTTL:   v.GetDuration("effect.idempotency_ttl"),
		},
		Hosting: HostingConfig{
			RequiredTokenCount: v.GetInt64("hosting.required_token_count"),
			OnlineAfter:        v.GetDuration("hosting.online_after"),
			DocumentSecret:     v.GetString("hosting.document_secret"),
			SignFlow:           v.GetString("hosting.sign_flow"),
			KYCFlow:            v.GetString("hosting.kyc_flow"),
		},
		ERP: ERPConfig{
			URL:       v.GetString("erp.url"),
			Database:  v.GetString("erp.database"),
			Username:  v.GetString("erp.username"),
			Password:  v.GetString("erp.password"),
			Timeout:   v.GetDuration("erp.timeout"),
			RateLimit: v.GetFloat64("erp.rate_limit"),
			Products:  productMap(v.GetStringMap("erp.products")),
		},
		Fleet: FleetConfig{
			URL:          v.GetString("fleet.url"),
			ClientID:     v.GetString("fleet.client_id"),
			ClientSecret: v.GetString("fleet.client_secret"),
			Timeout:      v.GetDuration("fleet.timeout"),
			RateLimit:    v.GetFloat64("fleet.rate_limit"),
			Concurrency:  v.GetInt("fleet.concurrency"),
		},
		Chat: ChatConfig{
			URL:          v.GetString("chat.url"),
			APIKey:       v.GetString("chat.api_key"),
			SupportEmail: v.GetString("chat.support_email"),
			Timeout:      v.GetDuration("chat.timeout"),
			RateLimit:    v.GetFloat64("chat.rate_limit"),
		},
		CRM: CRMConfig{
			URL:       v.GetString("crm.url"),
			APIKey:    v.GetString("crm.api_key"),
			AdminID:   v.GetString("crm.admin_id"),
			Timeout:   v.GetDuration("crm.timeout"),
			RateLimit: v.GetFloat64("crm.rate_limit"),
		},
		Influx: InfluxConfig{
			URL:    v.GetString("influx.url"),
			Token:  v.GetString("influx.token"),
			Org:    v.GetString("influx.org"),
			Bucket: v.GetString("influx.bucket"),
		},
		Storage: StorageConfig{
			Endpoint:       v.GetString("storage.endpoint"),
			Region:         v.GetString("storage.region"),
			Bucket:         v.GetString("storage.bucket"),
			AccessKey:      v.GetString("storage.access_key"),
			SecretKey:      v.GetString("storage.secret_key"),
			ForcePathStyle: v.GetBool("storage.force_path_style"),
		},
		Renderer: RendererConfig{
			ChromeURL: v.GetString("renderer.chrome_url"),
			Timeout:   v.GetDuration("renderer.timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// productMap converts the [erp.products] table; viper lower-cases keys so sockets
// are stored upper-cased.
func productMap(raw map[string]any) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for socket, v := range raw {
		switch id := v.(type) {
		case int64:
			out[strings.ToUpper(socket)] = id
		case int:
			out[strings.ToUpper(socket)] = int64(id)
		case float64:
			out[strings.ToUpper(socket)] = int64(id)
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "hostingd"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "hosting"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
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
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 20 << 20 // imported agreements arrive as data URLs
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.UsernameHeader == "" {
		cfg.HTTP.UsernameHeader = "X-Auth-Username"
	}
	if cfg.HTTP.RolesHeader == "" {
		cfg.HTTP.RolesHeader = "X-Auth-Roles"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "hostingd"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Scheduler.NodeCheckSchedule == "" {
		cfg.Scheduler.NodeCheckSchedule = "@every 5m"
	}
	if cfg.Scheduler.OnlineCheckSchedule == "" {
		cfg.Scheduler.OnlineCheckSchedule = "@hourly"
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 2
	}
	if cfg.Scheduler.LockTTL == 0 {
		cfg.Scheduler.LockTTL = 15 * time.Minute
	}
	if cfg.Effect.BatchSize == 0 {
		cfg.Effect.BatchSize = 100
	}
	if cfg.Effect.PollInterval == 0 {
		cfg.Effect.PollInterval = 5 * time.Second
	}
	if cfg.Effect.Concurrency == 0 {
		cfg.Effect.Concurrency = 4
	}
	if cfg.Effect.ExecuteTimeout == 0 {
		cfg.Effect.ExecuteTimeout = 2 * time.Minute
	}
	if cfg.Effect.CleanupInterval == 0 {
		cfg.Effect.CleanupInterval = time.Hour
	}
	if cfg.Effect.CleanupRetention == 0 {
		cfg.Effect.CleanupRetention = 7 * 24 * time.Hour
	}
	if cfg.Effect.IdempotencyTTL == 0 {
		cfg.Effect.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.Hosting.RequiredTokenCount == 0 {
		cfg.Hosting.RequiredTokenCount = 120
	}
	if cfg.Hosting.OnlineAfter == 0 {
		cfg.Hosting.OnlineAfter = 14 * 24 * time.Hour
	}
	if cfg.Hosting.SignFlow == "" {
		cfg.Hosting.SignFlow = "sign_hosting_agreement"
	}
	if cfg.Hosting.KYCFlow == "" {
		cfg.Hosting.KYCFlow = "kyc"
	}
	if cfg.ERP.Timeout == 0 {
		cfg.ERP.Timeout = 30 * time.Second
	}
	if cfg.ERP.RateLimit == 0 {
		cfg.ERP.RateLimit = 5
	}
	if cfg.Fleet.Timeout == 0 {
		cfg.Fleet.Timeout = 30 * time.Second
	}
	if cfg.Fleet.RateLimit == 0 {
		cfg.Fleet.RateLimit = 10
	}
	if cfg.Fleet.Concurrency == 0 {
		cfg.Fleet.Concurrency = 8
	}
	if cfg.Chat.Timeout == 0 {
		cfg.Chat.Timeout = 15 * time.Second
	}
	if cfg.Chat.RateLimit == 0 {
		cfg.Chat.RateLimit = 5
	}
	if cfg.CRM.Timeout == 0 {
		cfg.CRM.Timeout = 15 * time.Second
	}
	if cfg.CRM.RateLimit == 0 {
		cfg.CRM.RateLimit = 2
	}
	if cfg.Influx.Bucket == "" {
		cfg.Influx.Bucket = "nodes"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Effect.Concurrency <= 0 {
		return fmt.Errorf("effect.concurrency must be positive")
	}
	if c.Hosting.RequiredTokenCount < 0 {
		return fmt.Errorf("hosting.required_token_count cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if len(c.Hosting.DocumentSecret) < 32 {
			return fmt.Errorf("hosting.document_secret must be at least 32 characters in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address, or "" when Redis is not configured
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
