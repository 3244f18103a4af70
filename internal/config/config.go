package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	S3          S3Config
	Log         LogConfig
	Parser      ParserConfig
	CORS        CORSConfig
	Pipeline    PipelineConfig
	Resilience  ResilienceConfig
	Finance     FinanceConfig
	Consolidate ConsolidateConfig
	Vocabulary  VocabularyConfig
	Email       EmailConfig
	Events      EventsConfig
	Store       StoreConfig
}

// EmailConfig holds reviewer notification settings.
type EmailConfig struct {
	Provider       string   `mapstructure:"provider"`
	Region         string   `mapstructure:"region"`
	FromAddress    string   `mapstructure:"from_address"`
	FromName       string   `mapstructure:"from_name"`
	FrontendURL    string   `mapstructure:"frontend_url"`
	ReviewerEmails []string `mapstructure:"reviewer_emails"`
}

// EventsConfig holds batch lifecycle event publishing settings.
type EventsConfig struct {
	Provider      string `mapstructure:"provider"`
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// StoreConfig selects the persistence backends.
type StoreConfig struct {
	Driver  string `mapstructure:"driver"`
	Storage string `mapstructure:"storage"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ParserProviderConfig holds settings for a single LLM parser provider.
type ParserProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ParserConfig holds LLM document parser settings with multi-provider support.
type ParserConfig struct {
	// Legacy flat fields, used when no primary provider is named.
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`

	Primary   ParserProviderConfig `mapstructure:"primary"`
	Secondary ParserProviderConfig `mapstructure:"secondary"`
	Tertiary  ParserProviderConfig `mapstructure:"tertiary"`
}

// PrimaryConfig returns the primary parser provider config, falling back to legacy flat fields.
func (p *ParserConfig) PrimaryConfig() *ParserProviderConfig {
	if p.Primary.Provider != "" {
		return &p.Primary
	}
	return &ParserProviderConfig{
		Provider:     p.Provider,
		APIKey:       p.APIKey,
		DefaultModel: p.DefaultModel,
		MaxRetries:   p.MaxRetries,
		TimeoutSecs:  p.TimeoutSecs,
	}
}

// SecondaryConfig returns the secondary parser provider config, or nil if not configured.
func (p *ParserConfig) SecondaryConfig() *ParserProviderConfig {
	if p.Secondary.Provider != "" {
		return &p.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary parser provider config, or nil if not configured.
func (p *ParserConfig) TertiaryConfig() *ParserProviderConfig {
	if p.Tertiary.Provider != "" {
		return &p.Tertiary
	}
	return nil
}

// Chain returns the configured providers in fallback order.
func (p *ParserConfig) Chain() []*ParserProviderConfig {
	chain := []*ParserProviderConfig{p.PrimaryConfig()}
	if s := p.SecondaryConfig(); s != nil {
		chain = append(chain, s)
	}
	if t := p.TertiaryConfig(); t != nil {
		chain = append(chain, t)
	}
	return chain
}

// PipelineConfig holds classification, banding and worker settings.
type PipelineConfig struct {
	Concurrency         int     `mapstructure:"concurrency"`
	ClassifierThreshold float64 `mapstructure:"classifier_threshold"`
	BandGreen           float64 `mapstructure:"band_green"`
	BandYellow          float64 `mapstructure:"band_yellow"`
	TextModeMinChars    int     `mapstructure:"text_mode_min_chars"`
	ModelRateLimit      float64 `mapstructure:"model_rate_limit"`
	ModelRateBurst      int     `mapstructure:"model_rate_burst"`
}

// ResilienceConfig holds retry and circuit breaker settings for model calls.
type ResilienceConfig struct {
	RetryMaxAttempts        int           `mapstructure:"retry_max_attempts"`
	RetryInitialBackoff     time.Duration `mapstructure:"retry_initial_backoff"`
	RetryMaxBackoff         time.Duration `mapstructure:"retry_max_backoff"`
	RetryMultiplier         float64       `mapstructure:"retry_multiplier"`
	BreakerEnabled          bool          `mapstructure:"breaker_enabled"`
	BreakerMinRequests      uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio     float64       `mapstructure:"breaker_failure_ratio"`
	BreakerOpenTimeout      time.Duration `mapstructure:"breaker_open_timeout"`
	BreakerHalfOpenMaxCalls uint32        `mapstructure:"breaker_half_open_max_calls"`
}

// FinanceConfig holds cost allocation settings.
type FinanceConfig struct {
	WeightCoverageThreshold float64 `mapstructure:"weight_coverage_threshold"`
	DefaultInsuranceRate    float64 `mapstructure:"default_insurance_rate"`
}

// ConsolidateConfig holds BL/invoice consolidation settings.
type ConsolidateConfig struct {
	WeightTolerance float64 `mapstructure:"weight_tolerance"`
}

// VocabularyConfig points at an optional vocabulary file merged over the embedded one.
type VocabularyConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`

	// MigrationsPath is a golang-migrate source URL.
	MigrationsPath string `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the AFORO_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AFORO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "aforo")
	v.SetDefault("db.password", "aforo_secret")
	v.SetDefault("db.name", "aforo_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("db.migrations_path", "file://db/migrations")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "aforo-documents")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 50)
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.classifier_threshold", 0.7)
	v.SetDefault("pipeline.band_green", 0.9)
	v.SetDefault("pipeline.band_yellow", 0.6)
	v.SetDefault("pipeline.text_mode_min_chars", 150)
	v.SetDefault("pipeline.model_rate_limit", 2.0)
	v.SetDefault("pipeline.model_rate_burst", 4)

	// Resilience defaults
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_initial_backoff", "500ms")
	v.SetDefault("resilience.retry_max_backoff", "8s")
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.breaker_enabled", true)
	v.SetDefault("resilience.breaker_min_requests", 10)
	v.SetDefault("resilience.breaker_failure_ratio", 0.5)
	v.SetDefault("resilience.breaker_open_timeout", "30s")
	v.SetDefault("resilience.breaker_half_open_max_calls", 2)

	v.SetDefault("finance.weight_coverage_threshold", 0.0)
	v.SetDefault("finance.default_insurance_rate", 0.015)
	v.SetDefault("consolidate.weight_tolerance", 0.02)
	v.SetDefault("vocabulary.path", "")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@aforo.local")
	v.SetDefault("email.from_name", "Aforo")
	v.SetDefault("email.frontend_url", "http://localhost:3000")
	v.SetDefault("email.reviewer_emails", "")

	// Events defaults
	v.SetDefault("events.provider", "noop")
	v.SetDefault("events.nats_url", "nats://localhost:4222")
	v.SetDefault("events.subject_prefix", "aforo.batch")

	// Store defaults
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.storage", "memory")

	// Parser defaults (legacy flat)
	v.SetDefault("parser.provider", "claude")
	v.SetDefault("parser.api_key", "")
	v.SetDefault("parser.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("parser.max_retries", 2)
	v.SetDefault("parser.timeout_secs", 120)

	// Parser primary/secondary/tertiary defaults
	for _, slot := range []string{"primary", "secondary", "tertiary"} {
		v.SetDefault("parser."+slot+".provider", "")
		v.SetDefault("parser."+slot+".api_key", "")
		v.SetDefault("parser."+slot+".default_model", "")
		v.SetDefault("parser."+slot+".max_retries", 2)
		v.SetDefault("parser."+slot+".timeout_secs", 120)
	}

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                            "AFORO_SERVER_PORT",
		"server.read_timeout":                    "AFORO_SERVER_READ_TIMEOUT",
		"server.write_timeout":                   "AFORO_SERVER_WRITE_TIMEOUT",
		"server.environment":                     "AFORO_SERVER_ENVIRONMENT",
		"db.host":                                "AFORO_DB_HOST",
		"db.port":                                "AFORO_DB_PORT",
		"db.user":                                "AFORO_DB_USER",
		"db.password":                            "AFORO_DB_PASSWORD",
		"db.name":                                "AFORO_DB_NAME",
		"db.sslmode":                             "AFORO_DB_SSLMODE",
		"db.max_open":                            "AFORO_DB_MAX_OPEN",
		"db.max_idle":                            "AFORO_DB_MAX_IDLE",
		"db.migrations_path":                     "AFORO_DB_MIGRATIONS_PATH",
		"s3.region":                              "AFORO_S3_REGION",
		"s3.bucket":                              "AFORO_S3_BUCKET",
		"s3.endpoint":                            "AFORO_S3_ENDPOINT",
		"s3.access_key":                          "AFORO_S3_ACCESS_KEY",
		"s3.secret_key":                          "AFORO_S3_SECRET_KEY",
		"s3.max_file_size_mb":                    "AFORO_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":                      "AFORO_S3_PRESIGN_EXPIRY",
		"log.level":                              "AFORO_LOG_LEVEL",
		"log.format":                             "AFORO_LOG_FORMAT",
		"cors.allowed_origins":                   "AFORO_CORS_ALLOWED_ORIGINS",
		"pipeline.concurrency":                   "AFORO_PIPELINE_CONCURRENCY",
		"pipeline.classifier_threshold":          "AFORO_PIPELINE_CLASSIFIER_THRESHOLD",
		"pipeline.band_green":                    "AFORO_PIPELINE_BAND_GREEN",
		"pipeline.band_yellow":                   "AFORO_PIPELINE_BAND_YELLOW",
		"pipeline.text_mode_min_chars":           "AFORO_PIPELINE_TEXT_MODE_MIN_CHARS",
		"pipeline.model_rate_limit":              "AFORO_PIPELINE_MODEL_RATE_LIMIT",
		"pipeline.model_rate_burst":              "AFORO_PIPELINE_MODEL_RATE_BURST",
		"resilience.retry_max_attempts":          "AFORO_RESILIENCE_RETRY_MAX_ATTEMPTS",
		"resilience.retry_initial_backoff":       "AFORO_RESILIENCE_RETRY_INITIAL_BACKOFF",
		"resilience.retry_max_backoff":           "AFORO_RESILIENCE_RETRY_MAX_BACKOFF",
		"resilience.retry_multiplier":            "AFORO_RESILIENCE_RETRY_MULTIPLIER",
		"resilience.breaker_enabled":             "AFORO_RESILIENCE_BREAKER_ENABLED",
		"resilience.breaker_min_requests":        "AFORO_RESILIENCE_BREAKER_MIN_REQUESTS",
		"resilience.breaker_failure_ratio":       "AFORO_RESILIENCE_BREAKER_FAILURE_RATIO",
		"resilience.breaker_open_timeout":        "AFORO_RESILIENCE_BREAKER_OPEN_TIMEOUT",
		"resilience.breaker_half_open_max_calls": "AFORO_RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS",
		"finance.weight_coverage_threshold":      "AFORO_FINANCE_WEIGHT_COVERAGE_THRESHOLD",
		"finance.default_insurance_rate":         "AFORO_FINANCE_DEFAULT_INSURANCE_RATE",
		"consolidate.weight_tolerance":           "AFORO_CONSOLIDATE_WEIGHT_TOLERANCE",
		"vocabulary.path":                        "AFORO_VOCABULARY_PATH",
		"email.provider":                         "AFORO_EMAIL_PROVIDER",
		"email.region":                           "AFORO_EMAIL_REGION",
		"email.from_address":                     "AFORO_EMAIL_FROM_ADDRESS",
		"email.from_name":                        "AFORO_EMAIL_FROM_NAME",
		"email.frontend_url":                     "AFORO_EMAIL_FRONTEND_URL",
		"email.reviewer_emails":                  "AFORO_EMAIL_REVIEWER_EMAILS",
		"events.provider":                        "AFORO_EVENTS_PROVIDER",
		"events.nats_url":                        "AFORO_EVENTS_NATS_URL",
		"events.subject_prefix":                  "AFORO_EVENTS_SUBJECT_PREFIX",
		"store.driver":                           "AFORO_STORE_DRIVER",
		"store.storage":                          "AFORO_STORE_STORAGE",
		"parser.provider":                        "AFORO_PARSER_PROVIDER",
		"parser.api_key":                         "AFORO_PARSER_API_KEY",
		"parser.default_model":                   "AFORO_PARSER_DEFAULT_MODEL",
		"parser.max_retries":                     "AFORO_PARSER_MAX_RETRIES",
		"parser.timeout_secs":                    "AFORO_PARSER_TIMEOUT_SECS",
	}
	for _, slot := range []string{"primary", "secondary", "tertiary"} {
		for _, field := range []string{"provider", "api_key", "default_model", "max_retries", "timeout_secs"} {
			key := "parser." + slot + "." + field
			envBindings[key] = "AFORO_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set PORT. Use it if AFORO_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("AFORO_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),

		MigrationsPath: v.GetString("db.migrations_path"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}

	cfg.Pipeline = PipelineConfig{
		Concurrency:         v.GetInt("pipeline.concurrency"),
		ClassifierThreshold: v.GetFloat64("pipeline.classifier_threshold"),
		BandGreen:           v.GetFloat64("pipeline.band_green"),
		BandYellow:          v.GetFloat64("pipeline.band_yellow"),
		TextModeMinChars:    v.GetInt("pipeline.text_mode_min_chars"),
		ModelRateLimit:      v.GetFloat64("pipeline.model_rate_limit"),
		ModelRateBurst:      v.GetInt("pipeline.model_rate_burst"),
	}
	cfg.Resilience = ResilienceConfig{
		RetryMaxAttempts:        v.GetInt("resilience.retry_max_attempts"),
		RetryInitialBackoff:     v.GetDuration("resilience.retry_initial_backoff"),
		RetryMaxBackoff:         v.GetDuration("resilience.retry_max_backoff"),
		RetryMultiplier:         v.GetFloat64("resilience.retry_multiplier"),
		BreakerEnabled:          v.GetBool("resilience.breaker_enabled"),
		BreakerMinRequests:      v.GetUint32("resilience.breaker_min_requests"),
		BreakerFailureRatio:     v.GetFloat64("resilience.breaker_failure_ratio"),
		BreakerOpenTimeout:      v.GetDuration("resilience.breaker_open_timeout"),
		BreakerHalfOpenMaxCalls: v.GetUint32("resilience.breaker_half_open_max_calls"),
	}
	cfg.Finance = FinanceConfig{
		WeightCoverageThreshold: v.GetFloat64("finance.weight_coverage_threshold"),
		DefaultInsuranceRate:    v.GetFloat64("finance.default_insurance_rate"),
	}
	cfg.Consolidate = ConsolidateConfig{
		WeightTolerance: v.GetFloat64("consolidate.weight_tolerance"),
	}
	cfg.Vocabulary = VocabularyConfig{
		Path: v.GetString("vocabulary.path"),
	}

	cfg.Parser = ParserConfig{
		Provider:     v.GetString("parser.provider"),
		APIKey:       v.GetString("parser.api_key"),
		DefaultModel: v.GetString("parser.default_model"),
		MaxRetries:   v.GetInt("parser.max_retries"),
		TimeoutSecs:  v.GetInt("parser.timeout_secs"),
		Primary:      providerConfig(v, "primary"),
		Secondary:    providerConfig(v, "secondary"),
		Tertiary:     providerConfig(v, "tertiary"),
	}

	cfg.Email = EmailConfig{
		Provider:       v.GetString("email.provider"),
		Region:         v.GetString("email.region"),
		FromAddress:    v.GetString("email.from_address"),
		FromName:       v.GetString("email.from_name"),
		FrontendURL:    v.GetString("email.frontend_url"),
		ReviewerEmails: splitList(v.GetString("email.reviewer_emails")),
	}
	cfg.Events = EventsConfig{
		Provider:      v.GetString("events.provider"),
		NATSURL:       v.GetString("events.nats_url"),
		SubjectPrefix: v.GetString("events.subject_prefix"),
	}
	cfg.Store = StoreConfig{
		Driver:  v.GetString("store.driver"),
		Storage: v.GetString("store.storage"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func providerConfig(v *viper.Viper, slot string) ParserProviderConfig {
	prefix := "parser." + slot + "."
	return ParserProviderConfig{
		Provider:     v.GetString(prefix + "provider"),
		APIKey:       v.GetString(prefix + "api_key"),
		DefaultModel: v.GetString(prefix + "default_model"),
		MaxRetries:   v.GetInt(prefix + "max_retries"),
		TimeoutSecs:  v.GetInt(prefix + "timeout_secs"),
	}
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Pipeline.BandYellow < 0 || c.Pipeline.BandGreen > 1 || c.Pipeline.BandYellow > c.Pipeline.BandGreen {
		return fmt.Errorf("config: band thresholds must satisfy 0 <= yellow (%.2f) <= green (%.2f) <= 1",
			c.Pipeline.BandYellow, c.Pipeline.BandGreen)
	}
	if c.Pipeline.ClassifierThreshold < 0 || c.Pipeline.ClassifierThreshold > 1 {
		return fmt.Errorf("config: classifier threshold %.2f out of [0,1]", c.Pipeline.ClassifierThreshold)
	}
	if c.Consolidate.WeightTolerance < 0 {
		return fmt.Errorf("config: weight tolerance must be non-negative")
	}
	if c.Finance.DefaultInsuranceRate < 0 {
		return fmt.Errorf("config: default insurance rate must be non-negative")
	}
	return nil
}
