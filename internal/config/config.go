package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	Server    ServerConfig
	Detection DetectionConfig
	Localizer LocalizerConfig
	Mapper    MapperConfig
	Breaker   BreakerConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Browser   BrowserConfig
	Security  SecurityConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"90s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"5242880"` // 5MB
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DetectionConfig tunes the detector. Strategy thresholds are fixed and not configurable.
type DetectionConfig struct {
	FieldConcurrency  int    `envconfig:"DETECT_FIELD_CONCURRENCY" default:"4"`
	MaxCandidates     int    `envconfig:"DETECT_MAX_CANDIDATES" default:"10"`
	TempDir           string `envconfig:"DETECT_TEMP_DIR" default:""`
	ArchiveUnresolved bool   `envconfig:"DETECT_ARCHIVE_UNRESOLVED" default:"false"`
}

// LocalizerConfig holds the vision localizer settings. Mode "service" calls the HTTP task
// service, "llm" prompts the mapper's provider, "off" disables AI localization.
type LocalizerConfig struct {
	Mode         string        `envconfig:"LOCALIZER_MODE" default:"service"`
	URL          string        `envconfig:"LOCALIZER_URL" default:"http://localhost:8765"`
	APIKey       string        `envconfig:"LOCALIZER_API_KEY" default:""`
	Task         string        `envconfig:"LOCALIZER_TASK" default:"ui_element_localization"`
	Timeout      time.Duration `envconfig:"LOCALIZER_TIMEOUT" default:"60s"`
	RateLimitRPM int           `envconfig:"LOCALIZER_RATE_LIMIT_RPM" default:"120"`
	CacheTTL     time.Duration `envconfig:"LOCALIZER_CACHE_TTL" default:"10m"`
	CacheEnabled bool          `envconfig:"LOCALIZER_CACHE_ENABLED" default:"false"`
}

// MapperConfig holds the semantic mapper settings
type MapperConfig struct {
	Provider      string `envconfig:"MAPPER_PROVIDER" default:"claude"` // claude, openai, gemini, service, off
	Model         string `envconfig:"MAPPER_MODEL" default:""`
	BaseURL       string `envconfig:"MAPPER_BASE_URL" default:""`
	MaxTokens     int    `envconfig:"MAPPER_MAX_TOKENS" default:"2048"`
	MaxImageWidth int    `envconfig:"MAPPER_MAX_IMAGE_WIDTH" default:"1568"`

	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY" default:""`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY" default:""`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY" default:""`
}

// APIKey returns the key for the configured provider.
func (c MapperConfig) APIKey() string {
	switch strings.ToLower(c.Provider) {
	case "claude", "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "gemini", "google":
		return c.GeminiAPIKey
	}
	return ""
}

// Enabled reports whether a mapper should be constructed.
func (c MapperConfig) Enabled() bool {
	p := strings.ToLower(c.Provider)
	return p != "" && p != "off" && p != "none"
}

// BreakerConfig guards the AI services
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"3"`
	Cooldown    time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds object storage settings
type StorageConfig struct {
	Enabled        bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint       string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKey      string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	Bucket         string `envconfig:"STORAGE_BUCKET" default:"uidetect"`
	Region         string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	UseSSL         bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	ScreenshotPath string `envconfig:"STORAGE_SCREENSHOT_PATH" default:"unresolved"`
}

// BrowserConfig holds browser settings for URL detection. Engine is playwright or rod.
type BrowserConfig struct {
	Enabled        bool          `envconfig:"BROWSER_ENABLED" default:"true"`
	Engine         string        `envconfig:"BROWSER_ENGINE" default:"playwright"`
	Headless       bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	ViewportWidth  int           `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1920"`
	ViewportHeight int           `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"1080"`
	NavTimeout     time.Duration `envconfig:"BROWSER_NAV_TIMEOUT" default:"30s"`
	ActionTimeout  time.Duration `envconfig:"BROWSER_ACTION_TIMEOUT" default:"2s"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	CORSEnabled        bool     `envconfig:"CORS_ENABLED" default:"true"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	APIKeys            []string `envconfig:"API_KEYS" default:""`
	RateLimitEnabled   bool     `envconfig:"API_RATE_LIMIT_ENABLED" default:"false"`
	RateLimitRPM       int      `envconfig:"API_RATE_LIMIT_RPM" default:"60"`
}

// AuthEnabled reports whether API keys were configured.
func (c SecurityConfig) AuthEnabled() bool {
	for _, k := range c.APIKeys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}

// Load reads an optional .env file, then environment variables.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	switch strings.ToLower(c.Localizer.Mode) {
	case "service":
		if c.Localizer.URL == "" {
			errors = append(errors, "LOCALIZER_URL is required when LOCALIZER_MODE=service")
		}
	case "llm":
		if !c.Mapper.Enabled() {
			errors = append(errors, "LOCALIZER_MODE=llm requires a MAPPER_PROVIDER")
		}
	case "off":
	default:
		errors = append(errors, fmt.Sprintf("LOCALIZER_MODE must be service, llm or off (got %q)", c.Localizer.Mode))
	}

	if c.Mapper.Enabled() {
		switch strings.ToLower(c.Mapper.Provider) {
		case "claude", "anthropic", "openai", "gemini", "google":
			if c.Mapper.APIKey() == "" {
				errors = append(errors, fmt.Sprintf("an API key is required for MAPPER_PROVIDER=%s", c.Mapper.Provider))
			}
		case "service":
			if c.Mapper.BaseURL == "" && c.Localizer.URL == "" {
				errors = append(errors, "MAPPER_BASE_URL or LOCALIZER_URL is required for MAPPER_PROVIDER=service")
			}
		default:
			errors = append(errors, fmt.Sprintf("unknown MAPPER_PROVIDER %q", c.Mapper.Provider))
		}
	}

	if c.Detection.FieldConcurrency < 1 {
		errors = append(errors, "DETECT_FIELD_CONCURRENCY must be at least 1")
	}
	if c.Detection.MaxCandidates < 1 {
		errors = append(errors, "DETECT_MAX_CANDIDATES must be at least 1")
	}

	if c.Browser.Enabled {
		switch strings.ToLower(c.Browser.Engine) {
		case "playwright", "rod":
		default:
			errors = append(errors, fmt.Sprintf("BROWSER_ENGINE must be playwright or rod (got %q)", c.Browser.Engine))
		}
	}

	if c.Security.RateLimitEnabled && c.Security.RateLimitRPM < 1 {
		errors = append(errors, "API_RATE_LIMIT_RPM must be at least 1 when rate limiting is enabled")
	}

	if c.Env == EnvProduction && c.Storage.Enabled && c.Storage.AccessKey == "minioadmin" {
		errors = append(errors, "STORAGE_ACCESS_KEY must not use the default in production")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
