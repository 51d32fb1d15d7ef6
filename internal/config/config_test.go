package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Env:       EnvDevelopment,
		LogLevel:  "info",
		Detection: DetectionConfig{FieldConcurrency: 4, MaxCandidates: 10},
		Localizer: LocalizerConfig{Mode: "service", URL: "http://localhost:8765"},
		Mapper:    MapperConfig{Provider: "claude", AnthropicAPIKey: "sk-test"},
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.example.com", Port: 6380}
	assert.Equal(t, "redis.example.com:6380", cfg.Addr())
}

func TestServerConfig_Addr(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestMapperConfig_APIKey(t *testing.T) {
	cfg := MapperConfig{AnthropicAPIKey: "a", OpenAIAPIKey: "o", GeminiAPIKey: "g"}

	tests := []struct {
		provider string
		want     string
	}{
		{"claude", "a"},
		{"Anthropic", "a"},
		{"openai", "o"},
		{"gemini", "g"},
		{"service", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg.Provider = tt.provider
			assert.Equal(t, tt.want, cfg.APIKey())
		})
	}

	assert.False(t, MapperConfig{Provider: "off"}.Enabled())
	assert.False(t, MapperConfig{}.Enabled())
	assert.True(t, MapperConfig{Provider: "gemini"}.Enabled())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "ai fully off",
			mutate: func(c *Config) { c.Localizer.Mode = "off"; c.Mapper.Provider = "off" },
		},
		{
			name:    "missing mapper key",
			mutate:  func(c *Config) { c.Mapper.AnthropicAPIKey = "" },
			wantErr: "an API key is required for MAPPER_PROVIDER=claude",
		},
		{
			name:    "unknown localizer mode",
			mutate:  func(c *Config) { c.Localizer.Mode = "magic" },
			wantErr: "LOCALIZER_MODE must be service, llm or off",
		},
		{
			name:    "llm localizer without mapper",
			mutate:  func(c *Config) { c.Localizer.Mode = "llm"; c.Mapper.Provider = "off" },
			wantErr: "LOCALIZER_MODE=llm requires a MAPPER_PROVIDER",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Mapper.Provider = "llama" },
			wantErr: `unknown MAPPER_PROVIDER "llama"`,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Detection.FieldConcurrency = 0 },
			wantErr: "DETECT_FIELD_CONCURRENCY must be at least 1",
		},
		{
			name:    "unknown browser engine",
			mutate:  func(c *Config) { c.Browser = BrowserConfig{Enabled: true, Engine: "lynx"} },
			wantErr: `BROWSER_ENGINE must be playwright or rod (got "lynx")`,
		},
		{
			name:   "rod engine",
			mutate: func(c *Config) { c.Browser = BrowserConfig{Enabled: true, Engine: "rod"} },
		},
		{
			name:    "rate limit without budget",
			mutate:  func(c *Config) { c.Security.RateLimitEnabled = true; c.Security.RateLimitRPM = 0 },
			wantErr: "API_RATE_LIMIT_RPM must be at least 1",
		},
		{
			name: "production default storage credentials",
			mutate: func(c *Config) {
				c.Env = EnvProduction
				c.Storage = StorageConfig{Enabled: true, AccessKey: "minioadmin"}
			},
			wantErr: "STORAGE_ACCESS_KEY must not use the default in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecurityConfig_AuthEnabled(t *testing.T) {
	assert.False(t, SecurityConfig{}.AuthEnabled())
	assert.False(t, SecurityConfig{APIKeys: []string{" "}}.AuthEnabled())
	assert.True(t, SecurityConfig{APIKeys: []string{"", "k1"}}.AuthEnabled())
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mapper.AnthropicAPIKey = ""
	cfg.Detection.MaxCandidates = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "; ")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("LOCALIZER_MODE", "off")
	t.Setenv("MAPPER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("DETECT_FIELD_CONCURRENCY", "8")
	t.Setenv("BREAKER_COOLDOWN", "45s")
	t.Setenv("DEBUG", "true")
	t.Setenv("API_KEYS", "k1,k2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Mapper.Provider)
	assert.Equal(t, "sk-openai", cfg.Mapper.APIKey())
	assert.Equal(t, 8, cfg.Detection.FieldConcurrency)
	assert.Equal(t, 10, cfg.Detection.MaxCandidates)
	assert.Equal(t, 45*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, uint32(3), cfg.Breaker.MaxFailures)
	assert.Equal(t, "debug", cfg.GetLogLevel())
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Equal(t, 60, cfg.Security.RateLimitRPM)
	assert.Equal(t, "playwright", cfg.Browser.Engine)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Setenv("LOCALIZER_MODE", "off")
	t.Setenv("MAPPER_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating config")
}
