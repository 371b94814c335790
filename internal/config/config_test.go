package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.RateLimitPerMin)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow())
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiry())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.GeminiModel)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9090
log_format = "json"

[llm]
provider = "openai"
openai_model = "gpt-4.1"

[storage]
driver = "memory"
cache_size = 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1", cfg.LLM.OpenAIModel)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 0, cfg.Storage.CacheSize)
	// untouched keys keep their defaults
	assert.Equal(t, 2500, cfg.Generation.MaxTokens)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse TOML")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":                     "3000",
		"STORY_RATE_LIMIT_PER_MIN": "25",
		"LLM_PROVIDER":             " Gemini ",
		"GEMINI_API_KEY":           "g-key",
		"STORAGE_DRIVER":           "MEMGRAPH",
		"MEMGRAPH_URI":             "bolt://localhost:7687",
		"JWT_SECRET":               "0123456789abcdef0123456789abcdef",
		"COOKIE_SECURE":            "true",
		"OPENAI_MODEL":             "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Server.RateLimitPerMin)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "g-key", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, "memgraph", cfg.Storage.Driver)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAIModel, "empty env value must not clear the default")
	assert.NoError(t, cfg.Validate())
}

func TestJWTExpiryAcceptsDays(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"JWT_EXPIRES_IN": "7d",
		"APP_URL":        "https://stories.example",
	})))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiry())
	assert.Equal(t, "https://stories.example", cfg.Auth.AppURL)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"7d", 168 * time.Hour},
		{" 1d ", 24 * time.Hour},
		{"90s", 90 * time.Second},
		{"1h30m", 90 * time.Minute},
	}
	for _, tt := range tests {
		d, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, d, tt.in)
	}

	for _, bad := range []string{"d", "1.5d", "7days", "1d2h"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestApplyEnvRejectsNonNumericPort(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"PORT": "eighty"}))
	assert.ErrorContains(t, err, "invalid PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "mistral" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"memgraph without uri", func(c *Config) { c.Storage.Driver = "memgraph" }},
		{"bad window", func(c *Config) { c.Server.RateLimitWindow = "soon" }},
		{"zero limit", func(c *Config) { c.Server.RateLimitPerMin = 0 }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
		{"negative temperature", func(c *Config) { c.Generation.Temperature = -1 }},
		{"bad base url", func(c *Config) { c.LLM.OpenAIBaseURL = "not a url" }},
		{"bad app url", func(c *Config) { c.Auth.AppURL = "localhost" }},
		{"missing pdf font", func(c *Config) { c.Export.PDFFontPath = "/nonexistent/font.ttf" }},
		{"bad day count", func(c *Config) { c.Auth.JWTExpiresIn = "sevend" }},
		{"zero days", func(c *Config) { c.Auth.JWTExpiresIn = "0d" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), "invalid config")
		})
	}
}

func TestMissingCredentialsIsNotALoadError(t *testing.T) {
	cfg := Default()
	cfg.LLM.GeminiAPIKey = ""
	cfg.LLM.OpenAIAPIKey = ""
	assert.NoError(t, cfg.Validate())
}
