package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port            int    `toml:"port" validate:"min=1,max=65535"`
	RateLimitPerMin int    `toml:"rate_limit_per_min" validate:"min=1"`
	RateLimitWindow string `toml:"rate_limit_window" validate:"required,gotime"`
	LogLevel        string `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string `toml:"log_format" validate:"oneof=text json"`
}

type LLMConfig struct {
	Provider          string `toml:"provider" validate:"omitempty,oneof=gemini openai anthropic"`
	GeminiAPIKey      string `toml:"gemini_api_key"`
	GeminiModel       string `toml:"gemini_model"`
	OpenAIAPIKey      string `toml:"openai_api_key"`
	OpenAIModel       string `toml:"openai_model"`
	OpenAIBaseURL     string `toml:"openai_base_url" validate:"omitempty,url"`
	AnthropicAPIKey   string `toml:"anthropic_api_key"`
	AnthropicModel    string `toml:"anthropic_model"`
	RequestsPerMinute int    `toml:"requests_per_minute" validate:"min=0"`
	Timeout           string `toml:"timeout" validate:"required,gotime"`
}

type GenerationConfig struct {
	MaxTokens   int     `toml:"max_tokens" validate:"min=1"`
	Temperature float64 `toml:"temperature"`
}

type StorageConfig struct {
	Driver           string `toml:"driver" validate:"oneof=sqlite memgraph memory"`
	SQLitePath       string `toml:"sqlite_path" validate:"required_if=Driver sqlite"`
	MemgraphURI      string `toml:"memgraph_uri" validate:"required_if=Driver memgraph"`
	MemgraphUser     string `toml:"memgraph_user"`
	MemgraphPassword string `toml:"memgraph_password"`
	CacheSize        int    `toml:"cache_size" validate:"min=0"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in" validate:"required,gotime"`
	CookieSecure bool   `toml:"cookie_secure"`
	AppURL       string `toml:"app_url" validate:"required,url"`
}

type ExportConfig struct {
	// PDFFontPath names a TrueType font embedded in PDF exports. Without it
	// PDFs use the core fonts, which only cover cp1252.
	PDFFontPath string `toml:"pdf_font_path" validate:"omitempty,file"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	LLM        LLMConfig        `toml:"llm"`
	Generation GenerationConfig `toml:"generation"`
	Storage    StorageConfig    `toml:"storage"`
	Auth       AuthConfig       `toml:"auth"`
	Export     ExportConfig     `toml:"export"`
}

// Default returns the configuration used when no file or env override is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			RateLimitPerMin: 10,
			RateLimitWindow: "1m",
			LogLevel:        "info",
			LogFormat:       "text",
		},
		LLM: LLMConfig{
			GeminiModel:    "gemini-2.5-flash",
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-3-5-haiku-latest",
			Timeout:        "90s",
		},
		Generation: GenerationConfig{
			MaxTokens:   2500,
			Temperature: 0.85,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "storyforge.db",
			CacheSize:  256,
		},
		Auth: AuthConfig{
			JWTExpiresIn: "168h",
			AppURL:       "http://localhost:8080",
		},
	}
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse TOML: %w", err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := num("STORY_RATE_LIMIT_PER_MIN", &c.Server.RateLimitPerMin); err != nil {
		return err
	}
	str("LOG_LEVEL", &c.Server.LogLevel)
	str("LOG_FORMAT", &c.Server.LogFormat)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("GEMINI_API_KEY", &c.LLM.GeminiAPIKey)
	str("GEMINI_MODEL", &c.LLM.GeminiModel)
	str("OPENAI_API_KEY", &c.LLM.OpenAIAPIKey)
	str("OPENAI_MODEL", &c.LLM.OpenAIModel)
	str("OPENAI_BASE_URL", &c.LLM.OpenAIBaseURL)
	str("ANTHROPIC_API_KEY", &c.LLM.AnthropicAPIKey)
	str("ANTHROPIC_MODEL", &c.LLM.AnthropicModel)

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("MEMGRAPH_URI", &c.Storage.MemgraphURI)
	str("MEMGRAPH_USER", &c.Storage.MemgraphUser)
	str("MEMGRAPH_PASSWORD", &c.Storage.MemgraphPassword)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("JWT_EXPIRES_IN", &c.Auth.JWTExpiresIn)
	str("APP_URL", &c.Auth.AppURL)
	str("PDF_FONT_PATH", &c.Export.PDFFontPath)
	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COOKIE_SECURE %q: %w", v, err)
		}
		c.Auth.CookieSecure = b
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("gotime", func(fl validator.FieldLevel) bool {
		d, err := ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Validate checks field constraints. Missing provider credentials are not a
// load failure; they surface when a provider is selected.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("invalid config: generation.temperature must be within [0,2]")
	}
	return nil
}

// RateLimitWindow returns the parsed rate limit window.
func (c *Config) RateLimitWindow() time.Duration {
	return mustDuration(c.Server.RateLimitWindow, time.Minute)
}

// LLMTimeout bounds a single generation call.
func (c *Config) LLMTimeout() time.Duration {
	return mustDuration(c.LLM.Timeout, 90*time.Second)
}

// JWTExpiry is the lifetime of issued auth tokens.
func (c *Config) JWTExpiry() time.Duration {
	return mustDuration(c.Auth.JWTExpiresIn, 7*24*time.Hour)
}

// ParseDuration extends time.ParseDuration with a whole-day unit, so "7d"
// reads as 168h. Days cannot be combined with other units.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
