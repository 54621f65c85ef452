// Package config loads application settings from a YAML file with environment
// variable overrides. Environment always wins over file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the override variables, e.g. CALASSIST_LISTEN_ADDR.
const EnvPrefix = "CALASSIST_"

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

// ModelConfig selects the completion provider.
type ModelConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "anthropic"
	Name      string `yaml:"name"`
	APIKey    string `yaml:"api_key"`
	Streaming bool   `yaml:"streaming"`
}

// ChatConfig tunes the turn-taking scheduler.
type ChatConfig struct {
	Mode            string `yaml:"mode"`             // "multi_turn" or "single_shot"
	SupersedePolicy string `yaml:"supersede_policy"` // "keep" or "discard"
	MaxRounds       int    `yaml:"max_rounds"`
}

// CalendarConfig selects and configures the calendar backend.
type CalendarConfig struct {
	Backend         string `yaml:"backend"` // "google" or "memory"
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	BreakerFailures int    `yaml:"breaker_failures"`
}

// MemoryConfig configures the conversational memory backend.
type MemoryConfig struct {
	Backend string `yaml:"backend"` // "http", "memory" or "none"
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// LoggingConfig chooses the log level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "text"
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Chat     ChatConfig     `yaml:"chat"`
	Calendar CalendarConfig `yaml:"calendar"`
	Memory   MemoryConfig   `yaml:"memory"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Defaults returns the configuration used when no file and no env vars exist.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:    ":8000",
			AllowedOrigin: "*",
		},
		Model: ModelConfig{
			Provider:  "openai",
			Name:      "gpt-4o-mini",
			Streaming: true,
		},
		Chat: ChatConfig{
			Mode:            "multi_turn",
			SupersedePolicy: "keep",
			MaxRounds:       20,
		},
		Calendar: CalendarConfig{
			Backend:         "google",
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			BreakerFailures: 5,
		},
		Memory: MemoryConfig{
			Backend: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (missing file is fine, defaults apply), layers environment
// overrides on top, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Run on defaults plus environment.
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CALASSIST_* env vars onto config fields.
func ApplyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.Server.AllowedOrigin, "ALLOWED_ORIGIN")
	setString(&cfg.Model.Provider, "MODEL_PROVIDER")
	setString(&cfg.Model.Name, "MODEL_NAME")
	setString(&cfg.Model.APIKey, "MODEL_API_KEY")
	setBool(&cfg.Model.Streaming, "MODEL_STREAMING")
	setString(&cfg.Chat.Mode, "CHAT_MODE")
	setString(&cfg.Chat.SupersedePolicy, "CHAT_SUPERSEDE_POLICY")
	setInt(&cfg.Chat.MaxRounds, "CHAT_MAX_ROUNDS")
	setString(&cfg.Calendar.Backend, "CALENDAR_BACKEND")
	setString(&cfg.Calendar.CredentialsFile, "CALENDAR_CREDENTIALS_FILE")
	setString(&cfg.Calendar.TokenFile, "CALENDAR_TOKEN_FILE")
	setInt(&cfg.Calendar.BreakerFailures, "CALENDAR_BREAKER_FAILURES")
	setString(&cfg.Memory.Backend, "MEMORY_BACKEND")
	setString(&cfg.Memory.BaseURL, "MEMORY_BASE_URL")
	setString(&cfg.Memory.APIKey, "MEMORY_API_KEY")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// ValidationError accumulates config validation problems so callers can see
// all of them at once.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate checks cfg for structural correctness.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	if cfg.Server.ListenAddr == "" {
		ve.Add("server.listen_addr must not be empty")
	}
	if !oneOf(cfg.Model.Provider, "openai", "anthropic") {
		ve.Add("model.provider must be openai or anthropic, got %q", cfg.Model.Provider)
	}
	if cfg.Model.Name == "" {
		ve.Add("model.name must not be empty")
	}
	if !oneOf(cfg.Chat.Mode, "multi_turn", "single_shot") {
		ve.Add("chat.mode must be multi_turn or single_shot, got %q", cfg.Chat.Mode)
	}
	if !oneOf(cfg.Chat.SupersedePolicy, "keep", "discard") {
		ve.Add("chat.supersede_policy must be keep or discard, got %q", cfg.Chat.SupersedePolicy)
	}
	if cfg.Chat.MaxRounds <= 0 {
		ve.Add("chat.max_rounds must be > 0")
	}
	if !oneOf(cfg.Calendar.Backend, "google", "memory") {
		ve.Add("calendar.backend must be google or memory, got %q", cfg.Calendar.Backend)
	}
	if cfg.Calendar.Backend == "google" && cfg.Calendar.CredentialsFile == "" {
		ve.Add("calendar.credentials_file required for the google backend")
	}
	if cfg.Calendar.BreakerFailures <= 0 {
		ve.Add("calendar.breaker_failures must be > 0")
	}
	if !oneOf(cfg.Memory.Backend, "http", "memory", "none") {
		ve.Add("memory.backend must be http, memory or none, got %q", cfg.Memory.Backend)
	}
	if cfg.Memory.Backend == "http" && cfg.Memory.BaseURL == "" {
		ve.Add("memory.base_url required for the http backend")
	}
	if !oneOf(cfg.Logging.Level, "debug", "info", "warn", "error") {
		ve.Add("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	if !oneOf(cfg.Logging.Format, "json", "text") {
		ve.Add("logging.format must be json or text, got %q", cfg.Logging.Format)
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
