package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Settings  SettingsConfig  `yaml:"settings"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig defines listener and browser access configuration.
type ServerConfig struct {
	Port          int    `yaml:"port"`
	BasePath      string `yaml:"base_path"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SettingsConfig selects where provider credentials are persisted.
type SettingsConfig struct {
	Backend    string      `yaml:"backend"`
	Dir        string      `yaml:"dir"`
	File       string      `yaml:"file"`
	SQLitePath string      `yaml:"sqlite_path"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ProvidersConfig catalogues the two upstream providers.
type ProvidersConfig struct {
	Gemini   ProviderConfig `yaml:"gemini"`
	DeepSeek ProviderConfig `yaml:"deepseek"`
}

// ProviderConfig captures routing info for a provider. Models overrides
// the provider model id behind a public alias.
type ProviderConfig struct {
	BaseURL        string            `yaml:"base_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Models         map[string]string `yaml:"models"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Server: ServerConfig{
			Port:          8000,
			BasePath:      "/api",
			AllowedOrigin: "http://localhost:3000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Settings: SettingsConfig{
			Backend:    BackendFile,
			Dir:        filepath.Join(home, ".islamai"),
			File:       "config.json",
			SQLitePath: filepath.Join(home, ".islamai", "settings.db"),
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "islamai:",
			},
		},
		Providers: ProvidersConfig{
			Gemini: ProviderConfig{
				BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
				TimeoutSeconds: 120,
			},
			DeepSeek: ProviderConfig{
				BaseURL:        "https://api.deepseek.com",
				TimeoutSeconds: 120,
			},
		},
	}
}

// Load reads a YAML config file and merges it over defaults, then applies
// environment overrides. An empty path or a missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		switch {
		case os.IsNotExist(err):
			slog.Info("no config file found, using defaults", "path", absPath)
		case err != nil:
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.Server.AllowedOrigin = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be an integer, got %q", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SETTINGS_BACKEND"); v != "" {
		c.Settings.Backend = v
	}
	if v := os.Getenv("CONFIG_DIR"); v != "" {
		c.Settings.Dir = v
	}
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		c.Settings.File = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Settings.Redis.Addr = v
	}
	if v := os.Getenv("GEMINI_BASE_URL"); v != "" {
		c.Providers.Gemini.BaseURL = v
	}
	if v := os.Getenv("DEEPSEEK_BASE_URL"); v != "" {
		c.Providers.DeepSeek.BaseURL = v
	}
	return nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path %q must start with /", c.Server.BasePath)
	}
	if err := validateOrigin(c.Server.AllowedOrigin); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Settings.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Settings.Dir) == "" || strings.TrimSpace(c.Settings.File) == "" {
			return fmt.Errorf("settings: file backend requires dir and file")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.Settings.SQLitePath) == "" {
			return fmt.Errorf("settings: sqlite backend requires sqlite_path")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Settings.Redis.Addr) == "" {
			return fmt.Errorf("settings: redis backend requires redis.addr")
		}
	default:
		return fmt.Errorf("settings.backend %q must be one of %q, %q or %q", c.Settings.Backend, BackendFile, BackendSQLite, BackendRedis)
	}

	providers := map[string]ProviderConfig{
		"gemini":   c.Providers.Gemini,
		"deepseek": c.Providers.DeepSeek,
	}
	for name, provider := range providers {
		if err := validateProvider(name, provider); err != nil {
			return err
		}
	}

	return nil
}

func validateProvider(name string, provider ProviderConfig) error {
	u, err := url.Parse(strings.TrimSpace(provider.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider %s: base_url %q must be an absolute URL", name, provider.BaseURL)
	}
	if provider.TimeoutSeconds <= 0 {
		return fmt.Errorf("provider %s: timeout_seconds must be positive, got %d", name, provider.TimeoutSeconds)
	}
	for alias, target := range provider.Models {
		if !strings.HasPrefix(alias, name) {
			return fmt.Errorf("provider %s: model alias %q must start with %q", name, alias, name)
		}
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("provider %s: alias %q target must not be empty", name, alias)
		}
	}
	return nil
}

func validateOrigin(origin string) error {
	if strings.Contains(origin, ",") || origin == "*" {
		return fmt.Errorf("server.allowed_origin must be a single origin, got %q", origin)
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.allowed_origin %q must be an absolute origin", origin)
	}
	return nil
}

// SlogLevel maps the configured level name onto slog.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SettingsFile returns the JSON settings document path.
func (c SettingsConfig) SettingsFile() string {
	return filepath.Join(c.Dir, c.File)
}
