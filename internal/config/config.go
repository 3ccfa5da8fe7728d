package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Transport   TransportConfig   `yaml:"transport"`
	Auth        AuthConfig        `yaml:"auth"`
	Provider    ProviderConfig    `yaml:"provider"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Upload      UploadConfig      `yaml:"upload"`
	Processing  ProcessingConfig  `yaml:"processing"`
	Correlation CorrelationConfig `yaml:"correlation"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// TransportConfig selects how the MCP server is exposed: "http" serves it at
// /mcp next to the REST API, "stdio" serves only MCP over stdin/stdout.
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ProviderConfig selects the analysis provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type AnalysisConfig struct {
	ResultLanguage  string `yaml:"result_language"`
	MaxContentChars int    `yaml:"max_content_chars"`
}

type UploadConfig struct {
	MaxContentBytes int `yaml:"max_content_bytes"`
}

// ProcessingConfig controls background processing of uploaded files.
type ProcessingConfig struct {
	AutoStart bool `yaml:"auto_start"`
	Workers   int  `yaml:"workers"`
}

// CorrelationConfig selects how duplicate issues are detected. A zero
// LineWindow with mode "exact" only merges identical line ranges.
type CorrelationConfig struct {
	Mode       string `yaml:"mode"`
	LineWindow int    `yaml:"line_window"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "perfscan.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Provider: ProviderConfig{
			Name:    "openai",
			Model:   "gpt-4o-mini",
			Timeout: 120 * time.Second,
		},
		Analysis: AnalysisConfig{
			ResultLanguage:  "English",
			MaxContentChars: 8000,
		},
		Upload: UploadConfig{
			MaxContentBytes: 10 * 1024 * 1024,
		},
		Processing: ProcessingConfig{
			AutoStart: true,
			Workers:   4,
		},
		Correlation: CorrelationConfig{
			Mode: "exact",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("PERFSCAN_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("PERFSCAN_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PERFSCAN_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PERFSCAN_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("PERFSCAN_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("PERFSCAN_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("PERFSCAN_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("PERFSCAN_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if enabled := os.Getenv("PERFSCAN_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PERFSCAN_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	if provider := os.Getenv("PERFSCAN_PROVIDER"); provider != "" {
		cfg.Provider.Name = provider
	}
	if model := os.Getenv("PERFSCAN_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if url := os.Getenv("PERFSCAN_PROVIDER_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if lang := os.Getenv("PERFSCAN_RESULT_LANGUAGE"); lang != "" {
		cfg.Analysis.ResultLanguage = lang
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	switch c.Correlation.Mode {
	case "exact", "overlap":
	default:
		return fmt.Errorf("invalid correlation mode %q", c.Correlation.Mode)
	}
	if c.Correlation.LineWindow < 0 {
		return fmt.Errorf("correlation line_window must not be negative")
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("processing workers must be at least 1")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
