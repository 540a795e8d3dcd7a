package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds client settings
type Config struct {
	ServerURL string `yaml:"server_url" json:"server_url"` // Base URL of the auth API
	DBPath    string `yaml:"db_path" json:"db_path"`       // Path to the session store

	LoginTimeout   time.Duration `yaml:"login_timeout" json:"login_timeout"`     // Fixed timeout for login and signup
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"` // Base timeout for authenticated calls
	SafetyTimeout  time.Duration `yaml:"safety_timeout" json:"safety_timeout"`   // Upper bound on startup resolution

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns ~/.keepsession
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".keepsession"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir, _ := Dir()
	logPath, dbPath := "", ""
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "keepsession.log")
		dbPath = filepath.Join(dir, "session.db")
	}

	return &Config{
		ServerURL:      "http://localhost:8080",
		DBPath:         dbPath,
		LoginTimeout:   10 * time.Second,
		RequestTimeout: 15 * time.Second,
		SafetyTimeout:  2 * time.Second,
		LogLevel:       "INFO",
		LogFile:        logPath,
		LogConsole:     false,
	}
}

// applyEnv overrides fields from KEEPSESSION_* variables
func (c *Config) applyEnv() error {
	c.ServerURL = getEnv("KEEPSESSION_SERVER_URL", c.ServerURL)
	c.DBPath = getEnv("KEEPSESSION_DB_PATH", c.DBPath)
	c.LogLevel = getEnv("KEEPSESSION_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("KEEPSESSION_LOG_FILE", c.LogFile)
	if v := os.Getenv("KEEPSESSION_LOG_CONSOLE"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("KEEPSESSION_LOG_CONSOLE: %w", err)
		}
		c.LogConsole = on
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"KEEPSESSION_LOGIN_TIMEOUT", &c.LoginTimeout},
		{"KEEPSESSION_REQUEST_TIMEOUT", &c.RequestTimeout},
		{"KEEPSESSION_SAFETY_TIMEOUT", &c.SafetyTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate rejects settings the client cannot run with
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.LoginTimeout <= 0 || c.RequestTimeout <= 0 || c.SafetyTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Path returns the config file location
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from ~/.keepsession/config.yaml
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// ReadFile reads path over the defaults without consulting the
// environment. A missing file is not an error.
func ReadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return cfg, nil
}

// LoadFile reads path over the defaults, then applies the environment.
func LoadFile(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves config to ~/.keepsession/config.yaml
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(configPath)
}

// SaveFile writes the config as YAML to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Set assigns a single field by its YAML key
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "server_url":
		c.ServerURL = value
	case "db_path":
		c.DBPath = value
	case "login_timeout":
		c.LoginTimeout, err = time.ParseDuration(value)
	case "request_timeout":
		c.RequestTimeout, err = time.ParseDuration(value)
	case "safety_timeout":
		c.SafetyTimeout, err = time.ParseDuration(value)
	case "log_level":
		c.LogLevel = value
	case "log_file":
		c.LogFile = value
	case "log_console":
		c.LogConsole, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return c.Validate()
}
