// Package config provides configuration management for racm-int.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/ini.v1"
)

// Config holds everything needed to talk to the RACM analysis service.
//
// Config file location: ~/.config/racm/config
//
// INI format:
//
//	[racm]
//	api_url = https://racm.example.com
//	api_token = <bearer-token>
//	poll_interval_seconds = 2
//	page_size = 25
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	password =
//	no_proxy =
//
// Environment variables (RACM_API_URL, RACM_API_TOKEN, ...) override the file;
// command-line flags override both.
type Config struct {
	APIBaseURL          string `ini:"api_url" envconfig:"API_URL"`
	APIToken            string `ini:"api_token" envconfig:"API_TOKEN"`
	PollIntervalSeconds int    `ini:"poll_interval_seconds" envconfig:"POLL_INTERVAL_SECONDS"`
	PageSize            int    `ini:"page_size" envconfig:"PAGE_SIZE"`

	// Proxy settings
	ProxyMode     string `ini:"mode" envconfig:"PROXY_MODE"` // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string `ini:"host" envconfig:"PROXY_HOST"`
	ProxyPort     int    `ini:"port" envconfig:"PROXY_PORT"`
	ProxyUser     string `ini:"user" envconfig:"PROXY_USER"`
	ProxyPassword string `ini:"password" envconfig:"PROXY_PASSWORD"`
	NoProxy       string `ini:"no_proxy" envconfig:"NO_PROXY"` // Comma-separated bypass list
}

// Validation errors
var (
	ErrMissingBaseURL = errors.New("api_url is required")
	ErrMissingToken   = errors.New("api_token is required (flag, RACM_API_TOKEN, token file, or config)")
)

// Defaults returns a Config with default values applied.
func Defaults() *Config {
	return &Config{
		PollIntervalSeconds: 2,
		PageSize:            25,
		ProxyMode:           "no-proxy",
		ProxyPort:           8080,
	}
}

// DefaultConfigDir returns the directory holding the config and token files.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "racm"), nil
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config"), nil
}

// Load reads configuration from the INI file at path (defaults are used when
// the file is absent), then applies RACM_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			f, err := ini.Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			if err := f.Section("racm").MapTo(cfg); err != nil {
				return nil, fmt.Errorf("failed to map [racm] section: %w", err)
			}
			if err := f.Section("proxy").MapTo(cfg); err != nil {
				return nil, fmt.Errorf("failed to map [proxy] section: %w", err)
			}
		}
	}

	if err := envconfig.Process("racm", cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")
	return cfg, nil
}

// Save writes the config to an INI file at path, creating the directory if
// needed. The file is created with 0600 since it may hold a token.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()
	if err := f.Section("racm").ReflectFrom(c); err != nil {
		return fmt.Errorf("failed to serialize [racm] section: %w", err)
	}
	if err := f.Section("proxy").ReflectFrom(c); err != nil {
		return fmt.Errorf("failed to serialize [proxy] section: %w", err)
	}
	// ReflectFrom writes every tagged field into both sections; keep each key
	// in its own section only.
	for _, key := range []string{"mode", "host", "port", "user", "password", "no_proxy"} {
		f.Section("racm").DeleteKey(key)
	}
	for _, key := range []string{"api_url", "api_token", "poll_interval_seconds", "page_size"} {
		f.Section("proxy").DeleteKey(key)
	}

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Chmod(path, 0600)
}

// Validate checks that the config is usable for API calls.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.APIToken == "" {
		return ErrMissingToken
	}
	return nil
}
