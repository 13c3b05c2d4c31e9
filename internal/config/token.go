package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveToken returns an API token by checking multiple sources in priority
// order. This keeps token resolution consistent across all commands.
//
// Priority (highest to lowest):
//  1. Provided token parameter (e.g. from --api-token flag)
//  2. RACM_API_TOKEN environment variable
//  3. Default token file (~/.config/racm/token) - created by 'config init'
//  4. api_token from the loaded config file
//
// Returns empty string if no token is found in any source.
func ResolveToken(token string, cfg *Config) string {
	if token != "" {
		return token
	}

	if env := os.Getenv("RACM_API_TOKEN"); env != "" {
		return env
	}

	if path, err := DefaultTokenPath(); err == nil {
		if key, err := ReadTokenFile(path); err == nil && key != "" {
			return key
		}
	}

	if cfg != nil {
		return cfg.APIToken
	}
	return ""
}

// DefaultTokenPath returns the default token file path.
func DefaultTokenPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token"), nil
}

// ReadTokenFile reads a token from a file, trimming whitespace.
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteTokenFile writes a token to a file with restrictive permissions.
func WriteTokenFile(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
