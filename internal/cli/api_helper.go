// Package cli provides API client helper functions.
package cli

import (
	"fmt"

	"github.com/racmlabs/racm-int/internal/api"
	"github.com/racmlabs/racm-int/internal/config"
	"github.com/racmlabs/racm-int/internal/session"
)

// loadConfig resolves configuration for a command: file, environment, then
// global flags, in increasing priority.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if apiBaseURL != "" {
		cfg.APIBaseURL = apiBaseURL
	}

	token := apiToken
	if token == "" && tokenFile != "" {
		token, err = config.ReadTokenFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read token file: %w", err)
		}
	}
	cfg.APIToken = config.ResolveToken(token, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getAPIClient loads configuration and creates an API client.
// This is the standard way to get an API client in CLI commands.
func getAPIClient() (*api.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return client, cfg, nil
}

// getSessionManager returns the session manager, honoring --session-file.
func getSessionManager() (*session.Manager, error) {
	if sessionFile != "" {
		return session.NewManagerWithPath(sessionFile), nil
	}
	return session.NewManager()
}

// loadSession loads the persisted session, warning on a corrupt file.
func loadSession() (*session.Manager, *session.Session, error) {
	mgr, err := getSessionManager()
	if err != nil {
		return nil, nil, err
	}
	s, err := mgr.Load()
	if err != nil {
		GetLogger().Warn().Err(err).Msg("Session file unreadable, starting fresh")
	}
	return mgr, s, nil
}
