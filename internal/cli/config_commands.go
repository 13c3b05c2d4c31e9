// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/racmlabs/racm-int/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage racm-int configuration",
		Long: `Configuration management commands for racm-int.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test API connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for racm-int.

The configuration is saved to ~/.config/racm/config; the API token goes
to a separate token file with restricted permissions.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			configPath, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", configPath)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Println("RACM Configuration Setup")
			fmt.Println("========================")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)

			var apiURLInput string
			for apiURLInput == "" {
				fmt.Print("API Base URL (required): ")
				input, _ := reader.ReadString('\n')
				apiURLInput = strings.TrimSpace(input)
				if apiURLInput == "" {
					fmt.Println("  Error: API base URL is required")
				}
			}

			token, err := readTokenInteractive()
			if err != nil {
				return err
			}

			fmt.Print("Poll interval seconds [2]: ")
			pollInput, _ := reader.ReadString('\n')
			pollSeconds := 2
			if v, err := strconv.Atoi(strings.TrimSpace(pollInput)); err == nil && v > 0 {
				pollSeconds = v
			}

			fmt.Print("Page size [25]: ")
			pageInput, _ := reader.ReadString('\n')
			pageSize := 25
			if v, err := strconv.Atoi(strings.TrimSpace(pageInput)); err == nil && v > 0 {
				pageSize = v
			}

			fmt.Println()
			fmt.Print("Configure proxy? [y/N]: ")
			proxyInput, _ := reader.ReadString('\n')
			proxyInput = strings.TrimSpace(strings.ToLower(proxyInput))

			cfg := config.Defaults()
			cfg.APIBaseURL = strings.TrimSuffix(apiURLInput, "/")
			cfg.PollIntervalSeconds = pollSeconds
			cfg.PageSize = pageSize

			if proxyInput == "y" || proxyInput == "yes" {
				fmt.Println()
				fmt.Println("Proxy Configuration")
				fmt.Println("-------------------")
				fmt.Println("Proxy modes: no-proxy, system, basic, ntlm")
				fmt.Print("Proxy mode [system]: ")
				modeInput, _ := reader.ReadString('\n')
				cfg.ProxyMode = strings.TrimSpace(modeInput)
				if cfg.ProxyMode == "" {
					cfg.ProxyMode = "system"
				}

				if cfg.ProxyMode != "no-proxy" && cfg.ProxyMode != "system" {
					fmt.Print("Proxy host: ")
					hostInput, _ := reader.ReadString('\n')
					cfg.ProxyHost = strings.TrimSpace(hostInput)

					fmt.Print("Proxy port [8080]: ")
					portInput, _ := reader.ReadString('\n')
					if v, err := strconv.Atoi(strings.TrimSpace(portInput)); err == nil && v > 0 {
						cfg.ProxyPort = v
					}

					fmt.Print("Proxy user (optional): ")
					userInput, _ := reader.ReadString('\n')
					cfg.ProxyUser = strings.TrimSpace(userInput)

					if cfg.ProxyUser != "" {
						fmt.Print("Proxy password: ")
						pw, err := term.ReadPassword(int(os.Stdin.Fd()))
						fmt.Println()
						if err != nil {
							return fmt.Errorf("failed to read proxy password: %w", err)
						}
						cfg.ProxyPassword = string(pw)
					}
				}
			}

			tokenPath, err := config.DefaultTokenPath()
			if err != nil {
				return err
			}
			if err := config.WriteTokenFile(tokenPath, token); err != nil {
				return fmt.Errorf("failed to save API token file: %w", err)
			}
			logger.Info().Str("path", tokenPath).Msg("API token saved")

			// Token lives in the token file, not the config.
			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", configPath).Msg("Configuration saved")

			fmt.Println()
			fmt.Printf("Configuration saved to: %s\n", configPath)
			fmt.Printf("API token saved to:     %s\n", tokenPath)
			fmt.Println()
			fmt.Println("Test your configuration with: racm-int config test")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// readTokenInteractive reads the token without echoing when stdin is a
// terminal, falling back to plain reads otherwise (pipes, tests).
func readTokenInteractive() (string, error) {
	for {
		fmt.Print("API token (required): ")
		var token string
		if term.IsTerminal(int(os.Stdin.Fd())) {
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return "", fmt.Errorf("failed to read token: %w", err)
			}
			token = strings.TrimSpace(string(raw))
		} else {
			reader := bufio.NewReader(os.Stdin)
			input, _ := reader.ReadString('\n')
			token = strings.TrimSpace(input)
		}
		if token != "" {
			return token, nil
		}
		fmt.Println("  Error: API token is required")
	}
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the merged configuration from:
  1. Configuration file (~/.config/racm/config)
  2. Environment variables (RACM_API_URL, RACM_API_TOKEN, ...)
  3. Command-line flags (--api-url, --api-token, --token-file)

Priority: flags > environment > token file > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := cfgFile
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if apiBaseURL != "" {
				cfg.APIBaseURL = apiBaseURL
			}
			token := apiToken
			if token == "" && tokenFile != "" {
				token, _ = config.ReadTokenFile(tokenFile)
			}
			cfg.APIToken = config.ResolveToken(token, cfg)

			fmt.Println("Current Configuration")
			fmt.Println("=====================")
			fmt.Println()

			fmt.Println("API Settings:")
			fmt.Printf("  API Base URL: %s\n", orUnset(cfg.APIBaseURL))
			if cfg.APIToken != "" {
				fmt.Printf("  API Token:    <set (%d chars)>\n", len(cfg.APIToken))
			} else {
				fmt.Println("  API Token:    <not set>")
			}
			fmt.Println()

			fmt.Println("Polling:")
			fmt.Printf("  Poll Interval: %ds\n", cfg.PollIntervalSeconds)
			fmt.Printf("  Page Size:     %d\n", cfg.PageSize)
			fmt.Println()

			fmt.Println("Proxy Settings:")
			fmt.Printf("  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Printf("  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Printf("  Proxy Port: %d\n", cfg.ProxyPort)
			}
			if cfg.NoProxy != "" {
				fmt.Printf("  No Proxy:   %s\n", cfg.NoProxy)
			}
			fmt.Println()

			fmt.Printf("Configuration file: %s\n", configPath)
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				fmt.Println("  (file does not exist - using defaults)")
			}

			return nil
		},
	}
}

func orUnset(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if err := client.Health(GetContext()); err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}
			fmt.Printf("Connection OK: %s\n", cfg.APIBaseURL)
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}
			fmt.Println(path)
			return nil
		},
	}
}
