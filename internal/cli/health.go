package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newHealthCmd creates the 'health' command.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to the RACM service",
		Long:  `Call the service health endpoint and report whether it is reachable with the configured URL and token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}

			if err := client.Health(GetContext()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Printf("OK: %s is healthy\n", cfg.APIBaseURL)
			return nil
		},
	}
}
