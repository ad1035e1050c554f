package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/expansionAgency/whatshub/internal/config"
	"github.com/expansionAgency/whatshub/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show WhatsHub status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("WhatsHub %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			// Load config
			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:  port=%d bind=%s\n", cfg.Server.Port, cfg.Server.Bind)
			fmt.Printf("Store:   driver=%s\n", cfg.Store.Driver)
			if cfg.Webhook.PrimaryURL != "" {
				fmt.Printf("Webhook: primary=%s fallback=%s\n", cfg.Webhook.PrimaryURL, cfg.Webhook.FallbackURL)
			} else {
				fmt.Println("Webhook: (not configured, sends stay local)")
			}
			if cfg.Notify.RabbitMQ.URL != "" {
				fmt.Printf("Rabbit:  queue=%s\n", cfg.Notify.RabbitMQ.Queue)
			} else {
				fmt.Println("Rabbit:  (not configured)")
			}

			// Probe a running server
			client := resty.New().SetTimeout(2 * time.Second)
			var health map[string]any
			resp, err := client.R().
				SetResult(&health).
				Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
			if err == nil && resp.IsSuccess() {
				fmt.Printf("Running: yes (feed %v, uptime %v)\n", health["feed_status"], health["uptime"])
			} else {
				fmt.Println("Running: no")
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
