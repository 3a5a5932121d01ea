package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath string
	logLevel   string
	logFormat  string
)

// Execute runs the root command. Called once by main.main().
func Execute() {
	if err := newRootCommand(runServe).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. serve runs for `serve` and when no
// subcommand is given.
func newRootCommand(serve func(*cobra.Command, []string) error) *cobra.Command {
	root := &cobra.Command{
		Use:   "whitecross",
		Short: "White Cross gateway - backend-for-frontend for the school health platform",
		Long: `The White Cross gateway sits between the browser and the White Cross REST API.

It terminates browser sessions (HTTP-only cookie or bearer token), enforces
role-based access to student health data, audits PHI access, rate limits
clients, caches reads, and forwards requests to the backend with retries.`,
		RunE: serve,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (optional, uses env vars by default)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(
		newServeCommand(serve),
		newVersionCommand(),
		newHealthcheckCommand(),
		newEndpointsCommand(),
		newTokenCommand(),
	)
	return root
}
