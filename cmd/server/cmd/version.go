package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, set with -ldflags "-X .../cmd.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionJSON bool

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the gateway version, git commit, build date, and Go runtime.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			platform := runtime.GOOS + "/" + runtime.GOARCH
			if versionJSON {
				return json.NewEncoder(out).Encode(map[string]string{
					"version":    Version,
					"git_commit": GitCommit,
					"build_date": BuildDate,
					"go_version": runtime.Version(),
					"platform":   platform,
				})
			}
			fmt.Fprintln(out, "White Cross gateway")
			fmt.Fprintf(out, "  version:    %s\n", Version)
			fmt.Fprintf(out, "  commit:     %s\n", GitCommit)
			fmt.Fprintf(out, "  built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  go:         %s (%s)\n", runtime.Version(), platform)
			return nil
		},
	}
	cmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
	return cmd
}
