package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/whitecross/gateway/internal/endpoints"
)

var endpointsFormat string

func newEndpointsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the backend endpoints the gateway calls",
		Long: `Print every White Cross backend endpoint the gateway uses, with the
HTTP methods it sends to each. Paths are relative to BACKEND_URL.

Examples:
  whitecross endpoints
  whitecross endpoints --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printEndpoints(cmd, endpointsFormat)
		},
	}
	cmd.Flags().StringVar(&endpointsFormat, "format", "table", "output format (table, json, yaml)")
	return cmd
}

func printEndpoints(cmd *cobra.Command, format string) error {
	out := cmd.OutOrStdout()
	all := endpoints.All()

	switch strings.ToLower(format) {
	case "table", "":
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tMETHODS\tPATH")
		for _, e := range all {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, strings.Join(e.Methods, ","), e.Path)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(all); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (must be table, json, or yaml)", format)
	}
}
