package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toolbridge/toolbridge/internal/registry"
)

var toolsRunner = runTools

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the configured descriptors produce",
		Long: "Tools builds the registry exactly as serve would and prints it as Markdown, " +
			"one section per tool, without starting the MCP server.",
		Example: strings.TrimSpace(`  toolbridge tools --config config.yaml
  toolbridge tools --config config.yaml --schemas`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return toolsRunner(cmd)
		},
	}
	cmd.Flags().Bool("schemas", false, "Include each tool's input schema as a JSON block")
	return cmd
}

func runTools(cmd *cobra.Command) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	withSchemas, err := cmd.Flags().GetBool("schemas")
	if err != nil {
		return err
	}

	entries, err := registry.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	return renderTools(cmd.OutOrStdout(), entries, withSchemas)
}

// renderTools prints registry entries as Markdown in registry order.
func renderTools(w io.Writer, entries []*registry.Entry, withSchemas bool) error {
	fmt.Fprintf(w, "# Tools (%d)\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "\n## %s\n\n", e.ID)
		fmt.Fprintf(w, "- `%s %s` → %s\n", e.Method, e.Path, e.BaseURL)
		if desc := strings.TrimSpace(e.Description); desc != "" {
			fmt.Fprintf(w, "- %s\n", desc)
		}
		if e.SecurityHeader != "" {
			fmt.Fprintf(w, "- auth header: `%s`\n", e.SecurityHeader)
		}
		if withSchemas {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, e.InputSchema, "", "  "); err != nil {
				pretty.Write(e.InputSchema)
			}
			fmt.Fprintf(w, "\n```json\n%s\n```\n", pretty.String())
		}
	}
	return nil
}
