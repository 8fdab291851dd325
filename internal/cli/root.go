package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute runs the toolbridge CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "toolbridge",
		Short:         "Serve Swagger/OpenAPI operations as invokable MCP tools",
		Long:          "toolbridge loads one or more Swagger/OpenAPI documents, turns every operation into a self-describing tool, and serves the set over the Model Context Protocol.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	cmd.SetFlagErrorFunc(flagErrorFunc)
	for _, sub := range []*cobra.Command{newServeCmd(), newToolsCmd()} {
		sub.SetFlagErrorFunc(flagErrorFunc)
		cmd.AddCommand(sub)
	}
	return cmd
}

// flagErrorFunc converts flag parse errors (like unknown flags) into usage
// errors that also show the command's help text. The help pseudo-error passes
// through so cobra can print help normally.
func flagErrorFunc(c *cobra.Command, err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}
