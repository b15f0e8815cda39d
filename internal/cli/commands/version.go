package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/planlineage/pkg/engine"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display planlineage version and the engine versions it can decode.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "planlineage v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Plan formats: %s\n", joinOrNone(engine.Versions()))
		},
	}
}
