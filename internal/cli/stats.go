package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ancestore/ancestore/internal/schema"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-kind record counts for the tenant",
		Args:  cobra.NoArgs,
		Long: `Count the records of every entity kind in the tenant's tables.

Example:
  ancestore stats -c alpha.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			st, _, err := openStore(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			counts := map[string]int{}
			for _, kind := range schema.Kinds {
				set, err := st.Of(kind)
				if err != nil {
					return WrapExitError(ExitCommandError, "entity set", err)
				}
				n, err := set.Count(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("count %s", kind), err)
				}
				counts[string(kind)] = n
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if rootOpts.Format == "json" {
				return out.Success(counts)
			}

			var b strings.Builder
			for _, kind := range schema.Kinds {
				fmt.Fprintf(&b, "%-12s %d\n", kind, counts[string(kind)])
			}
			return out.Success(strings.TrimRight(b.String(), "\n"))
		},
	}

	return cmd
}
