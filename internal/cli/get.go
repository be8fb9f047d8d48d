package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ancestore/ancestore/internal/schema"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <kind> <handle>",
		Short: "Fetch one record as JSON",
		Long: `Fetch a record by kind and handle and print its stored document.

Example:
  ancestore get person a1b2c3 -c alpha.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			kind, handle := schema.Kind(args[0]), args[1]

			if !schema.ValidKind(kind) {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity kind %q", kind))
			}

			st, _, err := openStore(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			set, err := st.Of(kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "entity set", err)
			}

			doc, found, err := set.Get(ctx, handle)
			if err != nil {
				return WrapExitError(ExitFailure, "get record", err)
			}
			if !found {
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
				msg := fmt.Sprintf("%s %q not found", kind, handle)
				if err := out.Error(msg); err != nil {
					return err
				}
				return NewExitError(ExitFailure, msg)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(doc.Raw()))
			return nil
		},
	}

	return cmd
}
