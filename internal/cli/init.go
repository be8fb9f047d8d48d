package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade a tenant's schema",
		Long: `Open the tenant's database and ensure its tables, indexes, and
schema-version marker exist. Safe to run repeatedly; existing data is
never touched. Fails if the database was written by a newer build.

Example:
  ancestore init -c alpha.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			st, cfg, err := openStore(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if rootOpts.Format == "json" {
				return out.Success(map[string]string{
					"database": cfg.DatabasePath(),
					"prefix":   cfg.TablePrefix(),
				})
			}
			return out.Success(fmt.Sprintf("tenant ready: %s (prefix %q)", cfg.DatabasePath(), cfg.TablePrefix()))
		},
	}

	return cmd
}
