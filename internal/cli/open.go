package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ancestore/ancestore/internal/config"
	"github.com/ancestore/ancestore/internal/store"
)

// openStore loads the tenant config named by the global flag and opens
// the store, ensuring the tenant's schema on the way.
func openStore(ctx context.Context, opts *RootOptions) (*store.Store, config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}

	st, err := store.Open(ctx, cfg, slog.Default())
	if err != nil {
		return nil, config.Config{}, WrapExitError(ExitCommandError, "open store", err)
	}
	return st, cfg, nil
}

// commandContext returns the command's context, falling back to Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
