package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and remove local credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		c, err := newConsole(ctx, configFrom(cmd), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer c.controller.Close()

		// Restore loads the provider tokens so the provider session can be ended too.
		if _, restoreErr := c.controller.Restore(ctx); restoreErr != nil {
			slog.Default().DebugContext(ctx, "restore before logout failed", "error", restoreErr)
		}
		if signedOut, _ := c.navigator.SignedOut(); signedOut {
			// Restore already forced a logout.
			return nil
		}
		return c.controller.Logout(ctx)
	},
}

func contextWithOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
