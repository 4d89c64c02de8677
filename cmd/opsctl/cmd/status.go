package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		c, err := newConsole(ctx, configFrom(cmd), out)
		if err != nil {
			return err
		}
		defer c.controller.Close()

		snap, err := c.controller.Restore(ctx)
		printSnapshot(out, snap)
		if err != nil {
			var rej *domainauth.Rejection
			if errors.As(err, &rej) && rej.Transient() {
				// Credentials are kept; the next call may succeed.
				return nil
			}
			return err
		}
		if !snap.Authenticated() {
			fmt.Fprintln(out, "Not signed in. Run `opsctl login`.")
		}
		return nil
	},
}
