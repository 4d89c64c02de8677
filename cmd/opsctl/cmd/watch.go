package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/opsconsole/internal/session"
)

var watchPoll = time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the session refreshed until interrupted",
	Long: `Restores the session and keeps it alive: the token is renewed before it
expires and revalidated against opsconsole every SESSION_REFRESH_INTERVAL.
If opsconsole or the identity provider is unavailable at startup, restoring is
retried on the same cycle. Exits when interrupted or when the session is ended
by a forced logout.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		c, err := newConsole(ctx, configFrom(cmd), out)
		if err != nil {
			return err
		}
		defer c.controller.Close()

		snap, err := c.controller.Restore(ctx)
		switch {
		case err != nil && snap.Rejection != nil && snap.Rejection.Transient():
			printSnapshot(out, snap)
			fmt.Fprintf(out, "Retrying every %s\n", c.cfg.RefreshInterval)
		case err != nil && !snap.Authenticated():
			printSnapshot(out, snap)
			return err
		case !snap.Authenticated():
			return errors.New("not signed in; run `opsctl login`")
		default:
			fmt.Fprintf(out, "Watching session for %s (refresh every %s)\n", snap.Identity.Email, c.cfg.RefreshInterval)
		}

		final := watchSession(ctx, c.controller, watchPoll, func(s session.Snapshot) {
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), s.State)
		})
		if final.State == session.StateInvalid {
			return fmt.Errorf("session ended: %s", reasonText(final.LogoutReason))
		}
		return nil
	},
}

// watchSession reports state changes until ctx ends or the refresh task stops.
func watchSession(ctx context.Context, c *session.Controller, poll time.Duration, onChange func(session.Snapshot)) session.Snapshot {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	last := c.Current()
	for {
		select {
		case <-ctx.Done():
			return c.Current()
		case <-ticker.C:
		}
		cur := c.Current()
		if cur.State != last.State || cur.Expiry != last.Expiry {
			onChange(cur)
		}
		last = cur
		if !c.Running() {
			return cur
		}
	}
}
