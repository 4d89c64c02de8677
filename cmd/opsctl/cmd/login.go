package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

var (
	loginDestination string
	loginTimeout     time.Duration
	loginForce       bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the identity provider",
	Long: `Signs in with the authorization code flow (PKCE). opsctl prints the provider
URL, waits for the redirect on a loopback address and validates the resulting
token against opsconsole. An existing session is reused unless --force is set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		c, err := newConsole(ctx, configFrom(cmd), out)
		if err != nil {
			return err
		}
		defer c.controller.Close()

		if !loginForce {
			snap, restoreErr := c.controller.Restore(ctx)
			if restoreErr != nil {
				slog.Default().DebugContext(ctx, "silent restore failed", "error", restoreErr)
			}
			if snap.Authenticated() {
				fmt.Fprintln(out, "Already signed in.")
				printSnapshot(out, snap)
				return nil
			}
		}

		cb, err := startCallbackServer(c.cfg.CallbackAddr)
		if err != nil {
			return err
		}
		defer func() { _ = cb.Close() }()

		authURL, err := c.controller.BeginLogin(ctx, loginDestination)
		if err != nil {
			return err
		}
		if err = c.navigator.Redirect(ctx, authURL); err != nil {
			return err
		}

		waitCtx, cancel := contextWithOptionalTimeout(ctx, loginTimeout)
		defer cancel()
		res, err := cb.Wait(waitCtx)
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}

		snap, err := c.controller.CompleteLogin(ctx, res.Code, res.State)
		if err != nil {
			var rej *domainauth.Rejection
			if errors.As(err, &rej) {
				return errors.New(describeRejection(rej))
			}
			return err
		}
		c.persistCookies()

		printSnapshot(out, snap)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginDestination, "to", "/", "Console path to continue to after sign-in")
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "How long to wait for the browser sign-in (0 waits forever)")
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "Start a new sign-in even when a session can be restored")
}
