// Package cmd implements the opsctl command tree.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/target/opsconsole/config"
	"github.com/target/opsconsole/internal/bootstrap"
)

var (
	serverURL string
	verbose   bool
)

type cfgKey struct{}

var rootCmd = &cobra.Command{
	Use:   "opsctl",
	Short: "opsconsole session client",
	Long: `opsctl signs in to the operations console through the organisation's
identity provider, keeps the session fresh and signs out again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if verbose {
			bootstrap.SetLogLevel(slog.LevelDebug)
		} else {
			bootstrap.SetLogLevel(slog.LevelWarn)
		}
		cfg, err := bootstrap.LoadConsoleConfig()
		if err != nil {
			return err
		}
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "opsconsole API URL (overrides OPSCTL_SERVER_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.AddCommand(loginCmd, statusCmd, watchCmd, logoutCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	bootstrap.InitLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func configFrom(cmd *cobra.Command) config.ConsoleConfig {
	cfg, ok := cmd.Context().Value(cfgKey{}).(config.ConsoleConfig)
	if !ok {
		panic("console config not loaded")
	}
	return cfg
}
