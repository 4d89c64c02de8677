package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/opsconsole/config"
	"github.com/target/opsconsole/internal/adapters/consoleapi"
	"github.com/target/opsconsole/internal/adapters/localstore"
	"github.com/target/opsconsole/internal/adapters/oidc"
	"github.com/target/opsconsole/internal/session"
)

// console bundles the adapters behind one session controller.
type console struct {
	cfg        config.ConsoleConfig
	jar        *localstore.CookieJar
	navigator  *terminalNavigator
	controller *session.Controller
}

func newConsole(ctx context.Context, cfg config.ConsoleConfig, out io.Writer) (*console, error) {
	logger := slog.Default()

	store, err := localstore.NewFileStore(cfg.CredentialDir)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}

	issuer := oidc.IssuerURL(cfg.OIDC.BaseURL, cfg.OIDC.Realm)
	jar, err := localstore.NewCookieJar(cfg.CredentialDir, issuer)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	provider, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
		Issuer:       issuer,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.CallbackURL(),
		Scopes:       cfg.OIDC.Scopes,
		Store:        store,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second, Jar: jar},
	})
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	api, err := consoleapi.NewClient(cfg.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("console api: %w", err)
	}

	nav := &terminalNavigator{out: out, loginSurface: cfg.LoginSurface}
	controller := session.New(session.Options{
		Provider:  provider,
		Validator: api,
		Effects: session.Effects{
			Artifacts: &localstore.Artifacts{Store: store, Jar: jar},
			Navigator: nav,
		},
		Config: session.Config{
			LoginSurface:    cfg.LoginSurface,
			CallbackURL:     cfg.CallbackURL(),
			RefreshInterval: cfg.RefreshInterval,
			Logger:          logger,
		},
	})

	return &console{cfg: cfg, jar: jar, navigator: nav, controller: controller}, nil
}

// persistCookies keeps provider cookies for the next run; failures only cost a re-prompt.
func (c *console) persistCookies() {
	if err := c.jar.Save(); err != nil {
		slog.Default().Warn("could not persist provider cookies", "error", err)
	}
}

func printSnapshot(w io.Writer, snap session.Snapshot) {
	fmt.Fprintf(w, "State:   %s\n", snap.State)
	if snap.Identity != nil {
		id := snap.Identity
		fmt.Fprintf(w, "User:    %s <%s>\n", id.DisplayName, id.Email)
		fmt.Fprintf(w, "User ID: %s\n", id.ID)
		fmt.Fprintf(w, "Roles:   %s\n", joinRoles(id.Roles))
	}
	if !snap.Expiry.IsZero() {
		fmt.Fprintf(w, "Expires: %s\n", snap.Expiry.Local().Format(time.RFC1123))
	}
	if snap.Rejection != nil {
		fmt.Fprintf(w, "Problem: %s\n", describeRejection(snap.Rejection))
	}
	if snap.LogoutReason != "" {
		fmt.Fprintf(w, "Signed out: %s\n", snap.LogoutReason)
	}
}
