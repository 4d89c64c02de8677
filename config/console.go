package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultRefreshInterval = time.Minute
	credentialDirName      = ".opsconsole"
)

// ConsoleConfig configures the opsctl session client.
type ConsoleConfig struct {
	// ServerURL is the opsconsole API base URL used for token validation.
	ServerURL string `env:"OPSCTL_SERVER_URL" envDefault:"http://localhost:8080"`

	// CallbackAddr is the loopback address receiving the authorization code.
	CallbackAddr string `env:"OPSCTL_CALLBACK_ADDR" envDefault:"127.0.0.1:8765"`

	// CredentialDir holds the persisted provider session and cookies. Defaults to ~/.opsconsole.
	CredentialDir string `env:"OPSCTL_CREDENTIAL_DIR"`

	// LoginSurface is where logouts land; forced logouts append ?reason=<code>.
	LoginSurface string `env:"OPSCTL_LOGIN_SURFACE" envDefault:"/login"`

	// RefreshInterval is the background renew-and-revalidate period.
	RefreshInterval time.Duration `env:"SESSION_REFRESH_INTERVAL" envDefault:"60s"`

	OIDC OIDCConfig `envPrefix:"OIDC_"`
}

// Sanitize resolves defaults that depend on the environment.
func (c *ConsoleConfig) Sanitize() {
	c.OIDC.Sanitize()
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	if c.CallbackAddr = strings.TrimSpace(c.CallbackAddr); c.CallbackAddr == "" {
		c.CallbackAddr = "127.0.0.1:8765"
	}
	if c.LoginSurface = strings.TrimSpace(c.LoginSurface); c.LoginSurface == "" {
		c.LoginSurface = "/login"
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = defaultRefreshInterval
	}
	if c.CredentialDir = strings.TrimSpace(c.CredentialDir); c.CredentialDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.CredentialDir = filepath.Join(home, credentialDirName)
	}
}

// CallbackURL is the redirect URI registered with the provider for opsctl.
func (c *ConsoleConfig) CallbackURL() string {
	return "http://" + c.CallbackAddr + "/callback"
}
