package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth fetches claims from the OIDC provider's userinfo endpoint.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses configured dev claims (for development only).
	AuthModeMock AuthMode = "mock"
)

const (
	defaultRolesClaimPath   = "realm_access.roles"
	defaultClaimsTimeout    = 5 * time.Second
	defaultDirectoryTimeout = 3 * time.Second
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OIDCConfig describes the identity provider. The issuer is BaseURL/realms/Realm.
type OIDCConfig struct {
	BaseURL      string   `env:"BASE_URL"      envDefault:"http://localhost:8081"`
	Realm        string   `env:"REALM"         envDefault:"opsconsole"`
	ClientID     string   `env:"CLIENT_ID"     envDefault:"opsconsole"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Scopes       []string `env:"SCOPES"        envDefault:"openid profile email" envSeparator:" "`
	// UserInfoURL overrides discovery of the userinfo endpoint.
	UserInfoURL string `env:"USERINFO_URL"`
	// RolesClaimPath is a JMESPath expression selecting provider roles from userinfo.
	RolesClaimPath string `env:"ROLES_CLAIM_PATH" envDefault:"realm_access.roles"`
}

// Sanitize trims values and restores defaults for blank fields.
func (c *OIDCConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Realm = strings.TrimSpace(c.Realm)
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.UserInfoURL = strings.TrimSpace(c.UserInfoURL)
	if c.RolesClaimPath = strings.TrimSpace(c.RolesClaimPath); c.RolesClaimPath == "" {
		c.RolesClaimPath = defaultRolesClaimPath
	}
	scopes := c.Scopes[:0]
	for _, s := range c.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	c.Scopes = scopes
}

// DevAuthConfig controls the mock claims returned when AUTH_MODE=mock.
type DevAuthConfig struct {
	Subject  string   `env:"SUBJECT"`
	Email    string   `env:"EMAIL"    envDefault:"dev@example.com"`
	Username string   `env:"USERNAME" envDefault:"dev"`
	Roles    []string `env:"ROLES"    envDefault:"admin"          envSeparator:";"`
}

// AuthConfig groups token validation configuration.
type AuthConfig struct {
	// Mode determines which claims source to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OIDC configuration (used when Mode=oauth).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// ClaimsTimeout bounds a single userinfo call.
	ClaimsTimeout time.Duration `env:"AUTH_CLAIMS_TIMEOUT" envDefault:"5s"`

	// DirectoryTimeout bounds a single directory lookup.
	DirectoryTimeout time.Duration `env:"AUTH_DIRECTORY_TIMEOUT" envDefault:"3s"`
}

// Sanitize applies guardrails to auth configuration values.
func (c *AuthConfig) Sanitize() {
	c.OIDC.Sanitize()
	c.DevAuth.Email = strings.TrimSpace(c.DevAuth.Email)
	if c.ClaimsTimeout <= 0 {
		c.ClaimsTimeout = defaultClaimsTimeout
	}
	if c.DirectoryTimeout <= 0 {
		c.DirectoryTimeout = defaultDirectoryTimeout
	}
}
