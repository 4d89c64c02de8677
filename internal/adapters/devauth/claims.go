package devauth

// Package devauth provides a config-driven claims fetcher for local development.

import (
	"context"
	"errors"
	"strings"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

// TokenPrefix selects a different email per request: a token "dev:bob@example.org"
// yields claims for bob@example.org.
const TokenPrefix = "dev:"

// Config controls the dev claims fetcher. Email is required.
type Config struct {
	Subject  string
	Email    string
	Username string
	Roles    []string
}

// ClaimsFetcher implements ports.ClaimsFetcher without contacting an identity provider.
// Any non-empty token is accepted.
type ClaimsFetcher struct {
	claims domainauth.Claims
}

var _ ports.ClaimsFetcher = (*ClaimsFetcher)(nil)

// NewClaimsFetcher constructs a dev claims fetcher from Config.
func NewClaimsFetcher(cfg Config) (*ClaimsFetcher, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "dev-" + cfg.Email
	}
	return &ClaimsFetcher{
		claims: domainauth.Claims{
			Subject:           subject,
			Email:             cfg.Email,
			PreferredUsername: cfg.Username,
			ProviderRoles:     append([]string(nil), cfg.Roles...),
		},
	}, nil
}

// FetchClaims returns the configured claims, or claims for the email embedded in a "dev:" token.
func (f *ClaimsFetcher) FetchClaims(_ context.Context, token string) (domainauth.Claims, error) {
	if token == "" {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureInvalidToken, nil, "empty bearer token")
	}
	out := f.claims
	out.ProviderRoles = append([]string(nil), f.claims.ProviderRoles...)
	if email, ok := strings.CutPrefix(token, TokenPrefix); ok {
		out.Email = email
		out.Subject = "dev-" + email
		out.PreferredUsername, _, _ = strings.Cut(email, "@")
	}
	return out, nil
}
