package ports

// Package ports defines interfaces (hexagonal ports) for identity and session behavior.
// Implementations live in internal/adapters and internal/data; orchestration in
// internal/service and internal/session.

import (
	"context"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

// ClaimsFetcher retrieves identity claims for a bearer token from the identity provider.
// Errors are *domainauth.Failure values.
type ClaimsFetcher interface {
	FetchClaims(ctx context.Context, token string) (domainauth.Claims, error)
}

// DirectoryResolver looks up a local user by email, case-insensitively, with roles loaded.
// It returns domainauth.ErrUserNotFound when no record matches.
type DirectoryResolver interface {
	ResolveUser(ctx context.Context, email string) (domainauth.UserRecord, error)
}

// TokenValidator turns a bearer token into an authenticated identity.
// Errors are *domainauth.Rejection values.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (domainauth.Identity, error)
}

// BeginInput carries inputs for initiating an interactive login.
type BeginInput struct {
	RedirectURL string
}

// LoginRequest is what the identity provider needs to resume a login on callback.
type LoginRequest struct {
	AuthURL  string
	State    string
	Nonce    string
	Verifier string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code        string
	Nonce       string
	Verifier    string
	RedirectURL string
}

// IdentityProvider is the session owner's view of the OIDC provider.
type IdentityProvider interface {
	// Begin starts an interactive login and returns the provider URL plus the values needed on callback.
	Begin(ctx context.Context, in BeginInput) (LoginRequest, error)

	// Exchange completes the login and returns the issued token set.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Token, error)

	// Restore re-establishes a session from the provider's persisted state without
	// user interaction. ok is false when the provider reports no active session.
	Restore(ctx context.Context) (tok domainauth.Token, ok bool, err error)

	// Renew asks the provider for a fresh token.
	Renew(ctx context.Context, tok domainauth.Token) (domainauth.Token, error)

	// EndSession invalidates the provider session for tok.
	EndSession(ctx context.Context, tok domainauth.Token) error
}

// TokenStore persists the provider token set between runs of the session owner.
type TokenStore interface {
	Load(ctx context.Context) (domainauth.Token, bool, error)
	Save(ctx context.Context, tok domainauth.Token) error
	Delete(ctx context.Context) error
}

// SessionArtifacts holds locally kept session markers (cookies scoped to the
// provider domain, cached credentials) that must be cleared on logout.
type SessionArtifacts interface {
	Clear(ctx context.Context) error
}

// Navigator moves the user to another surface (a page, a prompt, a URL).
type Navigator interface {
	Redirect(ctx context.Context, target string) error
}
