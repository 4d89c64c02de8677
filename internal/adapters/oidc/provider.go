package oidc

// Package oidc provides OIDC/OAuth adapters: a userinfo-backed claims fetcher for the
// server and an authorization-code (PKCE) identity provider for the console client.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
	"golang.org/x/oauth2"
)

// ErrNoRefreshToken is returned by Renew when the token set cannot be renewed.
var ErrNoRefreshToken = errors.New("token has no refresh token")

// expirySkew renews tokens slightly before they expire.
const expirySkew = 30 * time.Second

// Provider implements ports.IdentityProvider using OIDC discovery and OAuth2 with PKCE.
type Provider struct {
	config        *oauth2.Config
	verifier      *gooidc.IDTokenVerifier
	endSessionURL string
	httpClient    *http.Client
	store         ports.TokenStore
	now           func() time.Time
}

var _ ports.IdentityProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	// Issuer is the realm issuer URL, e.g. https://sso.example.com/realms/ops.
	Issuer   string
	ClientID string
	// ClientSecret is optional; public clients rely on PKCE alone.
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Store        ports.TokenStore
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
	Now          func() time.Time
}

// providerMetadata holds discovery fields go-oidc does not expose directly.
type providerMetadata struct {
	EndSessionEndpoint string `json:"end_session_endpoint"`
}

// NewProvider creates a new OIDC provider, performing discovery once.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("token store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email", gooidc.ScopeOfflineAccess}
	}

	op, err := gooidc.NewProvider(withClient(ctx, httpClient), strings.TrimSuffix(cfg.Issuer, "/"))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	var meta providerMetadata
	if claimsErr := op.Claims(&meta); claimsErr != nil {
		return nil, fmt.Errorf("parse discovery document: %w", claimsErr)
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
		verifier:      op.Verifier(&gooidc.Config{ClientID: cfg.ClientID, Now: now}),
		endSessionURL: meta.EndSessionEndpoint,
		httpClient:    httpClient,
		store:         cfg.Store,
		now:           now,
	}, nil
}

func withClient(ctx context.Context, c *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c)
}

// Begin returns the authorization URL along with state, nonce and PKCE verifier.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (ports.LoginRequest, error) {
	redirectURL := in.RedirectURL
	if redirectURL == "" {
		redirectURL = p.config.RedirectURL
	}
	if redirectURL == "" {
		return ports.LoginRequest{}, errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return ports.LoginRequest{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return ports.LoginRequest{}, fmt.Errorf("generate nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("redirect_uri", redirectURL),
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.S256ChallengeOption(verifier),
	)
	return ports.LoginRequest{AuthURL: authURL, State: state, Nonce: nonce, Verifier: verifier}, nil
}

// Exchange trades the authorization code for tokens, verifies the ID token and persists the set.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Token, error) {
	if in.Code == "" {
		return domainauth.Token{}, errors.New("authorization code is required")
	}
	if in.Verifier == "" {
		return domainauth.Token{}, errors.New("PKCE verifier is required")
	}

	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(in.Verifier)}
	if in.RedirectURL != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", in.RedirectURL))
	}
	tok, err := p.config.Exchange(withClient(ctx, p.httpClient), in.Code, opts...)
	if err != nil {
		return domainauth.Token{}, fmt.Errorf("exchange code for token: %w", err)
	}

	out := toDomainToken(tok, "")
	if out.IDToken != "" {
		if verifyErr := p.verifyIDToken(ctx, out.IDToken, in.Nonce); verifyErr != nil {
			return domainauth.Token{}, verifyErr
		}
	}
	if saveErr := p.store.Save(ctx, out); saveErr != nil {
		return domainauth.Token{}, fmt.Errorf("persist token: %w", saveErr)
	}
	return out, nil
}

// Restore loads the persisted token set. Tokens near expiry are renewed first.
// ok is false when nothing is persisted or the provider no longer honors the session.
func (p *Provider) Restore(ctx context.Context) (domainauth.Token, bool, error) {
	tok, ok, err := p.store.Load(ctx)
	if err != nil {
		return domainauth.Token{}, false, fmt.Errorf("load token: %w", err)
	}
	if !ok || tok.AccessToken == "" {
		return domainauth.Token{}, false, nil
	}
	if tok.Valid(p.now().Add(expirySkew)) {
		return tok, true, nil
	}

	renewed, err := p.Renew(ctx, tok)
	switch {
	case err == nil:
		return renewed, true, nil
	case errors.Is(err, ErrNoRefreshToken) || isInvalidGrant(err):
		if delErr := p.store.Delete(ctx); delErr != nil {
			return domainauth.Token{}, false, fmt.Errorf("drop stale token: %w", delErr)
		}
		return domainauth.Token{}, false, nil
	default:
		return domainauth.Token{}, false, err
	}
}

// Renew exchanges the refresh token for a new token set and persists it.
func (p *Provider) Renew(ctx context.Context, tok domainauth.Token) (domainauth.Token, error) {
	if tok.RefreshToken == "" {
		return domainauth.Token{}, ErrNoRefreshToken
	}
	// A past expiry forces the token source to hit the token endpoint.
	src := p.config.TokenSource(withClient(ctx, p.httpClient), &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Unix(1, 0),
	})
	fresh, err := src.Token()
	if err != nil {
		return domainauth.Token{}, fmt.Errorf("refresh token: %w", err)
	}

	out := toDomainToken(fresh, tok.IDToken)
	if out.RefreshToken == "" {
		out.RefreshToken = tok.RefreshToken
	}
	if out.IDToken != "" && out.IDToken != tok.IDToken {
		if verifyErr := p.verifyIDToken(ctx, out.IDToken, ""); verifyErr != nil {
			return domainauth.Token{}, verifyErr
		}
	}
	if saveErr := p.store.Save(ctx, out); saveErr != nil {
		return domainauth.Token{}, fmt.Errorf("persist token: %w", saveErr)
	}
	return out, nil
}

// EndSession logs the refresh token out at the provider and drops the persisted token.
// The local token is dropped even when the provider call fails.
func (p *Provider) EndSession(ctx context.Context, tok domainauth.Token) error {
	var endErr error
	if p.endSessionURL != "" && (tok.RefreshToken != "" || tok.IDToken != "") {
		endErr = p.postLogout(ctx, tok)
	}
	if delErr := p.store.Delete(ctx); delErr != nil {
		return errors.Join(endErr, fmt.Errorf("delete token: %w", delErr))
	}
	return endErr
}

func (p *Provider) postLogout(ctx context.Context, tok domainauth.Token) error {
	form := url.Values{"client_id": {p.config.ClientID}}
	if p.config.ClientSecret != "" {
		form.Set("client_secret", p.config.ClientSecret)
	}
	if tok.RefreshToken != "" {
		form.Set("refresh_token", tok.RefreshToken)
	}
	if tok.IDToken != "" {
		form.Set("id_token_hint", tok.IDToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endSessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("end session: provider returned %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) verifyIDToken(ctx context.Context, rawID, expectedNonce string) error {
	idTok, err := p.verifier.Verify(withClient(ctx, p.httpClient), rawID)
	if err != nil {
		return fmt.Errorf("verify id_token: %w", err)
	}
	if expectedNonce != "" && idTok.Nonce != expectedNonce {
		return errors.New("invalid nonce")
	}
	return nil
}

func toDomainToken(tok *oauth2.Token, fallbackIDToken string) domainauth.Token {
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		idToken = fallbackIDToken
	}
	return domainauth.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		Expiry:       tok.Expiry,
	}
}

// isInvalidGrant reports whether the token endpoint rejected the refresh token itself.
func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	return re.ErrorCode == "invalid_grant" || (re.Response != nil && re.Response.StatusCode == http.StatusUnauthorized)
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
