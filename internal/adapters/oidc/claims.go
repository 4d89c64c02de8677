package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
	"golang.org/x/oauth2"
)

const (
	// DefaultRolesClaimPath locates realm roles in a Keycloak userinfo payload.
	DefaultRolesClaimPath = "realm_access.roles"

	maxUserInfoBytes = 1 << 20
	bodyExcerptBytes = 256
)

// ClaimsFetcherConfig holds configuration for the userinfo-backed claims fetcher.
type ClaimsFetcherConfig struct {
	UserInfoURL string
	// RolesClaimPath is a JMESPath expression evaluated against the userinfo document.
	RolesClaimPath string
	HTTPClient     *http.Client // Optional, defaults to a client with a 10s timeout
	Logger         *slog.Logger
}

// ClaimsFetcher implements ports.ClaimsFetcher against an OIDC userinfo endpoint.
type ClaimsFetcher struct {
	userInfoURL string
	rolesPath   string
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ ports.ClaimsFetcher = (*ClaimsFetcher)(nil)

// NewClaimsFetcher creates a ClaimsFetcher.
func NewClaimsFetcher(cfg ClaimsFetcherConfig) (*ClaimsFetcher, error) {
	if cfg.UserInfoURL == "" {
		return nil, errors.New("userinfo URL is required")
	}
	rolesPath := strings.TrimSpace(cfg.RolesClaimPath)
	if rolesPath == "" {
		rolesPath = DefaultRolesClaimPath
	}
	if _, err := jmespath.Compile(rolesPath); err != nil {
		return nil, fmt.Errorf("compile roles claim path %q: %w", rolesPath, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimsFetcher{
		userInfoURL: cfg.UserInfoURL,
		rolesPath:   rolesPath,
		httpClient:  httpClient,
		logger:      logger.With("component", "claims_fetcher"),
	}, nil
}

// FetchClaims calls the userinfo endpoint with the bearer token and returns the claims verbatim.
// Every error is a *domainauth.Failure.
func (f *ClaimsFetcher) FetchClaims(ctx context.Context, token string) (domainauth.Claims, error) {
	if token == "" {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureInvalidToken, nil, "empty bearer token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.userInfoURL, nil)
	if err != nil {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureProviderUnreachable, err, "build userinfo request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.bearerClient(ctx, token).Do(req)
	if err != nil {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureProviderUnreachable, err, "userinfo request")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.DebugContext(ctx, "close userinfo body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureProviderUnreachable, err, "read userinfo body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureInvalidToken, nil,
			"userinfo status %d: %s", resp.StatusCode, excerpt(body))
	}

	return f.parseClaims(body)
}

// bearerClient wraps the configured transport so the token is sent as Authorization: Bearer.
func (f *ClaimsFetcher) bearerClient(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	c.Timeout = f.httpClient.Timeout
	return c
}

func (f *ClaimsFetcher) parseClaims(body []byte) (domainauth.Claims, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureMalformedResponse, err, "decode userinfo: %s", excerpt(body))
	}
	if doc == nil {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureMalformedResponse, nil, "userinfo is not an object")
	}

	sub, _ := doc["sub"].(string)
	if sub == "" {
		return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureMalformedResponse, nil, "userinfo missing sub")
	}
	email, _ := doc["email"].(string)
	username, _ := doc["preferred_username"].(string)

	return domainauth.Claims{
		Subject:           sub,
		Email:             email,
		PreferredUsername: username,
		ProviderRoles:     f.extractRoles(doc),
	}, nil
}

// extractRoles evaluates the roles claim path. Missing or non-string entries are ignored.
func (f *ClaimsFetcher) extractRoles(doc map[string]any) []string {
	res, err := jmespath.Search(f.rolesPath, doc)
	if err != nil || res == nil {
		return nil
	}
	items, ok := res.([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(items))
	for _, it := range items {
		if s, isStr := it.(string); isStr && s != "" {
			roles = append(roles, s)
		}
	}
	return roles
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodyExcerptBytes {
		s = s[:bodyExcerptBytes] + "..."
	}
	return s
}

// IssuerURL joins the provider base URL and realm as {base}/realms/{realm}.
// An empty realm returns base unchanged.
func IssuerURL(baseURL, realm string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if realm == "" {
		return base
	}
	return base + "/realms/" + realm
}

// DiscoverUserInfoURL reads the issuer's discovery document and returns its userinfo endpoint.
func DiscoverUserInfoURL(ctx context.Context, issuer string, httpClient *http.Client) (string, error) {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("oidc discovery: %w", err)
	}
	endpoint := op.UserInfoEndpoint()
	if endpoint == "" {
		return "", fmt.Errorf("issuer %s does not advertise a userinfo endpoint", issuer)
	}
	return endpoint, nil
}
