// Package consoleapi is the console client's view of the opsconsole server.
package consoleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

const (
	validatePath     = "/api/session/validate"
	mePath           = "/api/me"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// Client validates tokens against the server boundary.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ ports.TokenValidator = (*Client)(nil)

// NewClient creates a Client for the server at baseURL. A nil httpClient gets a default timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	KeycloakEmail string `json:"keycloakEmail"`
}

// Validate posts token to the validate endpoint and maps the response back to
// an Identity or a *domainauth.Rejection. Transport failures and unrecognised
// answers are reported as provider_unreachable.
func (c *Client) Validate(ctx context.Context, token string) (domainauth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return domainauth.Identity{}, domainauth.Reject(domainauth.FailureNoToken, nil)
	}

	payload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("encode validate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(validatePath), bytes.NewReader(payload))
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.doIdentity(req)
}

// Me fetches the identity of the token holder via the authentication-only gate.
func (c *Client) Me(ctx context.Context, token string) (domainauth.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(mePath), nil)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("build me request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return c.doIdentity(req)
}

func (c *Client) doIdentity(req *http.Request) (domainauth.Identity, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainauth.Identity{}, domainauth.Reject(domainauth.FailureProviderUnreachable, fmt.Errorf("call %s: %w", req.URL.Path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domainauth.Identity{}, domainauth.Reject(domainauth.FailureProviderUnreachable, fmt.Errorf("read %s response: %w", req.URL.Path, err))
	}

	if resp.StatusCode == http.StatusOK {
		var identity domainauth.Identity
		if err := json.Unmarshal(body, &identity); err != nil {
			return domainauth.Identity{}, domainauth.Reject(domainauth.FailureProviderUnreachable, fmt.Errorf("decode identity: %w", err))
		}
		return identity, nil
	}
	return domainauth.Identity{}, rejectionFromResponse(resp.StatusCode, body)
}

// rejectionFromResponse rebuilds the server's verdict from an error response.
func rejectionFromResponse(status int, body []byte) *domainauth.Rejection {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	cause := fmt.Errorf("server status %d: %s", status, strings.TrimSpace(eb.Message))

	kind := domainauth.FailureKind(eb.Error)
	switch {
	case status == http.StatusNotFound && kind == domainauth.FailureNoLocalAccount:
		rej := domainauth.Reject(kind, errors.Join(domainauth.ErrUserNotFound, cause))
		rej.Email = eb.KeycloakEmail
		return rej
	case status == http.StatusBadRequest && kind == domainauth.FailureNoToken:
		return domainauth.Reject(kind, cause)
	case status == http.StatusUnauthorized && !kind.Transient() && knownKind(kind):
		return domainauth.Reject(kind, cause)
	case status == http.StatusUnauthorized:
		return domainauth.Reject(domainauth.FailureInvalidToken, cause)
	case status >= http.StatusInternalServerError && kind.Transient():
		return domainauth.Reject(kind, cause)
	default:
		return domainauth.Reject(domainauth.FailureProviderUnreachable, cause)
	}
}

func knownKind(k domainauth.FailureKind) bool {
	switch k {
	case domainauth.FailureInvalidToken, domainauth.FailureMalformedResponse, domainauth.FailureIncompleteClaims:
		return true
	}
	return false
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}
