package consoleapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	httpx "github.com/target/opsconsole/internal/http"
	mocksauth "github.com/target/opsconsole/internal/mocks/auth"
)

var operator = domainauth.Identity{
	ID:                "42",
	Email:             "ana@example.org",
	DisplayName:       "Ana Sousa",
	Roles:             []domainauth.Role{domainauth.RoleOperator},
	ProviderSubjectID: "kc-2",
}

// newServer runs the real API router over a stub validator.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	noAccount := domainauth.Reject(domainauth.FailureNoLocalAccount, domainauth.ErrUserNotFound)
	noAccount.Email = "Ana@Example.org"

	validator := mocksauth.NewStubValidator().
		Accept("valid-xyz2", operator).
		Reject("valid-xyz", noAccount).
		Reject("expired-abc", domainauth.Reject(domainauth.FailureInvalidToken, nil)).
		Reject("valid-html", domainauth.Reject(domainauth.FailureMalformedResponse, nil)).
		Reject("db-down", domainauth.Reject(domainauth.FailureDirectoryUnavailable, errors.New("refused"))).
		Reject("bug", errors.New("unexpected"))

	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterServices{
		Validator: validator,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(url, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	for _, bad := range []string{"", "not a url", "/relative"} {
		_, err := NewClient(bad, nil)
		assert.Error(t, err, bad)
	}
	c, err := NewClient("https://console.example.org/", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://console.example.org/api/session/validate", c.endpoint(validatePath))
}

func TestClient_Validate_Success(t *testing.T) {
	c := newTestClient(t, newServer(t).URL)

	identity, err := c.Validate(context.Background(), "valid-xyz2")
	require.NoError(t, err)
	assert.Equal(t, operator, identity)
}

func TestClient_Validate_Rejections(t *testing.T) {
	c := newTestClient(t, newServer(t).URL)

	tests := []struct {
		token     string
		kind      domainauth.FailureKind
		transient bool
	}{
		{token: "", kind: domainauth.FailureNoToken},
		{token: "expired-abc", kind: domainauth.FailureInvalidToken},
		{token: "valid-html", kind: domainauth.FailureMalformedResponse},
		{token: "valid-xyz", kind: domainauth.FailureNoLocalAccount},
		{token: "db-down", kind: domainauth.FailureDirectoryUnavailable, transient: true},
		{token: "bug", kind: domainauth.FailureProviderUnreachable, transient: true},
		{token: "unknown", kind: domainauth.FailureInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := c.Validate(context.Background(), tt.token)
			rej, ok := domainauth.AsRejection(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.kind, rej.Kind)
			assert.Equal(t, tt.transient, rej.Transient())
		})
	}
}

func TestClient_Validate_NoLocalAccountKeepsEmail(t *testing.T) {
	c := newTestClient(t, newServer(t).URL)

	_, err := c.Validate(context.Background(), "valid-xyz")
	rej, ok := domainauth.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "Ana@Example.org", rej.Email)
	assert.ErrorIs(t, err, domainauth.ErrUserNotFound)
}

func TestClient_Validate_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Validate(context.Background(), "valid-xyz2")
	assert.Equal(t, domainauth.FailureProviderUnreachable, domainauth.KindOf(err))
}

func TestClient_Validate_GatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Validate(context.Background(), "valid-xyz2")
	rej, ok := domainauth.AsRejection(err)
	require.True(t, ok)
	assert.True(t, rej.Transient())
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Validate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, &http.Client{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.Validate(context.Background(), "valid-xyz2")
	assert.Equal(t, domainauth.FailureProviderUnreachable, domainauth.KindOf(err))
}

func TestClient_Me(t *testing.T) {
	c := newTestClient(t, newServer(t).URL)

	identity, err := c.Me(context.Background(), "valid-xyz2")
	require.NoError(t, err)
	assert.Equal(t, "42", identity.ID)

	_, err = c.Me(context.Background(), "expired-abc")
	assert.Equal(t, domainauth.FailureInvalidToken, domainauth.KindOf(err))
}

func TestRejectionFromResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   domainauth.FailureKind
	}{
		{name: "401 without body", status: 401, body: "", kind: domainauth.FailureInvalidToken},
		{name: "401 claims", status: 401, body: `{"error":"incomplete_claims"}`, kind: domainauth.FailureIncompleteClaims},
		{name: "401 with transient kind", status: 401, body: `{"error":"directory_unavailable"}`, kind: domainauth.FailureInvalidToken},
		{name: "503 provider", status: 503, body: `{"error":"provider_unreachable"}`, kind: domainauth.FailureProviderUnreachable},
		{name: "404 route", status: 404, body: `{"error":"not_found"}`, kind: domainauth.FailureProviderUnreachable},
		{name: "400 json", status: 400, body: `{"error":"invalid_json"}`, kind: domainauth.FailureProviderUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, rejectionFromResponse(tt.status, []byte(tt.body)).Kind)
		})
	}
}
