package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
)

const testClientID = "opsctl"

// fakeIDP is a minimal Keycloak-shaped provider: discovery, JWKS, token and logout endpoints.
type fakeIDP struct {
	t      *testing.T
	srv    *httptest.Server
	key    *rsa.PrivateKey
	signer jose.Signer

	mu          sync.Mutex
	nonce       string
	issued      int
	tokenForms  []url.Values
	logoutForms []url.Values
	logoutCode  int
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "k1"),
	)
	require.NoError(t, err)

	f := &fakeIDP{t: t, key: key, signer: signer, logoutCode: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("/jwks", f.jwks)
	mux.HandleFunc("/token", f.token)
	mux.HandleFunc("/logout", f.logout)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIDP) issuer() string { return f.srv.URL }

func (f *fakeIDP) setNonce(n string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce = n
}

func (f *fakeIDP) tokenRequests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenForms...)
}

func (f *fakeIDP) logoutRequests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.logoutForms...)
}

func (f *fakeIDP) discovery(w http.ResponseWriter, _ *http.Request) {
	writeTestJSON(w, http.StatusOK, map[string]any{
		"issuer":                                f.srv.URL,
		"authorization_endpoint":                f.srv.URL + "/auth",
		"token_endpoint":                        f.srv.URL + "/token",
		"userinfo_endpoint":                     f.srv.URL + "/userinfo",
		"jwks_uri":                              f.srv.URL + "/jwks",
		"end_session_endpoint":                  f.srv.URL + "/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (f *fakeIDP) jwks(w http.ResponseWriter, _ *http.Request) {
	writeTestJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key: &f.key.PublicKey, KeyID: "k1", Algorithm: string(jose.RS256), Use: "sig",
	}}})
}

func (f *fakeIDP) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())

	f.mu.Lock()
	f.tokenForms = append(f.tokenForms, r.PostForm)
	f.issued++
	n := f.issued
	nonce := f.nonce
	f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "revoked" {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		if r.PostForm.Get("refresh_token") == "boom" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		nonce = ""
	default:
		writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	writeTestJSON(w, http.StatusOK, map[string]any{
		"access_token":  "access-" + strconv.Itoa(n),
		"refresh_token": "refresh-" + strconv.Itoa(n),
		"token_type":    "Bearer",
		"expires_in":    300,
		"id_token":      f.idToken(testClientID, nonce),
	})
}

func (f *fakeIDP) idToken(aud, nonce string) string {
	now := time.Now()
	claims := map[string]any{
		"iss":   f.srv.URL,
		"sub":   "kc-sub-1",
		"aud":   aud,
		"exp":   now.Add(5 * time.Minute).Unix(),
		"iat":   now.Unix(),
		"email": "ana@example.org",
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	payload, err := json.Marshal(claims)
	require.NoError(f.t, err)
	sig, err := f.signer.Sign(payload)
	require.NoError(f.t, err)
	raw, err := sig.CompactSerialize()
	require.NoError(f.t, err)
	return raw
}

func (f *fakeIDP) logout(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	f.mu.Lock()
	f.logoutForms = append(f.logoutForms, r.PostForm)
	code := f.logoutCode
	f.mu.Unlock()
	w.WriteHeader(code)
}

func writeTestJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
