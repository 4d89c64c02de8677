package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider  = (*MockIdentityProvider)(nil)
	_ ports.TokenStore        = (*MemoryTokenStore)(nil)
	_ ports.TokenValidator    = (*StubValidator)(nil)
	_ ports.DirectoryResolver = (*MemoryDirectory)(nil)
	_ ports.Navigator         = (*RecordingNavigator)(nil)
	_ ports.SessionArtifacts  = (*RecordingArtifacts)(nil)
)

// MockIdentityProvider simulates an IdP for tests with deterministic state/nonce handling.
// Func fields override the default behavior.
type MockIdentityProvider struct {
	BeginFunc      func(ctx context.Context, in ports.BeginInput) (ports.LoginRequest, error)
	ExchangeFunc   func(ctx context.Context, in ports.ExchangeInput) (domainauth.Token, error)
	RestoreFunc    func(ctx context.Context) (domainauth.Token, bool, error)
	RenewFunc      func(ctx context.Context, tok domainauth.Token) (domainauth.Token, error)
	EndSessionFunc func(ctx context.Context, tok domainauth.Token) error

	AuthURL string
	// Token is returned by Exchange and Restore when no func is set.
	Token domainauth.Token

	mu        sync.Mutex
	calls     map[string]int
	beginSeq  int
	renewSeq  int
	endTokens []domainauth.Token
}

// NewMockIdentityProvider creates a MockIdentityProvider issuing tok.
func NewMockIdentityProvider(tok domainauth.Token) *MockIdentityProvider {
	return &MockIdentityProvider{AuthURL: "https://mock-idp/auth", Token: tok}
}

func (m *MockIdentityProvider) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times method name was invoked.
func (m *MockIdentityProvider) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// EndedTokens returns the tokens passed to EndSession.
func (m *MockIdentityProvider) EndedTokens() []domainauth.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domainauth.Token(nil), m.endTokens...)
}

func (m *MockIdentityProvider) Begin(ctx context.Context, in ports.BeginInput) (ports.LoginRequest, error) {
	m.record("Begin")
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.mu.Lock()
	m.beginSeq++
	n := m.beginSeq
	m.mu.Unlock()
	return ports.LoginRequest{
		AuthURL:  m.AuthURL,
		State:    fmt.Sprintf("state-%d", n),
		Nonce:    fmt.Sprintf("nonce-%d", n),
		Verifier: fmt.Sprintf("verifier-%d", n),
	}, nil
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Token, error) {
	m.record("Exchange")
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return m.Token, nil
}

func (m *MockIdentityProvider) Restore(ctx context.Context) (domainauth.Token, bool, error) {
	m.record("Restore")
	if m.RestoreFunc != nil {
		return m.RestoreFunc(ctx)
	}
	return m.Token, m.Token.AccessToken != "", nil
}

func (m *MockIdentityProvider) Renew(ctx context.Context, tok domainauth.Token) (domainauth.Token, error) {
	m.record("Renew")
	if m.RenewFunc != nil {
		return m.RenewFunc(ctx, tok)
	}
	m.mu.Lock()
	m.renewSeq++
	n := m.renewSeq
	m.mu.Unlock()
	tok.AccessToken = fmt.Sprintf("%s-r%d", strings.SplitN(tok.AccessToken, "-r", 2)[0], n)
	tok.Expiry = time.Now().Add(5 * time.Minute)
	return tok, nil
}

func (m *MockIdentityProvider) EndSession(ctx context.Context, tok domainauth.Token) error {
	m.record("EndSession")
	m.mu.Lock()
	m.endTokens = append(m.endTokens, tok)
	m.mu.Unlock()
	if m.EndSessionFunc != nil {
		return m.EndSessionFunc(ctx, tok)
	}
	return nil
}

// MemoryTokenStore is an in-memory token store for unit tests.
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok *domainauth.Token
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore { return &MemoryTokenStore{} }

func (m *MemoryTokenStore) Load(_ context.Context) (domainauth.Token, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return domainauth.Token{}, false, nil
	}
	return *m.tok, true, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, tok domainauth.Token) error {
	if tok.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = &tok
	return nil
}

func (m *MemoryTokenStore) Delete(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}

// StubValidator answers Validate from a per-token table, falling back to Func.
type StubValidator struct {
	Func func(ctx context.Context, token string) (domainauth.Identity, error)

	mu      sync.Mutex
	results map[string]stubResult
	seen    []string
}

type stubResult struct {
	identity domainauth.Identity
	err      error
}

// NewStubValidator creates an empty StubValidator. Unknown tokens are rejected as invalid_token.
func NewStubValidator() *StubValidator {
	return &StubValidator{results: make(map[string]stubResult)}
}

// Accept makes token validate to identity.
func (s *StubValidator) Accept(token string, identity domainauth.Identity) *StubValidator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[token] = stubResult{identity: identity}
	return s
}

// Reject makes token fail with err.
func (s *StubValidator) Reject(token string, err error) *StubValidator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[token] = stubResult{err: err}
	return s
}

// Seen returns tokens passed to Validate in call order.
func (s *StubValidator) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func (s *StubValidator) Validate(ctx context.Context, token string) (domainauth.Identity, error) {
	s.mu.Lock()
	s.seen = append(s.seen, token)
	res, ok := s.results[token]
	s.mu.Unlock()
	if ok {
		return res.identity, res.err
	}
	if s.Func != nil {
		return s.Func(ctx, token)
	}
	if token == "" {
		return domainauth.Identity{}, domainauth.Reject(domainauth.FailureNoToken, nil)
	}
	return domainauth.Identity{}, domainauth.Reject(domainauth.FailureInvalidToken, nil)
}

// MemoryDirectory resolves users from an in-memory list using case-insensitive matching.
type MemoryDirectory struct {
	Users []domainauth.UserRecord
	// Err, when set, is returned for every lookup.
	Err error
}

func (d *MemoryDirectory) ResolveUser(_ context.Context, email string) (domainauth.UserRecord, error) {
	if d.Err != nil {
		return domainauth.UserRecord{}, d.Err
	}
	for _, u := range d.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domainauth.UserRecord{}, domainauth.ErrUserNotFound
}

// RecordingNavigator records redirect targets.
type RecordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *RecordingNavigator) Redirect(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	return nil
}

// Targets returns redirect targets in call order.
func (n *RecordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

// RecordingArtifacts counts Clear calls.
type RecordingArtifacts struct {
	mu      sync.Mutex
	cleared int
}

func (a *RecordingArtifacts) Clear(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleared++
	return nil
}

// Cleared returns how many times Clear was called.
func (a *RecordingArtifacts) Cleared() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cleared
}
