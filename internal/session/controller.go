package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/observability/metrics"
	"github.com/target/opsconsole/internal/observability/statsd"
	"github.com/target/opsconsole/internal/ports"
)

const (
	defaultRefreshInterval = time.Minute
	defaultRenewWithin     = 70 * time.Second
	defaultCallTimeout     = 10 * time.Second
)

var (
	// ErrNoPendingLogin is returned when a callback arrives without a login in flight.
	ErrNoPendingLogin = errors.New("no login in progress")
	// ErrStateMismatch is returned when the callback state does not match the login request.
	ErrStateMismatch = errors.New("login state mismatch")
	// ErrNotAuthenticated is returned by operations that need an established session.
	ErrNotAuthenticated = errors.New("session not authenticated")
)

// Effects are the side effects a Controller performs on logout.
type Effects struct {
	Artifacts ports.SessionArtifacts // Required
	Navigator ports.Navigator        // Required
}

// Config tunes a Controller.
type Config struct {
	// LoginSurface is where logouts land; forced logouts add ?reason=.
	LoginSurface string
	// CallbackURL is the redirect URI registered with the provider.
	CallbackURL string
	// RefreshInterval is the period of the background refresh task.
	RefreshInterval time.Duration
	// RenewWithin renews the token when it expires sooner than this.
	RenewWithin time.Duration
	// CallTimeout bounds each provider and validator call.
	CallTimeout time.Duration
	Logger      *slog.Logger
	Metrics     statsd.Sink
	Now         func() time.Time
}

// Options groups dependencies for Controller.
type Options struct {
	Provider  ports.IdentityProvider // Required
	Validator ports.TokenValidator   // Required
	Effects   Effects
	Config    Config
}

// Controller drives one session through its lifecycle. Lifecycle operations are
// serialized; Current may be called at any time.
type Controller struct {
	provider  ports.IdentityProvider
	validator ports.TokenValidator
	artifacts ports.SessionArtifacts
	navigator ports.Navigator
	cfg       Config
	logger    *slog.Logger

	ops sync.Mutex

	mu   sync.RWMutex
	sess session

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New constructs a Controller in the unauthenticated state.
func New(opts Options) *Controller {
	if opts.Provider == nil {
		panic("IdentityProvider is required")
	}
	if opts.Validator == nil {
		panic("TokenValidator is required")
	}
	if opts.Effects.Artifacts == nil || opts.Effects.Navigator == nil {
		panic("session effects are required")
	}

	cfg := opts.Config
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.RenewWithin <= 0 {
		cfg.RenewWithin = defaultRenewWithin
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		provider:  opts.Provider,
		validator: opts.Validator,
		artifacts: opts.Effects.Artifacts,
		navigator: opts.Effects.Navigator,
		cfg:       cfg,
		logger:    logger.With("component", "session"),
		sess:      session{state: StateUnauthenticated},
	}
}

// Current returns a snapshot of the session.
func (c *Controller) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess.snapshot()
}

// AccessToken returns the bearer token of an authenticated session.
func (c *Controller) AccessToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess.identity == nil || c.sess.token.AccessToken == "" {
		return "", false
	}
	return c.sess.token.AccessToken, true
}

// Restore silently re-establishes a session from the provider's persisted state.
// It is a no-op for an already authenticated session.
func (c *Controller) Restore(ctx context.Context) (Snapshot, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	if snap := c.Current(); snap.Authenticated() {
		return snap, nil
	}
	c.setState(StateRestoring)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	tok, ok, err := c.provider.Restore(callCtx)
	cancel()
	if err != nil {
		c.setState(StateUnauthenticated)
		c.emit("restore", metrics.ResultError, err)
		return c.Current(), fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		c.setState(StateUnauthenticated)
		c.emit("restore", metrics.ResultNoSession, nil)
		return c.Current(), nil
	}

	return c.establish(ctx, "restore", tok)
}

// BeginLogin starts an explicit login and returns the provider URL to visit.
// destination is followed once the login completes.
func (c *Controller) BeginLogin(ctx context.Context, destination string) (string, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	req, err := c.provider.Begin(ctx, ports.BeginInput{RedirectURL: c.cfg.CallbackURL})
	if err != nil {
		return "", fmt.Errorf("begin login: %w", err)
	}

	c.mu.Lock()
	c.sess.pendingLogin = &pendingLogin{
		state:       req.State,
		nonce:       req.Nonce,
		verifier:    req.Verifier,
		redirectURL: c.cfg.CallbackURL,
	}
	c.sess.pendingRedirect = destination
	c.sess.logoutReason = ""
	c.mu.Unlock()

	return req.AuthURL, nil
}

// CompleteLogin handles the provider callback. The pending login is consumed by
// the first call, so a repeated callback neither exchanges nor redirects again.
func (c *Controller) CompleteLogin(ctx context.Context, code, state string) (Snapshot, error) {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	pending := c.sess.pendingLogin
	c.sess.pendingLogin = nil
	c.mu.Unlock()

	if pending == nil {
		return c.Current(), ErrNoPendingLogin
	}
	if state != pending.state {
		c.clearPendingRedirect()
		return c.Current(), ErrStateMismatch
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	tok, err := c.provider.Exchange(callCtx, ports.ExchangeInput{
		Code:        code,
		Nonce:       pending.nonce,
		Verifier:    pending.verifier,
		RedirectURL: pending.redirectURL,
	})
	cancel()
	if err != nil {
		c.clearPendingRedirect()
		c.emit("login", metrics.ResultError, err)
		return c.Current(), fmt.Errorf("complete login: %w", err)
	}

	return c.establish(ctx, "login", tok)
}

// establish validates tok and moves the session to authenticated, or forces a
// logout on a terminal rejection. Callers hold c.ops.
func (c *Controller) establish(ctx context.Context, event string, tok domainauth.Token) (Snapshot, error) {
	identity, err := c.validate(ctx, tok)
	if err != nil {
		rej := asRejection(err)
		if rej.Transient() {
			c.mu.Lock()
			c.sess.state = StateUnauthenticated
			c.sess.token = tok // kept so Logout can still end the provider session
			c.sess.rejection = rej
			c.mu.Unlock()
			c.emit(event, metrics.ResultTransient, rej)
			// The refresh cycle retries validation until it settles.
			c.startLoop()
			return c.Current(), rej
		}
		c.emit(event, metrics.ResultRejected, rej)
		c.forceLogout(ctx, ReasonUnauthorized, tok, rej)
		return c.Current(), rej
	}

	c.mu.Lock()
	c.sess.state = StateAuthenticated
	c.sess.token = tok
	c.sess.identity = &identity
	c.sess.rejection = nil
	c.sess.logoutReason = ""
	c.sess.pendingLogin = nil
	dest := c.sess.takeRedirect()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "session established", "event", event, "user_id", identity.ID)
	c.emit(event, metrics.ResultSuccess, nil)
	c.startLoop()

	if dest != "" {
		c.redirect(ctx, dest)
	}
	return c.Current(), nil
}

// Refresh renews the token when it is close to expiry and revalidates it.
// Renewal failure forces a logout; a transient validation failure keeps the session.
// A session whose establishment hit a transient failure is retried instead.
func (c *Controller) Refresh(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	if c.sess.awaitingRetry() {
		tok := c.sess.token
		c.mu.Unlock()
		return c.retryEstablish(ctx, tok)
	}
	if c.sess.state != StateAuthenticated || c.sess.identity == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.sess.state = StateRefreshing
	tok := c.sess.token
	c.mu.Unlock()

	if tok.Expiry.IsZero() || !tok.Valid(c.cfg.Now().Add(c.cfg.RenewWithin)) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		renewed, err := c.provider.Renew(callCtx, tok)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateAuthenticated)
				return ctx.Err()
			}
			c.logger.WarnContext(ctx, "token renewal failed", "error", err)
			c.emit("refresh", metrics.ResultError, err)
			c.forceLogout(ctx, ReasonSessionExpired, tok, nil)
			return fmt.Errorf("renew token: %w", err)
		}
		tok = renewed
	}

	identity, err := c.validate(ctx, tok)
	if err != nil {
		rej := asRejection(err)
		if rej.Transient() {
			c.mu.Lock()
			c.sess.state = StateAuthenticated
			c.sess.token = tok
			c.sess.rejection = rej
			c.mu.Unlock()
			c.logger.WarnContext(ctx, "revalidation unavailable; keeping session", "kind", rej.Kind)
			c.emit("refresh", metrics.ResultTransient, rej)
			return rej
		}
		c.emit("refresh", metrics.ResultRejected, rej)
		c.forceLogout(ctx, ReasonUnauthorized, tok, rej)
		return rej
	}

	c.mu.Lock()
	c.sess.state = StateAuthenticated
	c.sess.token = tok
	c.sess.identity = &identity
	c.sess.rejection = nil
	c.mu.Unlock()
	c.emit("refresh", metrics.ResultSuccess, nil)
	return nil
}

// retryEstablish revalidates a token held back by a transient failure,
// renewing it first when it is due. Callers hold c.ops.
func (c *Controller) retryEstablish(ctx context.Context, tok domainauth.Token) error {
	if !tok.Valid(c.cfg.Now().Add(c.cfg.RenewWithin)) && tok.RefreshToken != "" {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		renewed, err := c.provider.Renew(callCtx, tok)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WarnContext(ctx, "token renewal failed", "error", err)
			c.emit("restore", metrics.ResultError, err)
			c.forceLogout(ctx, ReasonSessionExpired, tok, nil)
			return fmt.Errorf("renew token: %w", err)
		}
		tok = renewed
	}
	_, err := c.establish(ctx, "restore", tok)
	return err
}

// Logout ends the session at the provider, clears local artifacts and
// navigates to the login surface. Side effects run even if one of them fails.
func (c *Controller) Logout(ctx context.Context) error {
	c.stopLoop(true)

	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	tok := c.sess.token
	c.sess.reset(StateUnauthenticated)
	c.sess.rejection = nil
	c.sess.logoutReason = ""
	c.mu.Unlock()

	err := c.teardown(ctx, tok)
	c.emit("logout", metrics.ResultSuccess, nil)
	c.redirect(ctx, c.cfg.LoginSurface)
	return err
}

// Close stops the refresh task without ending the session.
func (c *Controller) Close() {
	c.stopLoop(true)
}

// forceLogout ends the session in the invalid state. Callers hold c.ops; the
// refresh task may be the caller, so it is cancelled without waiting.
func (c *Controller) forceLogout(ctx context.Context, reason string, tok domainauth.Token, rej *domainauth.Rejection) {
	c.stopLoop(false)

	c.mu.Lock()
	c.sess.reset(StateInvalid)
	c.sess.rejection = rej
	c.sess.logoutReason = reason
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "forced logout", "reason", reason)
	if err := c.teardown(ctx, tok); err != nil {
		c.logger.WarnContext(ctx, "forced logout cleanup incomplete", "error", err)
	}
	c.emit("logout", metrics.ResultForced, rej)
	c.redirect(ctx, c.loginURL(reason))
}

func (c *Controller) teardown(ctx context.Context, tok domainauth.Token) error {
	// Detached so that a cancelled caller still clears credentials.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
	defer cancel()

	var errs []error
	if err := c.provider.EndSession(callCtx, tok); err != nil {
		errs = append(errs, fmt.Errorf("end provider session: %w", err))
	}
	if err := c.artifacts.Clear(callCtx); err != nil {
		errs = append(errs, fmt.Errorf("clear session artifacts: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Controller) validate(ctx context.Context, tok domainauth.Token) (domainauth.Identity, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return c.validator.Validate(callCtx, tok.AccessToken)
}

func (c *Controller) loginURL(reason string) string {
	u, err := url.Parse(c.cfg.LoginSurface)
	if err != nil {
		return c.cfg.LoginSurface
	}
	q := u.Query()
	q.Set("reason", reason)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Controller) redirect(ctx context.Context, target string) {
	if target == "" {
		return
	}
	if err := c.navigator.Redirect(ctx, target); err != nil {
		c.logger.WarnContext(ctx, "redirect failed", "target", target, "error", err)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.sess.state = s
	c.mu.Unlock()
}

func (c *Controller) clearPendingRedirect() {
	c.mu.Lock()
	c.sess.pendingRedirect = ""
	c.mu.Unlock()
}

func (c *Controller) emit(event, result string, err error) {
	metrics.EmitSession(c.cfg.Metrics, metrics.SessionMetric{Event: event, Result: result, Err: err})
}

// asRejection normalizes validator errors; untagged errors are treated as transient.
func asRejection(err error) *domainauth.Rejection {
	if rej, ok := domainauth.AsRejection(err); ok {
		return rej
	}
	return domainauth.Reject(domainauth.FailureProviderUnreachable, err)
}
