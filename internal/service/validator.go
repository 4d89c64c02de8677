package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	apperrors "github.com/target/opsconsole/internal/errors"
	"github.com/target/opsconsole/internal/observability/metrics"
	"github.com/target/opsconsole/internal/observability/statsd"
	"github.com/target/opsconsole/internal/ports"
	"golang.org/x/sync/singleflight"
)

const (
	defaultClaimsTimeout    = 5 * time.Second
	defaultDirectoryTimeout = 3 * time.Second
)

// TokenValidatorConfig holds tuning and observability settings for TokenValidator.
type TokenValidatorConfig struct {
	// ClaimsTimeout bounds the provider userinfo call.
	ClaimsTimeout time.Duration
	// DirectoryTimeout bounds the directory lookup.
	DirectoryTimeout time.Duration
	Logger           *slog.Logger
	Metrics          statsd.Sink
}

// TokenValidatorOptions groups dependencies for TokenValidator.
type TokenValidatorOptions struct {
	Claims    ports.ClaimsFetcher     // Required
	Directory ports.DirectoryResolver // Required
	Config    TokenValidatorConfig
}

// TokenValidator turns a provider bearer token into an application Identity.
// It holds no per-request state; concurrent validations of the same token
// share one round trip.
type TokenValidator struct {
	claims           ports.ClaimsFetcher
	directory        ports.DirectoryResolver
	claimsTimeout    time.Duration
	directoryTimeout time.Duration
	logger           *slog.Logger
	metrics          statsd.Sink
	group            singleflight.Group
}

var _ ports.TokenValidator = (*TokenValidator)(nil)

// NewTokenValidator constructs a TokenValidator.
func NewTokenValidator(opts TokenValidatorOptions) *TokenValidator {
	if opts.Claims == nil {
		panic("ClaimsFetcher is required")
	}
	if opts.Directory == nil {
		panic("DirectoryResolver is required")
	}

	cfg := opts.Config
	if cfg.ClaimsTimeout <= 0 {
		cfg.ClaimsTimeout = defaultClaimsTimeout
	}
	if cfg.DirectoryTimeout <= 0 {
		cfg.DirectoryTimeout = defaultDirectoryTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenValidator{
		claims:           opts.Claims,
		directory:        opts.Directory,
		claimsTimeout:    cfg.ClaimsTimeout,
		directoryTimeout: cfg.DirectoryTimeout,
		logger:           logger.With("component", "token_validator"),
		metrics:          cfg.Metrics,
	}
}

// Validate resolves token to an Identity. Every failure is a *domainauth.Rejection.
func (v *TokenValidator) Validate(ctx context.Context, token string) (domainauth.Identity, error) {
	start := time.Now()

	if strings.TrimSpace(token) == "" {
		rej := domainauth.Reject(domainauth.FailureNoToken, nil)
		v.observe(ctx, start, rej)
		return domainauth.Identity{}, rej
	}

	// The shared call must not be cut short by whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := v.group.DoChan(tokenKey(token), func() (any, error) {
		return v.validate(shared, token)
	})

	var (
		identity domainauth.Identity
		err      error
	)
	select {
	case <-ctx.Done():
		err = domainauth.Reject(domainauth.FailureProviderUnreachable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			err = res.Err
		} else {
			identity = copyIdentity(res.Val.(domainauth.Identity))
		}
	}

	v.observe(ctx, start, err)
	if err != nil {
		return domainauth.Identity{}, err
	}
	return identity, nil
}

func (v *TokenValidator) validate(ctx context.Context, token string) (domainauth.Identity, error) {
	claimsCtx, cancelClaims := context.WithTimeout(ctx, v.claimsTimeout)
	claims, err := v.claims.FetchClaims(claimsCtx, token)
	cancelClaims()
	if err != nil {
		return domainauth.Identity{}, domainauth.Reject(domainauth.KindOf(err), err)
	}

	if strings.TrimSpace(claims.Email) == "" {
		return domainauth.Identity{}, domainauth.Reject(domainauth.FailureIncompleteClaims, nil)
	}

	dirCtx, cancelDir := context.WithTimeout(ctx, v.directoryTimeout)
	rec, err := v.directory.ResolveUser(dirCtx, claims.Email)
	cancelDir()
	switch {
	case errors.Is(err, domainauth.ErrUserNotFound):
		rej := domainauth.Reject(domainauth.FailureNoLocalAccount, err)
		rej.Email = claims.Email
		return domainauth.Identity{}, rej
	case err != nil:
		return domainauth.Identity{}, domainauth.Reject(domainauth.FailureDirectoryUnavailable, err)
	}

	if len(claims.ProviderRoles) > 0 {
		v.logger.DebugContext(ctx, "provider roles ignored for authorization",
			"user_id", rec.ID,
			"provider_roles", claims.ProviderRoles,
		)
	}

	return domainauth.NewIdentity(rec, claims), nil
}

func (v *TokenValidator) observe(ctx context.Context, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		rej, ok := domainauth.AsRejection(err)
		switch {
		case !ok:
			result = metrics.ResultError
			v.logger.ErrorContext(ctx, "token validation failed", "error", err)
		case rej.Transient():
			result = metrics.ResultTransient
			v.logger.WarnContext(ctx, "token validation unavailable",
				"kind", rej.Kind,
				"db_error", string(apperrors.GetCode(rej.Cause)),
				"error", rej.Cause,
			)
		default:
			result = metrics.ResultRejected
			v.logger.InfoContext(ctx, "token rejected", "reason", rej.Reason, "kind", rej.Kind, "email", rej.Email)
		}
	}
	metrics.EmitValidation(v.metrics, metrics.ValidationMetric{
		Result:   result,
		Err:      err,
		Duration: time.Since(start),
	})
}

// tokenKey keeps raw tokens out of the singleflight map.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func copyIdentity(in domainauth.Identity) domainauth.Identity {
	out := in
	out.Roles = make([]domainauth.Role, len(in.Roles))
	copy(out.Roles, in.Roles)
	return out
}
