package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/target/opsconsole/config"
	"github.com/target/opsconsole/internal/adapters/devauth"
	"github.com/target/opsconsole/internal/adapters/oidc"
	redisadapter "github.com/target/opsconsole/internal/adapters/redis"
	"github.com/target/opsconsole/internal/data"
	"github.com/target/opsconsole/internal/observability/statsd"
	"github.com/target/opsconsole/internal/ports"
	"github.com/target/opsconsole/internal/service"
)

// ClaimsConfig contains what is needed to build the claims source.
type ClaimsConfig struct {
	Auth  config.AuthConfig
	Cache config.CacheConfig
	// RedisClient enables the claims cache when non-nil and Cache.ClaimsTTL > 0.
	RedisClient redis.UniversalClient
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// BuildClaimsFetcher creates the claims source for the configured auth mode,
// wrapped in the Redis cache when one is configured.
//
//nolint:ireturn // the concrete fetcher depends on AUTH_MODE.
func BuildClaimsFetcher(ctx context.Context, cfg ClaimsConfig) (ports.ClaimsFetcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		fetcher ports.ClaimsFetcher
		err     error
	)
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		logger.WarnContext(ctx, "AUTH_MODE=mock: tokens are not verified with an identity provider",
			"email", cfg.Auth.DevAuth.Email)
		fetcher, err = devauth.NewClaimsFetcher(devauth.Config{
			Subject:  cfg.Auth.DevAuth.Subject,
			Email:    cfg.Auth.DevAuth.Email,
			Username: cfg.Auth.DevAuth.Username,
			Roles:    cfg.Auth.DevAuth.Roles,
		})
	case config.AuthModeOAuth, "":
		fetcher, err = buildOIDCClaimsFetcher(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("build claims fetcher: %w", err)
	}

	if cfg.RedisClient == nil || cfg.Cache.ClaimsTTL <= 0 {
		return fetcher, nil
	}
	logger.InfoContext(ctx, "claims cache enabled", "ttl", cfg.Cache.ClaimsTTL)
	return redisadapter.NewCachingClaimsFetcher(cfg.RedisClient, fetcher, redisadapter.ClaimsCacheOptions{
		TTL:    cfg.Cache.ClaimsTTL,
		Prefix: cfg.Cache.ClaimsPrefix,
		Logger: logger,
	}), nil
}

func buildOIDCClaimsFetcher(ctx context.Context, cfg ClaimsConfig, logger *slog.Logger) (*oidc.ClaimsFetcher, error) {
	o := cfg.Auth.OIDC
	userinfo := o.UserInfoURL
	if userinfo == "" {
		if o.BaseURL == "" {
			return nil, errors.New("OIDC_BASE_URL or OIDC_USERINFO_URL is required in oauth mode")
		}
		issuer := oidc.IssuerURL(o.BaseURL, o.Realm)
		discovered, err := oidc.DiscoverUserInfoURL(ctx, issuer, cfg.HTTPClient)
		if err != nil {
			return nil, err
		}
		userinfo = discovered
	}
	logger.InfoContext(ctx, "claims fetcher configured", "userinfo_url", userinfo, "roles_claim_path", o.RolesClaimPath)

	return oidc.NewClaimsFetcher(oidc.ClaimsFetcherConfig{
		UserInfoURL:    userinfo,
		RolesClaimPath: o.RolesClaimPath,
		HTTPClient:     cfg.HTTPClient,
		Logger:         logger,
	})
}

// ValidatorConfig contains dependencies of the token validator.
type ValidatorConfig struct {
	Auth    config.AuthConfig
	Claims  ports.ClaimsFetcher
	DB      *sql.DB
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// BuildTokenValidator wires the claims source and the directory into a TokenValidator.
func BuildTokenValidator(cfg ValidatorConfig) (*service.TokenValidator, *data.DirectoryRepo) {
	directory := data.NewDirectoryRepo(cfg.DB)
	validator := service.NewTokenValidator(service.TokenValidatorOptions{
		Claims:    cfg.Claims,
		Directory: directory,
		Config: service.TokenValidatorConfig{
			ClaimsTimeout:    cfg.Auth.ClaimsTimeout,
			DirectoryTimeout: cfg.Auth.DirectoryTimeout,
			Logger:           cfg.Logger,
			Metrics:          cfg.Metrics,
		},
	})
	return validator, directory
}
