package redis

// Package redis provides Redis-based adapters for the opsconsole identity bridge.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
)

// MaxClaimsTTL bounds how long a provider answer may be reused.
const MaxClaimsTTL = time.Minute

// ClaimsCacheOptions configures CachingClaimsFetcher.
type ClaimsCacheOptions struct {
	// TTL of cached claims; zero disables caching. Values above MaxClaimsTTL are clamped.
	TTL    time.Duration
	Prefix string
	Logger *slog.Logger
}

// CachingClaimsFetcher decorates a ports.ClaimsFetcher with a short-lived Redis cache.
// Only successful fetches carrying an email are cached; keys are SHA-256 digests of the token.
// Redis errors degrade to a direct provider call.
type CachingClaimsFetcher struct {
	client redis.UniversalClient
	next   ports.ClaimsFetcher
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ ports.ClaimsFetcher = (*CachingClaimsFetcher)(nil)

// NewCachingClaimsFetcher creates a caching decorator around next.
func NewCachingClaimsFetcher(client redis.UniversalClient, next ports.ClaimsFetcher, opts ClaimsCacheOptions) *CachingClaimsFetcher {
	ttl := opts.TTL
	if ttl > MaxClaimsTTL {
		ttl = MaxClaimsTTL
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "claims:"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingClaimsFetcher{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.With("component", "claims_cache"),
	}
}

type cachedClaims struct {
	Subject           string   `json:"sub"`
	Email             string   `json:"email"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	ProviderRoles     []string `json:"roles,omitempty"`
}

// FetchClaims returns cached claims for token when present, otherwise delegates and caches the result.
func (c *CachingClaimsFetcher) FetchClaims(ctx context.Context, token string) (domainauth.Claims, error) {
	if c.ttl <= 0 || c.client == nil || token == "" {
		return c.next.FetchClaims(ctx, token)
	}

	key := c.key(token)
	if claims, ok := c.lookup(ctx, key); ok {
		return claims, nil
	}

	claims, err := c.next.FetchClaims(ctx, token)
	if err != nil {
		return domainauth.Claims{}, err
	}
	// Incomplete claims must be refetched once the provider profile is fixed.
	if strings.TrimSpace(claims.Email) != "" {
		c.store(ctx, key, claims)
	}
	return claims, nil
}

func (c *CachingClaimsFetcher) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *CachingClaimsFetcher) lookup(ctx context.Context, key string) (domainauth.Claims, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "claims cache read failed", "error", err)
		}
		return domainauth.Claims{}, false
	}
	var cc cachedClaims
	if unmarshalErr := json.Unmarshal(data, &cc); unmarshalErr != nil {
		c.logger.WarnContext(ctx, "claims cache entry unreadable", "error", unmarshalErr)
		return domainauth.Claims{}, false
	}
	return domainauth.Claims{
		Subject:           cc.Subject,
		Email:             cc.Email,
		PreferredUsername: cc.PreferredUsername,
		ProviderRoles:     cc.ProviderRoles,
	}, true
}

func (c *CachingClaimsFetcher) store(ctx context.Context, key string, claims domainauth.Claims) {
	data, err := json.Marshal(cachedClaims{
		Subject:           claims.Subject,
		Email:             claims.Email,
		PreferredUsername: claims.PreferredUsername,
		ProviderRoles:     claims.ProviderRoles,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "claims cache encode failed", "error", err)
		return
	}
	if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
		c.logger.WarnContext(ctx, "claims cache write failed", "error", setErr)
	}
}
