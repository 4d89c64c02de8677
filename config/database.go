package config

import "time"

// MaxClaimsCacheTTL caps how long userinfo answers may be reused.
const MaxClaimsCacheTTL = time.Minute

// DBConfig contains PostgreSQL configuration for the user directory.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"opsconsole"`
	Password string `env:"PASSWORD" envDefault:"opsconsole"`
	Name     string `env:"NAME"     envDefault:"opsconsole"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart applies the embedded directory schema during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"false"`
	MaxOpenConns         int  `env:"MAX_OPEN_CONNS"          envDefault:"25"`
}

// Sanitize applies pool guardrails.
func (c *DBConfig) Sanitize() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// RedisConfig contains Redis configuration. Redis is optional and only backs the claims cache.
type RedisConfig struct {
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig controls the Redis-backed claims cache.
type CacheConfig struct {
	// ClaimsTTL is how long a successful userinfo answer is reused. Zero disables the cache.
	ClaimsTTL time.Duration `env:"CACHE_CLAIMS_TTL" envDefault:"0s"`
	// ClaimsPrefix namespaces cache keys.
	ClaimsPrefix string `env:"CACHE_CLAIMS_PREFIX" envDefault:"opsconsole:claims:"`
}

// Sanitize clamps the TTL into [0, MaxClaimsCacheTTL].
func (c *CacheConfig) Sanitize() {
	if c.ClaimsTTL < 0 {
		c.ClaimsTTL = 0
	}
	if c.ClaimsTTL > MaxClaimsCacheTTL {
		c.ClaimsTTL = MaxClaimsCacheTTL
	}
}
