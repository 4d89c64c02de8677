package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/target/opsconsole/config"
	"github.com/target/opsconsole/internal/devseed"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

// SeedDevDirectory seeds the mock-mode user plus a few fixture accounts so the
// dev identity resolves against the local directory. It does nothing outside
// dev mode or when auth is not mocked.
func SeedDevDirectory(ctx context.Context, db *sql.DB, cfg *config.AppConfig, logger *slog.Logger) error {
	if !cfg.IsDev || cfg.Auth.Mode != config.AuthModeMock {
		return nil
	}
	users := append([]devseed.User{DevDirectoryUser(cfg.Auth.DevAuth)}, devseed.DefaultUsers()...)
	return devseed.Run(ctx, db, users, logger)
}

// DevDirectoryUser maps the mock identity onto a directory account.
func DevDirectoryUser(dev config.DevAuthConfig) devseed.User {
	roles := make([]domainauth.Role, 0, len(dev.Roles))
	for _, r := range dev.Roles {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, domainauth.Role(r))
		}
	}
	return devseed.User{
		Email:      dev.Email,
		GivenNames: dev.Username,
		Roles:      roles,
	}
}
