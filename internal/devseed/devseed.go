// Package devseed populates the local user directory for development.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

// User is a directory account to seed.
type User struct {
	Email      string
	GivenNames string
	Surnames   string
	Roles      []domainauth.Role
}

// DefaultUsers are seeded alongside the configured dev user.
func DefaultUsers() []User {
	return []User{
		{Email: "operator@example.com", GivenNames: "Olive", Surnames: "Operator", Roles: []domainauth.Role{domainauth.RoleOperator}},
		{Email: "viewer@example.com", GivenNames: "Victor", Surnames: "Viewer", Roles: []domainauth.Role{domainauth.RoleViewer}},
	}
}

// Run upserts users and their role assignments. It is idempotent; existing
// role assignments are kept. Failures are logged per user and summarized.
func Run(ctx context.Context, db *sql.DB, users []User, logger *slog.Logger) error {
	if db == nil {
		return errors.New("devseed: database is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	failures := 0
	for _, u := range users {
		created, err := seedUser(ctx, db, u)
		if err != nil {
			logger.ErrorContext(ctx, "failed to seed directory user", "email", u.Email, "error", err)
			failures++
			continue
		}
		msg := "directory user already exists"
		if created {
			msg = "created directory user"
		}
		logger.InfoContext(ctx, msg, "email", u.Email, "roles", u.Roles)
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedUser(ctx context.Context, db *sql.DB, u User) (created bool, err error) {
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return false, errors.New("email is required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, ignoreDone(tx.Rollback()))
		}
	}()

	var id int64
	// xmax = 0 only for freshly inserted rows.
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, given_names, surnames) VALUES ($1, $2, $3)
		ON CONFLICT ((lower(email))) DO UPDATE SET email = users.email
		RETURNING id, (xmax = 0)`,
		email, u.GivenNames, u.Surnames,
	).Scan(&id, &created)
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}

	for _, role := range u.Roles {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, string(role)); err != nil {
			return false, fmt.Errorf("ensure role %s: %w", role, err)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, r.id FROM roles r WHERE r.name = $2
			ON CONFLICT (user_id, role_id) DO NOTHING`,
			id, string(role)); err != nil {
			return false, fmt.Errorf("assign role %s: %w", role, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
