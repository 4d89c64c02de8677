package testutil

import (
	"context"
	"database/sql"
	"time"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

// UserBuilder provides a fluent interface for seeding directory users in integration tests.
type UserBuilder struct {
	email      string
	givenNames string
	surnames   string
	roles      []domainauth.Role
}

// NewUser creates a UserBuilder for email with no roles.
func NewUser(email string) *UserBuilder {
	return &UserBuilder{email: email}
}

// WithNames sets given names and surnames.
func (b *UserBuilder) WithNames(given, surnames string) *UserBuilder {
	b.givenNames = given
	b.surnames = surnames
	return b
}

// WithRoles appends role assignments in order.
func (b *UserBuilder) WithRoles(roles ...domainauth.Role) *UserBuilder {
	b.roles = append(b.roles, roles...)
	return b
}

// Insert writes the user and its role assignments and returns the new user id.
// Roles must already exist in the roles table; assignment order follows WithRoles.
func (b *UserBuilder) Insert(t TestingTB, db *sql.DB) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id string
	err := db.QueryRowContext(ctx,
		`INSERT INTO users (email, given_names, surnames) VALUES ($1, $2, $3) RETURNING id::text`,
		b.email, b.givenNames, b.surnames,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert user %s: %v", b.email, err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, role := range b.roles {
		_, err = db.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id, assigned_at)
			SELECT $1::bigint, r.id, $3 FROM roles r WHERE r.name = $2`,
			id, string(role), base.Add(time.Duration(i)*time.Minute),
		)
		if err != nil {
			t.Fatalf("assign role %s to %s: %v", role, b.email, err)
		}
	}
	return id
}
