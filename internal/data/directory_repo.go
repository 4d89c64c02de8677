package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/opsconsole/internal/data/pgxutil"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	apperrors "github.com/target/opsconsole/internal/errors"
	"github.com/target/opsconsole/internal/ports"
)

// resolveUserQuery matches email case-insensitively in the store and aggregates
// role names in assignment order within the same round trip.
const resolveUserQuery = `
	SELECT
		u.id,
		u.email,
		u.given_names,
		u.surnames,
		COALESCE(
			array_agg(r.name ORDER BY ur.assigned_at, r.name) FILTER (WHERE r.name IS NOT NULL),
			'{}'
		) AS roles
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
	WHERE u.email ILIKE $1 ESCAPE '\'
	GROUP BY u.id
	ORDER BY u.id
	LIMIT 1`

// DirectoryRepo resolves local user accounts from Postgres. It performs no writes.
type DirectoryRepo struct {
	DB *sql.DB
}

var _ ports.DirectoryResolver = (*DirectoryRepo)(nil)

// NewDirectoryRepo creates a new DirectoryRepo.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo {
	return &DirectoryRepo{DB: db}
}

type userRow struct {
	ID         int64    `db:"id"`
	Email      string   `db:"email"`
	GivenNames string   `db:"given_names"`
	Surnames   string   `db:"surnames"`
	Roles      []string `db:"roles"`
}

// ResolveUser returns the first user whose email matches case-insensitively, with roles loaded.
// It returns domainauth.ErrUserNotFound when nothing matches. Other failures are
// *apperrors.AppError values describing the transport problem.
func (r *DirectoryRepo) ResolveUser(ctx context.Context, email string) (domainauth.UserRecord, error) {
	if strings.TrimSpace(email) == "" {
		return domainauth.UserRecord{}, apperrors.Validation("email is required")
	}

	var row userRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, resolveUserQuery, escapeLike(email))
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.UserRecord{}, domainauth.ErrUserNotFound
		}
		return domainauth.UserRecord{}, fmt.Errorf("resolve user: %w", apperrors.MapDBError(err))
	}

	roles := make([]domainauth.Role, 0, len(row.Roles))
	for _, name := range row.Roles {
		roles = append(roles, domainauth.Role(name))
	}
	return domainauth.UserRecord{
		ID:         strconv.FormatInt(row.ID, 10),
		Email:      row.Email,
		GivenNames: row.GivenNames,
		Surnames:   row.Surnames,
		Roles:      roles,
	}, nil
}

// escapeLike escapes LIKE metacharacters so the pattern matches s literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
