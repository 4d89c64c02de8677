package auth

// Package auth contains domain-level types for identity bridging and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role is an application role name as stored in the user directory.
// Comparison is exact and case-sensitive.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Token is the credential set issued by the identity provider.
// Only AccessToken is sent to the server; the rest stays with the session owner.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Valid reports whether the access token is present and not past its expiry.
func (t Token) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || now.Before(t.Expiry)
}

// Claims are the identity attributes asserted by the provider's userinfo endpoint.
// They are returned verbatim; normalization belongs to the directory lookup.
type Claims struct {
	Subject           string
	Email             string
	PreferredUsername string
	// ProviderRoles are informational only and never drive access decisions.
	ProviderRoles []string
}

// UserRecord is a local account as read from the user directory.
type UserRecord struct {
	ID         string
	Email      string
	GivenNames string
	Surnames   string
	Roles      []Role
}

// DisplayName joins given names and surnames, falling back to the email.
func (u UserRecord) DisplayName() string {
	name := strings.TrimSpace(strings.Join([]string{
		strings.TrimSpace(u.GivenNames),
		strings.TrimSpace(u.Surnames),
	}, " "))
	if name == "" {
		return u.Email
	}
	return name
}

// Identity is the reconciled, application-local principal for a request.
type Identity struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	DisplayName       string `json:"displayName"`
	Roles             []Role `json:"roles"`
	ProviderSubjectID string `json:"providerSubjectId"`
}

// HasRole reports whether the identity holds role exactly.
func (i Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NewIdentity builds an Identity from a directory record and provider claims.
// Identity fields and roles come from the directory record.
func NewIdentity(rec UserRecord, claims Claims) Identity {
	roles := make([]Role, len(rec.Roles))
	copy(roles, rec.Roles)
	return Identity{
		ID:                rec.ID,
		Email:             rec.Email,
		DisplayName:       rec.DisplayName(),
		Roles:             roles,
		ProviderSubjectID: claims.Subject,
	}
}
