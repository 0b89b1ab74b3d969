package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of user roles. Roles are stored in the database and
// re-read on every authorization check; they are never embedded in tokens.
type Role string

const (
	RoleFree    Role = "FREE"
	RolePremium Role = "PREMIUM"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleFree, RolePremium, RoleAdmin:
		return true
	}
	return false
}

// User represents a platform account. ChannelID links the account to an
// externally owned creator channel and may be empty.
type User struct {
	ID           uuid.UUID
	Name         string
	Surname      string
	Email        string
	PasswordHash string
	Role         Role
	ChannelID    string
	ChannelTitle string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the account is soft-deleted. A deleted user is
// never treated as authenticated, even when holding an unexpired token.
func (u *User) Deleted() bool {
	return u.DeletedAt != nil
}

// Identity is the outcome of a successful token validation: the caller bound
// to the token's subject. Role and profile data are intentionally absent and
// must be re-read from the store.
type Identity struct {
	UserID uuid.UUID
	Handle string
}

// Claims is the minimal signed payload. No role, name, or email profile data
// beyond the principal handle is ever signed, so privilege changes take
// effect on the next validated request without token revocation.
type Claims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Handle    string `json:"upn"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Header is the fixed JOSE header for issued tokens.
type Header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}
