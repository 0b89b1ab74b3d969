package auth

import (
	"context"

	"github.com/google/uuid"
)

// UserStore describes the principal persistence required by the auth
// subsystem. The validator only reads; mutations belong to registration and
// account management.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	// Find returns the user regardless of soft-delete state, so callers
	// can distinguish a deleted account from a missing one.
	Find(ctx context.Context, id uuid.UUID) (*User, error)
	// FindByEmail matches active (non-deleted) accounts only.
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetChannel(ctx context.Context, id uuid.UUID, channelID, channelTitle string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}
