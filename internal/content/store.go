package content

import (
	"context"

	"github.com/google/uuid"
)

// Store describes content record persistence. The ownership verifier reads
// records and writes the denormalized validation hash; everything else is
// ordinary CRUD glue.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Find(ctx context.Context, id uuid.UUID) (*Record, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Record, error)
	SetValidationHash(ctx context.Context, id uuid.UUID, hash string) error
}
