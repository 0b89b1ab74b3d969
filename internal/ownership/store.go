package ownership

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClaimStore persists ownership claims. Upsert must converge on the natural
// (user_id, content_id) key: the storage layer enforces uniqueness so that
// two concurrent first-time validations race safely into a single row.
//
// Upsert counts as a validation attempt and advances retry_count; Cancel is
// a status transition only and must leave the counter untouched.
type ClaimStore interface {
	Get(ctx context.Context, userID, contentID uuid.UUID) (*Claim, error)
	Upsert(ctx context.Context, claim *Claim) error
	Cancel(ctx context.Context, userID, contentID uuid.UUID, at time.Time) (*Claim, error)
	ListVerifiedByUser(ctx context.Context, userID uuid.UUID) ([]*Claim, error)
}
