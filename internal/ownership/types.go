// Package ownership implements the cryptographically verified binding
// between a user and an externally sourced content record. A claim row is
// keyed by the natural (user, content) pair: re-validation converges the one
// row instead of inserting duplicates, and every attempt is retry-tracked
// for audit.
package ownership

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("ownership: not found")

// Status is the ternary outcome of ownership validation.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
)

// Reason codes attached to REJECTED claims and referential failures.
const (
	ReasonNoChannel        = "NO_CHANNEL"
	ReasonChannelMismatch  = "CHANNEL_MISMATCH"
	ReasonUserCancelled    = "USER_CANCELLED"
	ReasonUserNotFound     = "PRINCIPAL_NOT_FOUND"
	ReasonResourceNotFound = "RESOURCE_NOT_FOUND"
)

// Claim is a single ownership validation record. UserID and ContentID are
// soft references: the rows they point at come from independent lifecycles
// (OAuth providers, ingestion pipelines), so there is no database-level
// foreign key and existence is re-checked at validation time instead.
//
// UserChannelID and ContentChannelID are snapshots taken at validation time
// for audit, not live references.
type Claim struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	ContentID        uuid.UUID
	UserChannelID    string
	ContentChannelID string
	Status           Status
	ValidationHash   string
	RejectionReason  string
	RetryCount       int
	LastAttemptAt    time.Time
	CancelledByUser  bool
	VerifiedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Result is the outcome returned to callers of Validate and Cancel.
// Business-rule rejections are normal results, never errors.
type Result struct {
	Claim   *Claim
	Status  Status
	Hash    string
	Reason  string
	Message string
}
