package ownership

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

var _ ClaimStore = (*PGClaimStore)(nil)

// PGClaimStore implements ClaimStore using PostgreSQL. Idempotency by
// natural key is enforced by the unique index on (user_id, content_id):
// Upsert is a single INSERT ... ON CONFLICT DO UPDATE, so two concurrent
// first-time validations converge on one row without application locking.
type PGClaimStore struct {
	db *sql.DB
}

func NewPGClaimStore(db *sql.DB) *PGClaimStore {
	return &PGClaimStore{db: db}
}

const claimColumns = `id, user_id, content_id, user_channel_id, content_channel_id, ownership_status,
	validation_hash, rejection_reason, retry_count, last_attempt_at, cancelled_by_user, verified_at,
	created_at, updated_at`

func (s *PGClaimStore) Get(ctx context.Context, userID, contentID uuid.UUID) (*Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+claimColumns+` from content_ownership where user_id=$1 and content_id=$2`,
		userID, contentID)
	claim, err := scanClaim(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return claim, nil
}

func (s *PGClaimStore) Upsert(ctx context.Context, claim *Claim) error {
	// greatest() covers the insert race: a writer that lost the conflict
	// arrives with retry_count 0, but the row's counter still advances by
	// exactly one attempt.
	row := s.db.QueryRowContext(ctx,
		`insert into content_ownership(
			id, user_id, content_id, user_channel_id, content_channel_id, ownership_status,
			validation_hash, rejection_reason, retry_count, last_attempt_at, cancelled_by_user, verified_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 on conflict (user_id, content_id) do update set
			user_channel_id    = excluded.user_channel_id,
			content_channel_id = excluded.content_channel_id,
			ownership_status   = excluded.ownership_status,
			validation_hash    = excluded.validation_hash,
			rejection_reason   = excluded.rejection_reason,
			retry_count        = greatest(content_ownership.retry_count + 1, excluded.retry_count),
			last_attempt_at    = excluded.last_attempt_at,
			cancelled_by_user  = excluded.cancelled_by_user,
			verified_at        = excluded.verified_at,
			updated_at         = now()
		 returning id, retry_count, created_at, updated_at`,
		claim.ID, claim.UserID, claim.ContentID, claim.UserChannelID, claim.ContentChannelID,
		string(claim.Status), claim.ValidationHash, nullReason(claim.RejectionReason),
		claim.RetryCount, claim.LastAttemptAt, claim.CancelledByUser, claim.VerifiedAt,
	)
	return row.Scan(&claim.ID, &claim.RetryCount, &claim.CreatedAt, &claim.UpdatedAt)
}

// Cancel transitions an existing row to REJECTED/USER_CANCELLED without
// advancing retry_count: cancellation is not a validation attempt, so the
// conflict arithmetic in Upsert must not run here.
func (s *PGClaimStore) Cancel(ctx context.Context, userID, contentID uuid.UUID, at time.Time) (*Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`update content_ownership set
			ownership_status  = $3,
			rejection_reason  = $4,
			cancelled_by_user = true,
			validation_hash   = null,
			verified_at       = null,
			last_attempt_at   = $5,
			updated_at        = now()
		 where user_id=$1 and content_id=$2
		 returning `+claimColumns,
		userID, contentID, string(StatusRejected), ReasonUserCancelled, at)
	claim, err := scanClaim(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return claim, nil
}

func (s *PGClaimStore) ListVerifiedByUser(ctx context.Context, userID uuid.UUID) ([]*Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+claimColumns+` from content_ownership
		 where user_id=$1 and ownership_status=$2 order by verified_at desc`,
		userID, string(StatusVerified))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Claim
	for rows.Next() {
		claim, err := scanClaim(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}

func scanClaim(scan func(dest ...any) error) (*Claim, error) {
	var (
		claim      Claim
		status     string
		hash       sql.NullString
		reason     sql.NullString
		verifiedAt sql.NullTime
	)
	err := scan(&claim.ID, &claim.UserID, &claim.ContentID, &claim.UserChannelID,
		&claim.ContentChannelID, &status, &hash, &reason, &claim.RetryCount,
		&claim.LastAttemptAt, &claim.CancelledByUser, &verifiedAt,
		&claim.CreatedAt, &claim.UpdatedAt)
	if err != nil {
		return nil, err
	}
	claim.Status = Status(status)
	claim.ValidationHash = hash.String
	claim.RejectionReason = reason.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		claim.VerifiedAt = &t
	}
	return &claim, nil
}

func nullReason(reason string) sql.NullString {
	return sql.NullString{String: reason, Valid: reason != ""}
}
