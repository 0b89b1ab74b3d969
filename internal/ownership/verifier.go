package ownership

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aguideptbr.org/internal/audit"
	"aguideptbr.org/internal/auth"
	"aguideptbr.org/internal/content"
	"aguideptbr.org/internal/obs"
)

var (
	// ErrUserNotFound means the claimed principal is absent or soft-deleted.
	ErrUserNotFound = errors.New("ownership: user not found")
	// ErrContentNotFound means the claimed content record is absent.
	ErrContentNotFound = errors.New("ownership: content not found")
)

// Verifier validates content ownership claims. The channel comparison is the
// business rule; the HMAC binds the accepted (user, content, channels) tuple
// so a VERIFIED row can later be re-checked without trusting the client.
// The hash is always computed server-side.
type Verifier struct {
	users    auth.UserStore
	contents content.Store
	claims   ClaimStore
	secret   []byte
	now      func() time.Time
}

// VerifierOption configures Verifier behavior.
type VerifierOption func(*Verifier)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier constructs a Verifier. An empty HMAC secret is a boot-time
// configuration error, not something to discover on the first request.
func NewVerifier(users auth.UserStore, contents content.Store, claims ClaimStore, secret string, opts ...VerifierOption) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("ownership: validation secret is not configured")
	}
	v := &Verifier{
		users:    users,
		contents: contents,
		claims:   claims,
		secret:   []byte(secret),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate runs one ownership validation attempt for (userID, contentID).
//
// Repeated calls with the same pair never create duplicate rows: the single
// claim row converges on the outcome of the latest attempt, with RetryCount
// counting attempts after the first. A rejection is a normal Result, not an
// error; errors are reserved for missing referents and store failures.
func (v *Verifier) Validate(ctx context.Context, userID, contentID uuid.UUID) (*Result, error) {
	user, err := v.users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ownership: find user: %w", err)
	}
	if user.Deleted() {
		return nil, ErrUserNotFound
	}

	rec, err := v.contents.Find(ctx, contentID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("ownership: find content: %w", err)
	}

	existing, err := v.claims.Get(ctx, userID, contentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("ownership: load claim: %w", err)
	}

	if user.ChannelID == "" {
		return v.rejected(ctx, existing, user, rec, ReasonNoChannel, "user has no linked channel")
	}
	if user.ChannelID != rec.ChannelID {
		return v.rejected(ctx, existing, user, rec, ReasonChannelMismatch, "channel ids do not match")
	}

	hash := v.computeHash(userID, contentID, user.ChannelID, rec.ChannelID)
	now := v.now().UTC()

	claim := v.attempt(existing, user, rec, now)
	claim.Status = StatusVerified
	claim.ValidationHash = hash
	claim.RejectionReason = ""
	claim.CancelledByUser = false
	claim.VerifiedAt = &now

	if err := v.claims.Upsert(ctx, claim); err != nil {
		return nil, fmt.Errorf("ownership: persist claim: %w", err)
	}
	// Denormalized read optimization only; the claim row is the source of
	// truth and has already committed, so a failure here must not turn the
	// verified outcome into an error.
	if err := v.contents.SetValidationHash(ctx, contentID, hash); err != nil {
		obs.Warn("content hash update failed", map[string]any{
			"content_id": contentID.String(),
			"error":      err.Error(),
		})
	}

	v.record(ctx, claim, "")
	return &Result{
		Claim:   claim,
		Status:  StatusVerified,
		Hash:    hash,
		Message: "ownership validated successfully",
	}, nil
}

// Status returns the current claim snapshot for (userID, contentID).
func (v *Verifier) Status(ctx context.Context, userID, contentID uuid.UUID) (*Claim, error) {
	return v.claims.Get(ctx, userID, contentID)
}

// Cancel transitions an existing claim to REJECTED/USER_CANCELLED with the
// cancellation flag set. It is idempotently re-callable; a later Validate
// with matching channels re-verifies and clears the flag. Cancellation is
// not a validation attempt: it goes through the store's status-only path
// and RetryCount stays where the last attempt left it.
func (v *Verifier) Cancel(ctx context.Context, userID, contentID uuid.UUID) (*Result, error) {
	claim, err := v.claims.Cancel(ctx, userID, contentID, v.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ownership: persist cancellation: %w", err)
	}
	v.record(ctx, claim, ReasonUserCancelled)
	return &Result{
		Claim:   claim,
		Status:  StatusRejected,
		Reason:  ReasonUserCancelled,
		Message: "ownership claim cancelled by user",
	}, nil
}

// VerifiedItem joins a VERIFIED claim with its content record.
type VerifiedItem struct {
	Record     *content.Record
	ClaimID    uuid.UUID
	Hash       string
	VerifiedAt *time.Time
}

// VerifiedContent lists the caller's verified content. Claims whose content
// record has since been removed by the ingestion pipeline are skipped, which
// is the price of the soft-reference model.
func (v *Verifier) VerifiedContent(ctx context.Context, userID uuid.UUID) ([]VerifiedItem, error) {
	user, err := v.users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ownership: find user: %w", err)
	}
	if user.Deleted() {
		return nil, ErrUserNotFound
	}

	claims, err := v.claims.ListVerifiedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ownership: list claims: %w", err)
	}
	if len(claims) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ContentID)
	}
	records, err := v.contents.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ownership: load content: %w", err)
	}
	byID := make(map[uuid.UUID]*content.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	var out []VerifiedItem
	for _, c := range claims {
		rec, ok := byID[c.ContentID]
		if !ok {
			continue
		}
		out = append(out, VerifiedItem{
			Record:     rec,
			ClaimID:    c.ID,
			Hash:       c.ValidationHash,
			VerifiedAt: c.VerifiedAt,
		})
	}
	return out, nil
}

func (v *Verifier) rejected(ctx context.Context, existing *Claim, user *auth.User, rec *content.Record, reason, message string) (*Result, error) {
	now := v.now().UTC()
	claim := v.attempt(existing, user, rec, now)
	claim.Status = StatusRejected
	claim.RejectionReason = reason
	claim.ValidationHash = ""
	claim.VerifiedAt = nil

	if err := v.claims.Upsert(ctx, claim); err != nil {
		return nil, fmt.Errorf("ownership: persist claim: %w", err)
	}
	v.record(ctx, claim, reason)
	return &Result{
		Claim:   claim,
		Status:  StatusRejected,
		Reason:  reason,
		Message: message,
	}, nil
}

// attempt folds this validation attempt into the existing claim, or starts a
// fresh one with RetryCount zero. Channel snapshots refresh on every attempt.
func (v *Verifier) attempt(existing *Claim, user *auth.User, rec *content.Record, now time.Time) *Claim {
	if existing != nil {
		existing.UserChannelID = user.ChannelID
		existing.ContentChannelID = rec.ChannelID
		existing.RetryCount++
		existing.LastAttemptAt = now
		return existing
	}
	return &Claim{
		ID:               uuid.New(),
		UserID:           user.ID,
		ContentID:        rec.ID,
		UserChannelID:    user.ChannelID,
		ContentChannelID: rec.ChannelID,
		RetryCount:       0,
		LastAttemptAt:    now,
	}
}

// computeHash binds the tuple with HMAC-SHA256 over the canonical textual
// forms concatenated in fixed order. Output is 64 hex characters.
func (v *Verifier) computeHash(userID, contentID uuid.UUID, userChannel, contentChannel string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(userID.String()))
	mac.Write([]byte(contentID.String()))
	mac.Write([]byte(userChannel))
	mac.Write([]byte(contentChannel))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) record(ctx context.Context, claim *Claim, reason string) {
	obs.ObserveOwnershipValidation(string(claim.Status), reason)
	_ = audit.LogEvent(ctx, "ownership_validation", map[string]any{
		"user_id":      claim.UserID.String(),
		"content_id":   claim.ContentID.String(),
		"status":       string(claim.Status),
		"reason":       reason,
		"retry_count":  claim.RetryCount,
		"cancelled":    claim.CancelledByUser,
		"attempted_at": claim.LastAttemptAt.Format(time.RFC3339),
	})
}
