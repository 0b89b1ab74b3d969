package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"aguideptbr.org/internal/auth"
	"aguideptbr.org/internal/ownership"
)

type ownershipRequest struct {
	ContentID string `json:"content_id"`
}

type ownershipResponse struct {
	ClaimID          string     `json:"claim_id"`
	UserID           string     `json:"user_id"`
	ContentID        string     `json:"content_id"`
	UserChannelID    string     `json:"user_channel_id,omitempty"`
	ContentChannelID string     `json:"content_channel_id,omitempty"`
	Status           string     `json:"status"`
	Hash             string     `json:"hash,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	RetryCount       int        `json:"retry_count"`
	CancelledByUser  bool       `json:"cancelled_by_user"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
	LastAttemptAt    time.Time  `json:"last_attempt_at"`
	Message          string     `json:"message,omitempty"`
}

// handleOwnershipValidate runs one validation attempt for the caller and the
// requested content. A business-rule rejection is a 200 with a REJECTED
// status: the caller asked a question and the answer was no.
func (a *API) handleOwnershipValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req ownershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "content_id must be a valid UUID")
		return
	}

	result, err := a.verifier.Validate(r.Context(), identity.UserID, contentID)
	if err != nil {
		writeOwnershipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOwnershipResponse(result))
}

func (a *API) handleOwnershipStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	contentID, err := uuid.Parse(r.URL.Query().Get("content_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "content_id must be a valid UUID")
		return
	}

	claim, err := a.verifier.Status(r.Context(), identity.UserID, contentID)
	if err != nil {
		writeOwnershipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse(claim, ""))
}

func (a *API) handleOwnershipCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req ownershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "content_id must be a valid UUID")
		return
	}

	result, err := a.verifier.Cancel(r.Context(), identity.UserID, contentID)
	if err != nil {
		writeOwnershipError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOwnershipResponse(result))
}

type verifiedContentItem struct {
	ContentID    string     `json:"content_id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	ChannelID    string     `json:"channel_id"`
	ChannelName  string     `json:"channel_name,omitempty"`
	ClaimID      string     `json:"claim_id"`
	Hash         string     `json:"hash"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

func (a *API) handleOwnershipContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	items, err := a.verifier.VerifiedContent(r.Context(), identity.UserID)
	if err != nil {
		writeOwnershipError(w, r, err)
		return
	}
	out := make([]verifiedContentItem, 0, len(items))
	for _, item := range items {
		out = append(out, verifiedContentItem{
			ContentID:    item.Record.ID.String(),
			Title:        item.Record.Title,
			URL:          item.Record.URL,
			ThumbnailURL: item.Record.ThumbnailURL,
			ChannelID:    item.Record.ChannelID,
			ChannelName:  item.Record.ChannelName,
			ClaimID:      item.ClaimID.String(),
			Hash:         item.Hash,
			VerifiedAt:   item.VerifiedAt,
			PublishedAt:  item.Record.PublishedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": out})
}

func writeOwnershipError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ownership.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, ownership.ErrContentNotFound):
		writeError(w, r, http.StatusNotFound, "content not found")
	case errors.Is(err, ownership.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "ownership claim not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "ownership operation failed")
	}
}

func toOwnershipResponse(result *ownership.Result) ownershipResponse {
	resp := claimResponse(result.Claim, result.Message)
	resp.Reason = result.Reason
	return resp
}

func claimResponse(claim *ownership.Claim, message string) ownershipResponse {
	return ownershipResponse{
		ClaimID:          claim.ID.String(),
		UserID:           claim.UserID.String(),
		ContentID:        claim.ContentID.String(),
		UserChannelID:    claim.UserChannelID,
		ContentChannelID: claim.ContentChannelID,
		Status:           string(claim.Status),
		Hash:             claim.ValidationHash,
		Reason:           claim.RejectionReason,
		RetryCount:       claim.RetryCount,
		CancelledByUser:  claim.CancelledByUser,
		VerifiedAt:       claim.VerifiedAt,
		LastAttemptAt:    claim.LastAttemptAt,
		Message:          message,
	}
}
