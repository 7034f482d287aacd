package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chirpnet/chirp/internal/validation"
	"github.com/chirpnet/chirp/pkg/httputil"
)

// FollowService is the follow-ledger surface the handlers call.
type FollowService interface {
	Follow(ctx context.Context, userID, followedUserID string) (bool, error)
	Unfollow(ctx context.Context, userID, followedUserID string) (bool, error)
}

// FollowHandler serves the follow endpoints.
type FollowHandler struct {
	svc    FollowService
	logger *slog.Logger
}

// NewFollowHandler creates the handler.
func NewFollowHandler(svc FollowService, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{svc: svc, logger: logger}
}

// Follow handles POST /api/v1/users/follow.
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	in, r, err := requestInput(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	st := validation.StateFromContext(r.Context())

	already, err := h.svc.Follow(r.Context(), st.AccessClaims.UserID, bodyString(in, "followed_user_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	message := "followed"
	if already {
		message = "already following"
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: message}})
}

// Unfollow handles DELETE /api/v1/users/follow/{user_id}.
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	st := validation.StateFromContext(r.Context())

	wasAbsent, err := h.svc.Unfollow(r.Context(), st.AccessClaims.UserID, chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	message := "unfollowed"
	if wasAbsent {
		message = "already unfollowed"
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: message}})
}
