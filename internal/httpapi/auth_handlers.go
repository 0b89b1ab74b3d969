package httpapi

import (
	"errors"
	"net/http"
	"time"

	"aguideptbr.org/internal/audit"
	"aguideptbr.org/internal/auth"
)

type registerRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userInfo  `json:"user"`
}

type userInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Surname   string `json:"surname,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ChannelID string `json:"channel_id,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.authSvc.Register(r.Context(), auth.RegisterRequest{
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "name, email and password are required")
		case errors.Is(err, auth.ErrAlreadyExists):
			writeError(w, r, http.StatusConflict, "email already registered")
		default:
			writeError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.registered", map[string]any{
		"user_id": session.User.ID.String(),
	})
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": session.User.ID.String(),
	})
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func toSessionResponse(session *auth.Session) sessionResponse {
	return sessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		ExpiresAt: session.ExpiresAt,
		User: userInfo{
			ID:        session.User.ID.String(),
			Name:      session.User.Name,
			Surname:   session.User.Surname,
			Email:     session.User.Email,
			Role:      string(session.User.Role),
			ChannelID: session.User.ChannelID,
		},
	}
}
