package identity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JCampos05/Backend-Taskeer/internal/components/api"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/logutil"
)

// Handler exposes registration, login and logout endpoints.
type Handler struct {
	users    UserRepo
	sessions SessionRepo
	auth     *UserAuth
	ttl      time.Duration
	logger   *slog.Logger
}

// NewHandler creates an identity handler.
func NewHandler(users UserRepo, sessions SessionRepo, auth *UserAuth, ttl time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		sessions: sessions,
		auth:     auth,
		ttl:      ttl,
		logger:   logutil.Component(logger, "identity"),
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleRegister handles POST /api/auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request")
		return
	}
	if req.Name == "" || req.Email == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "name and email are required")
		return
	}
	if len(req.Password) < 8 {
		api.WriteBadRequest(w, api.ReasonInvalidField, "password must be at least 8 characters")
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		api.WriteInternalError(w, "failed to hash password")
		return
	}

	user := &User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			api.WriteConflict(w, api.ReasonConflict, "email already registered")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		api.WriteInternalError(w, "failed to create user")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	api.WriteJSON(w, http.StatusCreated, user)
}

// HandleLogin handles POST /api/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), h.users, req.Email, req.Password)
	if err != nil {
		// Same response for unknown email and wrong password.
		api.WriteUnauthorized(w, api.ReasonInvalidCredentials, "invalid email or password")
		return
	}

	session, err := h.sessions.Create(r.Context(), user.ID, h.ttl)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		api.WriteInternalError(w, "failed to create session")
		return
	}

	api.WriteJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	})
}

// HandleLogout handles POST /api/auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			h.logger.Warn("failed to delete session", "error", err)
		}
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
