package notify

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JCampos05/Backend-Taskeer/internal/components/api"
	"github.com/JCampos05/Backend-Taskeer/internal/components/identity"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/logutil"
)

// Handler exposes a user's notification inbox.
type Handler struct {
	store  *StoreNotifier
	logger *slog.Logger
}

// NewHandler creates a notification handler.
func NewHandler(store *StoreNotifier, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logutil.Component(logger, "notify")}
}

// Routes mounts the notification endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Post("/notifications/{notificationID}/read", h.handleMarkRead)
}

// handleList handles GET /notifications. The unread query parameter
// filters to unread notifications only.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFrom(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, err := h.store.List(r.Context(), userID, unreadOnly)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err)
		api.WriteInternalError(w, "failed to list notifications")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

// handleMarkRead handles POST /notifications/{notificationID}/read.
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFrom(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	id := chi.URLParam(r, "notificationID")
	if err := h.store.MarkRead(r.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			api.WriteNotFound(w, api.ReasonNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", "error", err)
		api.WriteInternalError(w, "failed to update notification")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
