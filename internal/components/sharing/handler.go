package sharing

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JCampos05/Backend-Taskeer/internal/components/api"
	"github.com/JCampos05/Backend-Taskeer/internal/components/identity"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/logutil"
)

// Handler exposes the sharing engine over HTTP. All routes require an
// authenticated caller; the identity middleware puts the user id in the
// request context.
type Handler struct {
	service  *Service
	resolver *Resolver
	logger   *slog.Logger
}

// NewHandler creates a sharing handler.
func NewHandler(service *Service, resolver *Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		resolver: resolver,
		logger:   logutil.Component(logger, "sharing"),
	}
}

// Routes mounts the sharing endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/share/join", h.handleJoin)
	r.Get("/share/accessible", h.handleAccessible)

	r.Route("/share/{resourceType}/{resourceID}", func(r chi.Router) {
		r.Post("/key", h.handleGenerateKey)
		r.Post("/invite", h.handleInvite)
		r.Get("/members", h.handleMembers)
		r.Put("/members/{userID}/role", h.handleModifyRole)
		r.Delete("/members/{userID}", h.handleRevoke)
		r.Post("/leave", h.handleLeave)
		r.Delete("/", h.handleUnshare)
		r.Get("/audit", h.handleAudit)
	})

	r.Post("/categories", h.handleCreateCategory)
	r.Post("/lists", h.handleCreateList)
}

// writeErr maps engine error kinds to HTTP statuses, keeping the
// engine's reason code in the envelope.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	reason := ReasonOf(err)
	switch KindOf(err) {
	case KindValidation:
		api.WriteBadRequest(w, reason, err.Error())
	case KindNotFound:
		api.WriteNotFound(w, reason, err.Error())
	case KindPermission:
		api.WriteForbidden(w, reason, err.Error())
	case KindConflict:
		api.WriteConflict(w, reason, err.Error())
	default:
		h.logger.Error("sharing operation failed", "error", err)
		api.WriteInternalError(w, "operation failed")
	}
}

func (h *Handler) resourceRef(w http.ResponseWriter, r *http.Request) (ResourceType, int64, bool) {
	rtype := ResourceType(chi.URLParam(r, "resourceType"))
	if !ValidResourceType(rtype) {
		api.WriteBadRequest(w, api.ReasonInvalidField, "resource type must be category or list")
		return "", 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "resourceID"), 10, 64)
	if err != nil || id <= 0 {
		api.WriteBadRequest(w, api.ReasonInvalidField, "invalid resource id")
		return "", 0, false
	}
	return rtype, id, true
}

func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := identity.UserIDFrom(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
	}
	return id, ok
}

// handleGenerateKey handles POST /share/{resourceType}/{resourceID}/key.
func (h *Handler) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}

	result, err := h.service.GenerateShareKey(r.Context(), rtype, id, actorID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	api.WriteJSON(w, status, result)
}

type joinRequest struct {
	Key string `json:"key"`
}

// handleJoin handles POST /share/join.
func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request")
		return
	}
	if req.Key == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "key is required")
		return
	}

	result, err := h.service.JoinByKey(r.Context(), req.Key, userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// handleInvite handles POST /share/{resourceType}/{resourceID}/invite.
func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request")
		return
	}

	result, err := h.service.InviteByEmail(r.Context(), rtype, id, actorID, req.Email, req.Role)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, result)
}

// handleMembers handles GET /share/{resourceType}/{resourceID}/members.
func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}

	members, err := h.service.Members(r.Context(), rtype, id, actorID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

type modifyRoleRequest struct {
	Role string `json:"role"`
}

// handleModifyRole handles PUT /share/{resourceType}/{resourceID}/members/{userID}/role.
func (h *Handler) handleModifyRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || targetID <= 0 {
		api.WriteBadRequest(w, api.ReasonInvalidField, "invalid user id")
		return
	}
	var req modifyRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request")
		return
	}

	result, err := h.service.ModifyRole(r.Context(), rtype, id, actorID, targetID, req.Role)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

// handleRevoke handles DELETE /share/{resourceType}/{resourceID}/members/{userID}.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || targetID <= 0 {
		api.WriteBadRequest(w, api.ReasonInvalidField, "invalid user id")
		return
	}

	if err := h.service.RevokeAccess(r.Context(), rtype, id, actorID, targetID); err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// handleLeave handles POST /share/{resourceType}/{resourceID}/leave.
func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}

	if err := h.service.Leave(r.Context(), rtype, id, userID); err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"left": true})
}

// handleUnshare handles DELETE /share/{resourceType}/{resourceID}.
func (h *Handler) handleUnshare(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}

	if err := h.service.Unshare(r.Context(), rtype, id, actorID); err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]bool{"unshared": true})
}

// handleAudit handles GET /share/{resourceType}/{resourceID}/audit.
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}
	rtype, id, ok := h.resourceRef(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.AuditTrail(r.Context(), rtype, id, actorID, limit)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleAccessible handles GET /share/accessible.
func (h *Handler) handleAccessible(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	refs, err := h.resolver.AccessibleResources(r.Context(), userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"resources": refs})
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

// handleCreateCategory handles POST /categories.
func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request")
		return
	}

	res, err := h.service.CreateCategory(r.Context(), userID, req.Name)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, res)
}

type createListRequest struct {
	Name       string `json:"name"`
	CategoryID *int64 `json:"category_id,omitempty"`
}

// handleCreateList handles POST /lists.
func (h *Handler) handleCreateList(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request")
		return
	}

	res, err := h.service.CreateList(r.Context(), userID, req.Name, req.CategoryID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, res)
}
