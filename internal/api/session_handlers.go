// Package api provides HTTP handlers for the Image Space API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/amirunpri2018/image-space/internal/iqr"
	"github.com/amirunpri2018/image-space/internal/middleware"
	"github.com/amirunpri2018/image-space/internal/search"
	"github.com/amirunpri2018/image-space/internal/session"
	"github.com/amirunpri2018/image-space/internal/validate"
)

// UpdateSessionRequest represents the request body for updating session
// metadata. Only display fields are mutable; the sid, owner, and label
// sets never change through this endpoint.
type UpdateSessionRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SessionHandlers holds dependencies for session HTTP handlers.
type SessionHandlers struct {
	service *search.Service
}

// NewSessionHandlers creates a new SessionHandlers instance.
func NewSessionHandlers(service *search.Service) *SessionHandlers {
	return &SessionHandlers{service: service}
}

// CreateSession handles POST /sessions - starts a new search session for
// the authenticated user and returns its durable record.
func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	rec, err := h.service.CreateSession(r.Context(), ownerID)
	if err != nil {
		code, status, msg := classifySessionError(err)
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, status, code, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rec)
}

// ListSessions handles GET /sessions - lists the authenticated user's
// session records, newest first.
func (h *SessionHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	recs, err := h.service.ListSessions(r.Context(), ownerID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list sessions")
		return
	}
	if recs == nil {
		recs = []*session.Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recs)
}

// SessionFolder handles GET /sessions/folder - ensures and returns the
// authenticated user's session folder.
func (h *SessionHandlers) SessionFolder(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	folder, err := h.service.SessionFolder(r.Context(), ownerID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to resolve session folder")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(folder)
}

// UpdateSession handles PATCH /sessions/{sid} - updates a session's
// display name and description. Only the owner may update a record.
func (h *SessionHandlers) UpdateSession(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())
	if ownerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	sid := strings.TrimSpace(r.PathValue("sid"))
	if _, err := validate.SID(sid); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid sid: "+err.Error())
		return
	}

	var req UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Name == nil && req.Description == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "at least one of name or description is required")
		return
	}

	if req.Name != nil {
		sanitized, err := validate.SessionName(*req.Name)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid session name: "+err.Error())
			return
		}
		req.Name = &sanitized
	}
	if req.Description != nil {
		sanitized, err := validate.Description(*req.Description)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid description: "+err.Error())
			return
		}
		req.Description = &sanitized
	}

	rec, err := h.service.UpdateSession(r.Context(), ownerID, sid, req.Name, req.Description)
	if err != nil {
		code, status, msg := classifySessionError(err)
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, status, code, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// classifySessionError maps service errors to an error code, HTTP status,
// and client-facing message.
func classifySessionError(err error) (code string, status int, msg string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return ErrCodeSessionNotFound, http.StatusNotFound, "Session not found"
	case errors.Is(err, search.ErrNotOwner):
		return ErrCodeForbidden, http.StatusForbidden, "Session belongs to another user"
	case errors.Is(err, iqr.ErrEngineUnavailable):
		return ErrCodeEngineUnavailable, http.StatusBadGateway, "Ranking engine is unavailable"
	default:
		return ErrCodeInternal, http.StatusInternalServerError, "Internal server error"
	}
}
