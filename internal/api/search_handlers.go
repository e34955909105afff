package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/amirunpri2018/image-space/internal/iqr"
	"github.com/amirunpri2018/image-space/internal/middleware"
	"github.com/amirunpri2018/image-space/internal/search"
	"github.com/amirunpri2018/image-space/internal/validate"
)

// RefineRequest represents the request body for submitting relevance
// feedback. The label sets are full replacements, not deltas: each call
// overwrites whatever the engine held for the session.
type RefineRequest struct {
	SID      string   `json:"sid"`
	PosUUIDs []string `json:"pos_uuids"`
	NegUUIDs []string `json:"neg_uuids"`
}

// SearchHandlers holds dependencies for refine and results HTTP handlers.
type SearchHandlers struct {
	service      *search.Service
	defaultLimit int
	maxLimit     int
}

// NewSearchHandlers creates a new SearchHandlers instance.
// defaultLimit is used when no limit query parameter is given; maxLimit
// caps client-supplied limits.
func NewSearchHandlers(service *search.Service, defaultLimit, maxLimit int) *SearchHandlers {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &SearchHandlers{
		service:      service,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Refine handles PUT /refine - pushes the session's full replacement
// label sets into the ranking engine and mirrors them into the durable
// record. The engine's response body is passed through verbatim.
func (h *SearchHandlers) Refine(w http.ResponseWriter, r *http.Request) {
	var req RefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	req.SID = strings.TrimSpace(req.SID)
	if _, err := validate.SID(req.SID); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid sid: "+err.Error())
		return
	}
	if _, err := validate.DescriptorUUIDs(req.PosUUIDs); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid pos_uuids: "+err.Error())
		return
	}
	if _, err := validate.DescriptorUUIDs(req.NegUUIDs); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid neg_uuids: "+err.Error())
		return
	}

	body, err := h.service.Refine(r.Context(), req.SID, req.PosUUIDs, req.NegUUIDs)
	if err != nil {
		code, status, msg := classifySearchError(err)
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, status, code, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	_, _ = w.Write(body)
}

// Results handles GET /results - returns one merged, ordered result page
// for the session. Backend unavailability yields an empty page with HTTP
// 200 rather than an error.
//
// Query parameters:
//   - sid: session identifier (required)
//   - offset: zero-based rank offset (default 0)
//   - limit: page size (default from config, capped at the configured max)
func (h *SearchHandlers) Results(w http.ResponseWriter, r *http.Request) {
	sid := strings.TrimSpace(r.URL.Query().Get("sid"))
	if _, err := validate.SID(sid); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid sid: "+err.Error())
		return
	}

	offset, ok := parseIntParam(r, "offset", 0)
	if !ok || offset < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "offset must be a non-negative integer")
		return
	}

	limit, ok := parseIntParam(r, "limit", h.defaultLimit)
	if !ok || limit <= 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
		return
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	page, err := h.service.Results(r.Context(), sid, offset, limit)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch results")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

// parseIntParam parses an optional integer query parameter. Returns the
// fallback when the parameter is absent, and ok=false when it is present
// but malformed.
func parseIntParam(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// classifySearchError maps refine errors to an error code, HTTP status,
// and client-facing message.
func classifySearchError(err error) (code string, status int, msg string) {
	switch {
	case errors.Is(err, iqr.ErrEngineUnavailable):
		return ErrCodeEngineUnavailable, http.StatusBadGateway, "Ranking engine is unavailable"
	case errors.Is(err, iqr.ErrNoSuchSession):
		return ErrCodeSessionNotFound, http.StatusNotFound, "Session not found"
	default:
		return ErrCodeInternal, http.StatusInternalServerError, "Internal server error"
	}
}
