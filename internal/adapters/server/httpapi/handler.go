// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/kanplan/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	items common.ItemService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// ListResponse wraps one list of items.
type ListResponse struct {
	Items []common.ItemView `json:"items"`
}

// NewHandler constructs one HTTP API adapter over an item service.
func NewHandler(items common.ItemService) *Handler {
	return &Handler{items: items}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.items == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "item service is not configured",
		})
		return
	}

	segments := strings.Split(normalizePath(r.URL.Path), "/")
	switch {
	case len(segments) == 1 && segments[0] == "prioritized":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handlePrioritized(w, r)
	case len(segments) == 1 && segments[0] == "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleHistory(w, r)
	case len(segments) == 1 && segments[0] == "items":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleList(w, r, "")
	case len(segments) == 1 && isCollection(segments[0]):
		h.serveCollection(w, r, segments[0])
	case len(segments) == 2 && isCollection(segments[0]):
		id, ok := parseID(segments[1])
		if !ok {
			writeNotFound(w)
			return
		}
		h.serveItem(w, r, segments[0], id)
	case len(segments) == 3 && segments[0] == "epics" && segments[2] == "subtasks":
		id, ok := parseID(segments[1])
		if !ok {
			writeNotFound(w)
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListSubtasks(w, r, id)
	default:
		writeNotFound(w)
	}
}

// serveCollection serves `/tasks`, `/epics`, and `/subtasks`.
func (h *Handler) serveCollection(w http.ResponseWriter, r *http.Request, collection string) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r, collection)
	case http.MethodPost:
		h.handleSave(w, r, collection)
	case http.MethodDelete:
		if collection != "tasks" {
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
			return
		}
		h.handleDeleteAll(w, r)
	default:
		if collection == "tasks" {
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
			return
		}
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// serveItem serves `/{collection}/{id}`.
func (h *Handler) serveItem(w http.ResponseWriter, r *http.Request, collection string, id int) {
	switch r.Method {
	case http.MethodGet:
		item, err := h.items.GetItem(r.Context(), collection, id)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := h.items.DeleteItem(r.Context(), collection, id); err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

// handleList serves GET on one collection. An empty collection is reported as not found.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, collection string) {
	items, err := h.items.ListItems(r.Context(), collection)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if len(items) == 0 && collection != "" {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "no " + collection + " stored",
		})
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items})
}

// handleSave serves POST on one collection: create without id, replace with id.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request, collection string) {
	var payload common.ItemPayload
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.items.SaveItem(r.Context(), collection, payload)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleDeleteAll serves DELETE `/tasks`.
func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.items.DeleteAllItems(r.Context()); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": "all"})
}

// handleListSubtasks serves GET `/epics/{id}/subtasks`.
func (h *Handler) handleListSubtasks(w http.ResponseWriter, r *http.Request, epicID int) {
	items, err := h.items.ListSubtasks(r.Context(), epicID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items})
}

// handlePrioritized serves GET `/prioritized`. An empty index is reported as not found.
func (h *Handler) handlePrioritized(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.Prioritized(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if len(items) == 0 {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "no scheduled items",
		})
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items})
}

// handleHistory serves GET `/history`.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.History(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Items: items})
}

// isCollection reports whether one path segment names an item collection.
func isCollection(segment string) bool {
	switch segment {
	case "tasks", "epics", "subtasks":
		return true
	default:
		return false
	}
}

// parseID parses one positive path id.
func parseID(raw string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrScheduleConflict):
		writeJSONError(w, http.StatusNotAcceptable, APIError{
			Code:    "schedule_conflict",
			Message: err.Error(),
			Hint:    "Pick a window that does not overlap an existing item; touching endpoints are allowed.",
		})
	case errors.Is(err, common.ErrMissingParent):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "missing_parent",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrDuplicateID):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "duplicate_id",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeNotFound writes the unknown-endpoint response.
func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
