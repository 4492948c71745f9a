package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hylla/kanplan/internal/adapters/server/common"
	"github.com/hylla/kanplan/internal/app"
)

// stubItemService returns one fixed error for every call.
type stubItemService struct {
	err error
}

// ListItems returns the configured error.
func (s stubItemService) ListItems(context.Context, string) ([]common.ItemView, error) {
	return nil, s.err
}

// GetItem returns the configured error.
func (s stubItemService) GetItem(context.Context, string, int) (common.ItemView, error) {
	return common.ItemView{}, s.err
}

// SaveItem returns the configured error.
func (s stubItemService) SaveItem(context.Context, string, common.ItemPayload) (common.SaveResult, error) {
	return common.SaveResult{}, s.err
}

// DeleteItem returns the configured error.
func (s stubItemService) DeleteItem(context.Context, string, int) error {
	return s.err
}

// DeleteAllItems returns the configured error.
func (s stubItemService) DeleteAllItems(context.Context) error {
	return s.err
}

// ListSubtasks returns the configured error.
func (s stubItemService) ListSubtasks(context.Context, int) ([]common.ItemView, error) {
	return nil, s.err
}

// Prioritized returns the configured error.
func (s stubItemService) Prioritized(context.Context) ([]common.ItemView, error) {
	return nil, s.err
}

// History returns the configured error.
func (s stubItemService) History(context.Context) ([]common.ItemView, error) {
	return nil, s.err
}

// newTestHandler builds a handler over an in-memory service.
func newTestHandler() *Handler {
	return NewHandler(common.NewAppServiceAdapter(app.NewService(nil, nil, app.ServiceConfig{})))
}

// serve runs one request through the handler.
func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeBody decodes one JSON response body into the requested type.
func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

// TestHandlerItemLifecycle verifies create, read, update, list, and delete over HTTP.
func TestHandlerItemLifecycle(t *testing.T) {
	h := newTestHandler()

	rec := serve(t, h, http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty list status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = serve(t, h, http.MethodPost, "/tasks", `{"name":"Write","start_time":"2025-01-01T09:00:00Z","duration":"1h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	created := decodeBody[common.SaveResult](t, rec)
	if !created.Created || created.Item.ID != 1 || created.Item.Status != "NEW" {
		t.Fatalf("unexpected create result %#v", created)
	}

	rec = serve(t, h, http.MethodPost, "/tasks", `{"id":1,"name":"Write more","status":"IN_PROGRESS","start_time":"2025-01-01T09:00:00Z","duration":"2h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("update status = %d, want %d body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	updated := decodeBody[common.SaveResult](t, rec)
	if updated.Created || updated.Item.Name != "Write more" || updated.Item.EndTime != "2025-01-01T11:00:00Z" {
		t.Fatalf("unexpected update result %#v", updated)
	}

	rec = serve(t, h, http.MethodGet, "/tasks/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeBody[common.ItemView](t, rec); got.Status != "IN_PROGRESS" {
		t.Fatalf("status = %q, want IN_PROGRESS", got.Status)
	}

	rec = serve(t, h, http.MethodGet, "/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeBody[ListResponse](t, rec); len(got.Items) != 1 || got.Items[0].ID != 1 {
		t.Fatalf("unexpected history %#v", got)
	}

	rec = serve(t, h, http.MethodDelete, "/tasks/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusOK)
	}
	rec = serve(t, h, http.MethodGet, "/tasks/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestHandlerEpicRoutes verifies subtask listing and derived epic windows.
func TestHandlerEpicRoutes(t *testing.T) {
	h := newTestHandler()

	rec := serve(t, h, http.MethodPost, "/epics", `{"name":"Release","start_time":"2025-01-05T00:00:00Z","duration":"1h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create epic status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = serve(t, h, http.MethodPost, "/subtasks", `{"name":"Tag","epic_id":1,"start_time":"2025-02-05T00:00:00Z","duration":"10h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create subtask status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = serve(t, h, http.MethodGet, "/epics/1/subtasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("subtasks status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeBody[ListResponse](t, rec); len(got.Items) != 1 || got.Items[0].EpicID != 1 {
		t.Fatalf("unexpected subtasks %#v", got)
	}

	rec = serve(t, h, http.MethodGet, "/epics/1", "")
	epic := decodeBody[common.ItemView](t, rec)
	if epic.StartTime != "2025-01-05T00:00:00Z" || epic.EndTime != "2025-02-05T10:00:00Z" {
		t.Fatalf("unexpected derived window %s..%s", epic.StartTime, epic.EndTime)
	}

	rec = serve(t, h, http.MethodGet, "/prioritized", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("prioritized status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeBody[ListResponse](t, rec); len(got.Items) != 2 || got.Items[0].ID != 1 {
		t.Fatalf("unexpected prioritized order %#v", got)
	}

	rec = serve(t, h, http.MethodDelete, "/epics/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete epic status = %d", rec.Code)
	}
	rec = serve(t, h, http.MethodGet, "/subtasks", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("subtasks after cascade status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = serve(t, h, http.MethodGet, "/prioritized", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty prioritized status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestHandlerPostWithUnusedIDCreates verifies POST with an unknown id adds the item under that id.
func TestHandlerPostWithUnusedIDCreates(t *testing.T) {
	h := newTestHandler()

	rec := serve(t, h, http.MethodPost, "/tasks", `{"id":7,"name":"Placed","start_time":"2025-01-01T09:00:00Z","duration":"1h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	placed := decodeBody[common.SaveResult](t, rec)
	if !placed.Created || placed.Item.ID != 7 {
		t.Fatalf("unexpected create result %#v", placed)
	}

	rec = serve(t, h, http.MethodPost, "/tasks", `{"name":"Next"}`)
	if got := decodeBody[common.SaveResult](t, rec); got.Item.ID != 8 {
		t.Fatalf("next id = %d, want 8", got.Item.ID)
	}
}

// TestHandlerEpicMoveConflict verifies moving a childless epic onto a task is rejected.
func TestHandlerEpicMoveConflict(t *testing.T) {
	h := newTestHandler()
	rec := serve(t, h, http.MethodPost, "/epics", `{"name":"Release","start_time":"2025-01-01T10:00:00Z","duration":"1h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create epic status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = serve(t, h, http.MethodPost, "/tasks", `{"name":"Busy","start_time":"2025-01-01T12:00:00Z","duration":"1h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = serve(t, h, http.MethodPost, "/epics", `{"id":1,"name":"Release","start_time":"2025-01-01T12:30:00Z","duration":"1h"}`)
	if rec.Code != http.StatusNotAcceptable {
		t.Fatalf("move status = %d, want %d body=%s", rec.Code, http.StatusNotAcceptable, rec.Body.String())
	}
	rec = serve(t, h, http.MethodGet, "/epics/1", "")
	if got := decodeBody[common.ItemView](t, rec); got.StartTime != "2025-01-01T10:00:00Z" {
		t.Fatalf("epic start = %q, want unchanged", got.StartTime)
	}
}

// TestHandlerScheduleConflict verifies overlapping windows are rejected with 406.
func TestHandlerScheduleConflict(t *testing.T) {
	h := newTestHandler()
	rec := serve(t, h, http.MethodPost, "/tasks", `{"name":"A","start_time":"2025-01-01T00:00:00Z","duration":"1h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec = serve(t, h, http.MethodPost, "/tasks", `{"name":"B","start_time":"2025-01-01T00:30:00Z","duration":"1h"}`)
	if rec.Code != http.StatusNotAcceptable {
		t.Fatalf("conflict status = %d, want %d", rec.Code, http.StatusNotAcceptable)
	}
	if got := decodeBody[ErrorEnvelope](t, rec); got.Error.Code != "schedule_conflict" {
		t.Fatalf("code = %q, want schedule_conflict", got.Error.Code)
	}

	rec = serve(t, h, http.MethodPost, "/tasks", `{"name":"C","start_time":"2025-01-01T01:00:00Z","duration":"1h"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("touching window status = %d, want %d", rec.Code, http.StatusCreated)
	}
}

// TestHandlerDeleteAll verifies DELETE /tasks clears the store.
func TestHandlerDeleteAll(t *testing.T) {
	h := newTestHandler()
	serve(t, h, http.MethodPost, "/tasks", `{"name":"A"}`)
	serve(t, h, http.MethodPost, "/epics", `{"name":"E"}`)

	rec := serve(t, h, http.MethodDelete, "/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete all status = %d", rec.Code)
	}
	rec = serve(t, h, http.MethodGet, "/items", "")
	if got := decodeBody[ListResponse](t, rec); len(got.Items) != 0 {
		t.Fatalf("expected empty store, got %#v", got)
	}
}

// TestHandlerRequestValidation verifies malformed requests fail closed.
func TestHandlerRequestValidation(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "unknown field", method: http.MethodPost, path: "/tasks", body: `{"name":"A","color":"red"}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "trailing content", method: http.MethodPost, path: "/tasks", body: `{"name":"A"}{}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "bad duration", method: http.MethodPost, path: "/tasks", body: `{"name":"A","start_time":"2025-01-01T00:00:00Z","duration":"soon"}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "missing parent", method: http.MethodPost, path: "/subtasks", body: `{"name":"S","epic_id":9}`, status: http.StatusNotFound, code: "missing_parent"},
		{name: "unknown id update", method: http.MethodPost, path: "/tasks", body: `{"id":7,"name":"ghost"}`, status: http.StatusNotFound, code: "not_found"},
		{name: "bad id segment", method: http.MethodGet, path: "/tasks/abc", status: http.StatusNotFound, code: "not_found"},
		{name: "unknown route", method: http.MethodGet, path: "/stories", status: http.StatusNotFound, code: "not_found"},
		{name: "wrong method", method: http.MethodPut, path: "/epics", status: http.StatusMethodNotAllowed, code: "method_not_allowed"},
		{name: "delete all epics", method: http.MethodDelete, path: "/epics", status: http.StatusMethodNotAllowed, code: "method_not_allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, newTestHandler(), tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if got := decodeBody[ErrorEnvelope](t, rec); got.Error.Code != tc.code {
				t.Fatalf("code = %q, want %q", got.Error.Code, tc.code)
			}
		})
	}
}

// TestHandlerErrorMapping verifies structured status mapping for service errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: common.ErrInvalidRequest, status: http.StatusBadRequest, code: "invalid_request"},
		{err: common.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		{err: common.ErrMissingParent, status: http.StatusNotFound, code: "missing_parent"},
		{err: common.ErrScheduleConflict, status: http.StatusNotAcceptable, code: "schedule_conflict"},
		{err: common.ErrDuplicateID, status: http.StatusConflict, code: "duplicate_id"},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := NewHandler(stubItemService{err: tc.err})
			rec := serve(t, h, http.MethodGet, "/history", "")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if got := decodeBody[ErrorEnvelope](t, rec); got.Error.Code != tc.code {
				t.Fatalf("code = %q, want %q", got.Error.Code, tc.code)
			}
		})
	}
}

// TestHandlerWithoutService verifies a nil service reports unavailable.
func TestHandlerWithoutService(t *testing.T) {
	rec := serve(t, NewHandler(nil), http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
