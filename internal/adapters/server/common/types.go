// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"strings"
)

// KindTask and related constants are the canonical wire type tags.
const (
	KindTask    = "TASK"
	KindEpic    = "EPIC"
	KindSubtask = "SUBTASK"
)

// supportedKinds stores all transport-accepted type tags in canonical order.
var supportedKinds = []string{KindTask, KindEpic, KindSubtask}

// SupportedKinds returns all canonical type tags accepted by transport adapters.
func SupportedKinds() []string {
	return append([]string(nil), supportedKinds...)
}

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrMissingParent reports a subtask whose epic does not exist.
var ErrMissingParent = errors.New("missing parent epic")

// ErrScheduleConflict reports an item whose window overlaps another item.
var ErrScheduleConflict = errors.New("schedule conflict")

// ErrDuplicateID reports an id already used by a different item.
var ErrDuplicateID = errors.New("duplicate id")

// ItemView is the wire form of one item returned to HTTP and MCP callers.
type ItemView struct {
	ID            int    `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time,omitempty"`
	Duration      string `json:"duration,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	EpicID        int    `json:"epic_id,omitempty"`
	SubtaskIDs    []int  `json:"subtask_ids,omitempty"`
	EpicStartTime string `json:"epic_start_time,omitempty"`
	EpicDuration  string `json:"epic_duration,omitempty"`
}

// ItemPayload is the wire form accepted when saving an item. ID zero creates a
// new item. Read-only view fields are accepted and ignored so callers can send
// back a view they received.
type ItemPayload struct {
	ID            int    `json:"id,omitempty"`
	Type          string `json:"type,omitempty"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Status        string `json:"status,omitempty"`
	StartTime     string `json:"start_time,omitempty"`
	Duration      string `json:"duration,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	EpicID        int    `json:"epic_id,omitempty"`
	SubtaskIDs    []int  `json:"subtask_ids,omitempty"`
	EpicStartTime string `json:"epic_start_time,omitempty"`
	EpicDuration  string `json:"epic_duration,omitempty"`
}

// SaveResult reports the stored item and whether it was created.
type SaveResult struct {
	Item    ItemView `json:"item"`
	Created bool     `json:"created"`
}

// ItemService captures the item operations exposed to transport adapters.
// An empty kind means any kind.
type ItemService interface {
	ListItems(context.Context, string) ([]ItemView, error)
	GetItem(context.Context, string, int) (ItemView, error)
	SaveItem(context.Context, string, ItemPayload) (SaveResult, error)
	DeleteItem(context.Context, string, int) error
	DeleteAllItems(context.Context) error
	ListSubtasks(context.Context, int) ([]ItemView, error)
	Prioritized(context.Context) ([]ItemView, error)
	History(context.Context) ([]ItemView, error)
}

// NormalizeKind maps route segments and type tags such as "tasks" or "subtask" onto canonical tags.
// An empty input stays empty.
func NormalizeKind(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case "task", "tasks":
		return KindTask, nil
	case "epic", "epics":
		return KindEpic, nil
	case "subtask", "subtasks", "sub_task", "sub-task":
		return KindSubtask, nil
	default:
		return "", errors.Join(ErrInvalidRequest, errors.New("unsupported type "+strings.TrimSpace(raw)))
	}
}
