package domain

import (
	"slices"
	"strings"
)

// Kind tags which variant an Item is.
type Kind string

// Item kinds.
const (
	KindTask    Kind = "TASK"
	KindEpic    Kind = "EPIC"
	KindSubtask Kind = "SUBTASK"
)

var validKinds = []Kind{KindTask, KindEpic, KindSubtask}

// Status is the workflow status of an item.
type Status string

// Status values.
const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Item is a task, an epic, or a subtask. Kind selects which of the
// variant-specific fields are meaningful:
//
//   - KindEpic uses SubtaskIDs and BaseWindow; Window is the derived window.
//   - KindSubtask uses EpicID.
//
// Items are values. Stores replace them whole and never mutate a stored item in place.
type Item struct {
	ID          int
	Kind        Kind
	Name        string
	Description string
	Status      Status
	Window      Window

	SubtaskIDs []int
	BaseWindow Window

	EpicID int
}

// ItemInput holds the caller-supplied fields for a new or replacement item.
type ItemInput struct {
	Kind        Kind
	Name        string
	Description string
	Status      Status
	Window      Window
	// BaseWindow is the declared epic window. When zero, Window is used.
	BaseWindow Window
	EpicID     int
}

// NewItem validates in and returns an item bound to id.
func NewItem(id int, in ItemInput) (Item, error) {
	if id <= 0 {
		return Item{}, ErrInvalidID
	}
	kind, err := ParseKind(string(in.Kind))
	if err != nil {
		return Item{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Item{}, ErrInvalidName
	}
	status := StatusNew
	if strings.TrimSpace(string(in.Status)) != "" {
		status, err = ParseStatus(string(in.Status))
		if err != nil {
			return Item{}, err
		}
	}
	if err := validateWindow(in.Window); err != nil {
		return Item{}, err
	}

	item := Item{
		ID:          id,
		Kind:        kind,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		Window:      normalizeWindow(in.Window),
	}
	switch kind {
	case KindEpic:
		base := in.BaseWindow
		if base.Start.IsZero() && base.Duration == 0 {
			base = in.Window
		}
		if err := validateWindow(base); err != nil {
			return Item{}, err
		}
		item.BaseWindow = normalizeWindow(base)
	case KindSubtask:
		if in.EpicID <= 0 {
			return Item{}, ErrInvalidParentID
		}
		item.EpicID = in.EpicID
	}
	return item, nil
}

// NewTask is shorthand for NewItem with KindTask.
func NewTask(id int, name, description string, window Window) (Item, error) {
	return NewItem(id, ItemInput{Kind: KindTask, Name: name, Description: description, Window: window})
}

// NewEpic is shorthand for NewItem with KindEpic; window becomes the base window.
func NewEpic(id int, name, description string, window Window) (Item, error) {
	return NewItem(id, ItemInput{Kind: KindEpic, Name: name, Description: description, Window: window})
}

// NewSubtask is shorthand for NewItem with KindSubtask.
func NewSubtask(id, epicID int, name, description string, window Window) (Item, error) {
	return NewItem(id, ItemInput{Kind: KindSubtask, Name: name, Description: description, Window: window, EpicID: epicID})
}

// Input returns the replacement input that reproduces the item's caller-owned fields.
func (i Item) Input() ItemInput {
	return ItemInput{
		Kind:        i.Kind,
		Name:        i.Name,
		Description: i.Description,
		Status:      i.Status,
		Window:      i.Window,
		BaseWindow:  i.BaseWindow,
		EpicID:      i.EpicID,
	}
}

// WithStatus returns a copy of the item with a new status.
func (i Item) WithStatus(status Status) Item {
	out := i.Clone()
	out.Status = status
	return out
}

// Clone returns a copy that shares no slices with i.
func (i Item) Clone() Item {
	i.SubtaskIDs = slices.Clone(i.SubtaskIDs)
	return i
}

// ParseKind canonicalizes a kind tag.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	if kind == "" {
		return KindTask, nil
	}
	if !slices.Contains(validKinds, kind) {
		return "", ErrInvalidKind
	}
	return kind, nil
}

// ParseStatus canonicalizes status spellings such as "todo" or "in-progress".
func ParseStatus(raw string) (Status, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "new", "todo", "to-do":
		return StatusNew, nil
	case "in_progress", "in-progress", "progress", "doing":
		return StatusInProgress, nil
	case "done", "complete", "completed":
		return StatusDone, nil
	default:
		return "", ErrInvalidStatus
	}
}
