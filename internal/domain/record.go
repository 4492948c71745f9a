package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecordHeader names the flat record columns in order.
var RecordHeader = []string{"id", "type", "name", "status", "description", "start", "duration", "epic_start", "epic_duration", "epic_id"}

// Record is the flat persisted form of an item. Every field is text so file and
// database adapters can store it without knowing the item variants.
// Absent values are empty strings.
type Record struct {
	ID           string `json:"id" yaml:"id"`
	Type         string `json:"type" yaml:"type"`
	Name         string `json:"name" yaml:"name"`
	Status       string `json:"status" yaml:"status"`
	Description  string `json:"description" yaml:"description"`
	Start        string `json:"start" yaml:"start"`
	Duration     string `json:"duration" yaml:"duration"`
	EpicStart    string `json:"epic_start,omitempty" yaml:"epic_start,omitempty"`
	EpicDuration string `json:"epic_duration,omitempty" yaml:"epic_duration,omitempty"`
	EpicID       string `json:"epic_id,omitempty" yaml:"epic_id,omitempty"`
}

// RecordFromItem encodes one item. Epics carry their base window and subtasks their parent id.
func RecordFromItem(item Item) Record {
	rec := Record{
		ID:          strconv.Itoa(item.ID),
		Type:        string(item.Kind),
		Name:        item.Name,
		Status:      string(item.Status),
		Description: item.Description,
		Start:       formatStart(item.Window),
		Duration:    formatDuration(item.Window),
	}
	switch item.Kind {
	case KindEpic:
		rec.EpicStart = formatStart(item.BaseWindow)
		rec.EpicDuration = formatDuration(item.BaseWindow)
	case KindSubtask:
		rec.EpicID = strconv.Itoa(item.EpicID)
	}
	return rec
}

// Fields returns the record in RecordHeader column order.
func (r Record) Fields() []string {
	return []string{r.ID, r.Type, r.Name, r.Status, r.Description, r.Start, r.Duration, r.EpicStart, r.EpicDuration, r.EpicID}
}

// RecordFromFields rebuilds a record from RecordHeader-ordered columns.
// Trailing optional columns may be omitted.
func RecordFromFields(fields []string) (Record, error) {
	if len(fields) < 7 || len(fields) > len(RecordHeader) {
		return Record{}, fmt.Errorf("%w: expected 7 to %d fields, got %d", ErrInvalidRecord, len(RecordHeader), len(fields))
	}
	padded := make([]string, len(RecordHeader))
	copy(padded, fields)
	return Record{
		ID:           padded[0],
		Type:         padded[1],
		Name:         padded[2],
		Status:       padded[3],
		Description:  padded[4],
		Start:        padded[5],
		Duration:     padded[6],
		EpicStart:    padded[7],
		EpicDuration: padded[8],
		EpicID:       padded[9],
	}, nil
}

// ItemFromRecord decodes and validates a record. For epics the stored derived
// window is kept alongside the base window.
func ItemFromRecord(r Record) (Item, error) {
	id, err := strconv.Atoi(strings.TrimSpace(r.ID))
	if err != nil {
		return Item{}, fmt.Errorf("%w: id %q", ErrInvalidRecord, r.ID)
	}
	kind, err := ParseKind(r.Type)
	if err != nil || strings.TrimSpace(r.Type) == "" {
		return Item{}, fmt.Errorf("%w: type %q", ErrInvalidRecord, r.Type)
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		return Item{}, fmt.Errorf("%w: status %q", ErrInvalidRecord, r.Status)
	}
	window, err := parseWindow(r.Start, r.Duration)
	if err != nil {
		return Item{}, err
	}

	in := ItemInput{
		Kind:        kind,
		Name:        r.Name,
		Description: r.Description,
		Status:      status,
		Window:      window,
	}
	switch kind {
	case KindEpic:
		in.BaseWindow, err = parseWindow(r.EpicStart, r.EpicDuration)
		if err != nil {
			return Item{}, err
		}
	case KindSubtask:
		in.EpicID, err = strconv.Atoi(strings.TrimSpace(r.EpicID))
		if err != nil {
			return Item{}, fmt.Errorf("%w: epic_id %q", ErrInvalidRecord, r.EpicID)
		}
	}
	item, err := NewItem(id, in)
	if err != nil {
		return Item{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return item, nil
}

// FormatTime renders a timestamp the way records and wire payloads store it.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseTime accepts RFC 3339 timestamps and zone-less local date-times, read as UTC.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidWindow, raw)
}

// ParseDuration accepts Go duration strings; empty means absent.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidWindow, raw)
	}
	return d, nil
}

// parseWindow decodes the start/duration column pair.
func parseWindow(start, duration string) (Window, error) {
	ts, err := ParseTime(start)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	d, err := ParseDuration(duration)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return Window{Start: ts, Duration: d}, nil
}

// formatStart renders the start column.
func formatStart(w Window) string {
	return FormatTime(w.Start)
}

// formatDuration renders the duration column.
func formatDuration(w Window) string {
	if w.Duration == 0 {
		return ""
	}
	return w.Duration.String()
}
