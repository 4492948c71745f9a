package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/domain"
)

// TestAppServiceAdapterSaveAndRead verifies create, update, and lookup through the transport contract.
func TestAppServiceAdapterSaveAndRead(t *testing.T) {
	ctx := context.Background()
	adapter := NewAppServiceAdapter(app.NewService(nil, nil, app.ServiceConfig{}))

	epic, err := adapter.SaveItem(ctx, "epics", ItemPayload{Name: "Release", StartTime: "2025-01-05T00:00:00Z", Duration: "1h"})
	if err != nil {
		t.Fatalf("SaveItem(epic) error = %v", err)
	}
	if !epic.Created || epic.Item.Type != KindEpic || epic.Item.EpicStartTime != "2025-01-05T00:00:00Z" {
		t.Fatalf("unexpected epic result %#v", epic)
	}
	sub, err := adapter.SaveItem(ctx, "subtasks", ItemPayload{Name: "Tag", EpicID: epic.Item.ID, StartTime: "2025-02-05T00:00", Duration: "10h"})
	if err != nil {
		t.Fatalf("SaveItem(subtask) error = %v", err)
	}

	got, err := adapter.GetItem(ctx, "epic", epic.Item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.StartTime != "2025-01-05T00:00:00Z" || got.EndTime != "2025-02-05T10:00:00Z" {
		t.Fatalf("unexpected derived window %s..%s", got.StartTime, got.EndTime)
	}
	if len(got.SubtaskIDs) != 1 || got.SubtaskIDs[0] != sub.Item.ID {
		t.Fatalf("unexpected subtask ids %v", got.SubtaskIDs)
	}

	payload := ItemPayload{ID: sub.Item.ID, Type: "subtask", Name: "Tag", Status: "done", EpicID: epic.Item.ID, StartTime: sub.Item.StartTime, Duration: sub.Item.Duration}
	updated, err := adapter.SaveItem(ctx, "", payload)
	if err != nil {
		t.Fatalf("SaveItem(update) error = %v", err)
	}
	if updated.Created || updated.Item.Status != "DONE" {
		t.Fatalf("unexpected update result %#v", updated)
	}
	got, err = adapter.GetItem(ctx, "", epic.Item.ID)
	if err != nil {
		t.Fatalf("GetItem(after) error = %v", err)
	}
	if got.Status != "DONE" {
		t.Fatalf("expected epic to roll up to DONE, got %q", got.Status)
	}

	history, err := adapter.History(ctx)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].ID != epic.Item.ID {
		t.Fatalf("unexpected history %#v", history)
	}
}

// TestAppServiceAdapterErrorMapping verifies app and domain failures map onto transport sentinels.
func TestAppServiceAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	adapter := NewAppServiceAdapter(app.NewService(nil, nil, app.ServiceConfig{}))
	if _, err := adapter.SaveItem(ctx, "tasks", ItemPayload{Name: "A", StartTime: "2025-01-01T00:00:00Z", Duration: "1h"}); err != nil {
		t.Fatalf("SaveItem(A) error = %v", err)
	}

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "overlap",
			run: func() error {
				_, err := adapter.SaveItem(ctx, "tasks", ItemPayload{Name: "B", StartTime: "2025-01-01T00:30:00Z", Duration: "1h"})
				return err
			},
			want: ErrScheduleConflict,
		},
		{
			name: "missing parent",
			run: func() error {
				_, err := adapter.SaveItem(ctx, "subtasks", ItemPayload{Name: "S", EpicID: 99})
				return err
			},
			want: ErrMissingParent,
		},
		{
			name: "blank name",
			run: func() error {
				_, err := adapter.SaveItem(ctx, "tasks", ItemPayload{Name: " "})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "type mismatch",
			run: func() error {
				_, err := adapter.SaveItem(ctx, "tasks", ItemPayload{Type: "epic", Name: "E"})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "bad duration",
			run: func() error {
				_, err := adapter.SaveItem(ctx, "tasks", ItemPayload{Name: "D", StartTime: "2025-03-01T00:00:00Z", Duration: "forever"})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "unknown id",
			run: func() error {
				_, err := adapter.GetItem(ctx, "tasks", 42)
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "unknown kind",
			run: func() error {
				_, err := adapter.ListItems(ctx, "stories")
				return err
			},
			want: ErrInvalidRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// TestMapItemOmitsUnscheduledWindow verifies unscheduled items have no end time on the wire.
func TestMapItemOmitsUnscheduledWindow(t *testing.T) {
	item, err := domain.NewTask(1, "later", "", domain.Window{})
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	view := MapItem(item)
	if view.StartTime != "" || view.Duration != "" || view.EndTime != "" {
		t.Fatalf("expected empty window fields, got %#v", view)
	}

	scheduled, err := domain.NewTask(2, "now", "", domain.NewWindow(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), 90*time.Minute))
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	view = MapItem(scheduled)
	if view.Duration != "1h30m0s" || view.EndTime != "2025-01-01T10:30:00Z" {
		t.Fatalf("unexpected scheduled view %#v", view)
	}
}
