package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hylla/kanplan/internal/adapters/server/common"
	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/domain"
	"github.com/spf13/cobra"
)

// newDemoCommand walks an in-memory store through the main item flows.
func newDemoCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a walkthrough against a throwaway in-memory store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := app.NewService(nil, nil, app.ServiceConfig{})
			return runDemo(cmd.Context(), svc, cmd.OutOrStdout())
		},
	}
}

// demoPrinter writes demo output and remembers the first write error.
type demoPrinter struct {
	out io.Writer
	err error
}

// section prints a blank-line separated heading.
func (p *demoPrinter) section(title string) {
	p.printf("\n%s\n", title)
}

// item prints one item line.
func (p *demoPrinter) item(item domain.Item) {
	p.printf("  %s\n", describeItem(item))
}

// items prints a list of items, or a placeholder for an empty list.
func (p *demoPrinter) items(items []domain.Item) {
	if len(items) == 0 {
		p.printf("  (none)\n")
		return
	}
	for _, item := range items {
		p.item(item)
	}
}

// printf writes formatted output unless a previous write failed.
func (p *demoPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.out, format, args...)
}

// describeItem renders one item on a single line.
func describeItem(item domain.Item) string {
	view := common.MapItem(item)
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %q [%s]", view.Type, view.ID, view.Name, view.Status)
	if view.StartTime != "" {
		fmt.Fprintf(&b, " %s..%s", view.StartTime, view.EndTime)
	}
	if view.EpicID > 0 {
		fmt.Fprintf(&b, " epic=%d", view.EpicID)
	}
	if len(view.SubtaskIDs) > 0 {
		fmt.Fprintf(&b, " subtasks=%s", joinIDs(view.SubtaskIDs))
	}
	return b.String()
}

// runDemo creates, updates, reads, and removes items, printing each step.
func runDemo(ctx context.Context, svc *app.Service, out io.Writer) error {
	p := &demoPrinter{out: out}
	day := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	p.section("Adding a task and changing its status:")
	task, err := svc.Create(ctx, domain.ItemInput{Kind: domain.KindTask, Name: "Task name", Description: "Task description", Window: domain.NewWindow(day, time.Hour)})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if task, err = svc.Get(ctx, "", task.ID); err != nil {
		return err
	}
	p.item(task)
	in := task.Input()
	in.Status = domain.StatusInProgress
	if task, err = svc.Update(ctx, task.ID, in); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	p.item(task)

	p.section("Adding an epic with subtasks and completing them:")
	epic, err := svc.Create(ctx, domain.ItemInput{Kind: domain.KindEpic, Name: "Epic name", Description: "Epic description", Window: domain.NewWindow(day.Add(2*time.Hour), time.Hour)})
	if err != nil {
		return fmt.Errorf("create epic: %w", err)
	}
	subs := make([]domain.Item, 0, 2)
	for i := range 2 {
		sub, err := svc.Create(ctx, domain.ItemInput{
			Kind:        domain.KindSubtask,
			Name:        fmt.Sprintf("Subtask%d", i+1),
			Description: fmt.Sprintf("Subtask%d description", i+1),
			EpicID:      epic.ID,
			Window:      domain.NewWindow(day.Add(time.Duration(24*(i+1))*time.Hour), 2*time.Hour),
		})
		if err != nil {
			return fmt.Errorf("create subtask: %w", err)
		}
		subs = append(subs, sub)
	}
	if epic, err = svc.Get(ctx, domain.KindEpic, epic.ID); err != nil {
		return err
	}
	p.item(epic)
	in = epic.Input()
	in.Status = domain.StatusInProgress
	if epic, err = svc.Update(ctx, epic.ID, in); err != nil {
		return fmt.Errorf("update epic: %w", err)
	}
	p.item(epic)
	for _, sub := range subs {
		in := sub.Input()
		in.Status = domain.StatusDone
		if _, err := svc.Update(ctx, sub.ID, in); err != nil {
			return fmt.Errorf("complete subtask: %w", err)
		}
	}
	if epic, err = svc.Get(ctx, domain.KindEpic, epic.ID); err != nil {
		return err
	}
	p.item(epic)

	p.section("Rejecting an overlapping task:")
	_, err = svc.Create(ctx, domain.ItemInput{Kind: domain.KindTask, Name: "Clash", Window: domain.NewWindow(day.Add(30*time.Minute), time.Hour)})
	p.printf("  %v\n", err)

	p.section("Removing a task drops it from the browsing history:")
	extra, err := svc.Create(ctx, domain.ItemInput{Kind: domain.KindTask, Name: "Task3", Description: "Description"})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if extra, err = svc.Get(ctx, domain.KindTask, extra.ID); err != nil {
		return err
	}
	p.item(extra)
	history, err := svc.History(ctx)
	if err != nil {
		return err
	}
	p.printf("  history:\n")
	p.items(history)
	if err := svc.Remove(ctx, domain.KindTask, extra.ID); err != nil {
		return fmt.Errorf("remove task: %w", err)
	}
	if history, err = svc.History(ctx); err != nil {
		return err
	}
	p.printf("  history after removal:\n")
	p.items(history)

	p.section("Prioritized items:")
	prioritized, err := svc.Prioritized(ctx)
	if err != nil {
		return err
	}
	p.items(prioritized)

	p.section("All items:")
	all, err := svc.List(ctx, "")
	if err != nil {
		return err
	}
	p.items(all)

	if err := svc.RemoveAll(ctx); err != nil {
		return fmt.Errorf("remove all: %w", err)
	}
	p.section("All items after removing everything:")
	if all, err = svc.List(ctx, ""); err != nil {
		return err
	}
	p.items(all)
	if history, err = svc.History(ctx); err != nil {
		return err
	}
	p.printf("  history:\n")
	p.items(history)
	return p.err
}
