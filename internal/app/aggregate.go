package app

import "github.com/hylla/kanplan/internal/domain"

// aggregateWindow derives an epic window from its base window and its subtasks.
// Without scheduled subtasks the base window is returned unchanged.
func aggregateWindow(base domain.Window, subtasks []domain.Item) domain.Window {
	out := base
	for _, sub := range subtasks {
		out = out.Envelope(sub.Window)
	}
	return out
}

// epicDone reports whether an epic with these subtasks counts as done.
func epicDone(subtasks []domain.Item) bool {
	if len(subtasks) == 0 {
		return false
	}
	for _, sub := range subtasks {
		if sub.Status != domain.StatusDone {
			return false
		}
	}
	return true
}

// resolveEpicStatus applies the done rollup to a requested epic status.
// DONE is only accepted when every subtask is done. A rejected DONE keeps the
// previous status, falling back to IN_PROGRESS when the epic was already done.
func resolveEpicStatus(previous, requested domain.Status, subtasks []domain.Item) domain.Status {
	if requested != domain.StatusDone {
		return requested
	}
	if epicDone(subtasks) {
		return domain.StatusDone
	}
	if previous == domain.StatusDone {
		return domain.StatusInProgress
	}
	return previous
}

// subtasksOf resolves an epic's subtask ids in list order. Dangling ids are skipped.
func (s *Store) subtasksOf(epic domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(epic.SubtaskIDs))
	for _, id := range epic.SubtaskIDs {
		if sub, ok := s.subtasks.Get(id); ok {
			out = append(out, sub)
		}
	}
	return out
}

// recomputeEpic swaps in a new epic value whose derived window covers its subtasks.
// Missing epics are ignored.
func (s *Store) recomputeEpic(id int) {
	epic, ok := s.epics.Get(id)
	if !ok {
		return
	}
	next := epic.Clone()
	next.Window = aggregateWindow(epic.BaseWindow, s.subtasksOf(epic))
	s.epics.Set(id, next)
	s.index.Put(next)
}

// completeEpicIfDone marks the epic done once all of its subtasks are done.
func (s *Store) completeEpicIfDone(id int) {
	epic, ok := s.epics.Get(id)
	if !ok || epic.Status == domain.StatusDone {
		return
	}
	if !epicDone(s.subtasksOf(epic)) {
		return
	}
	next := epic.WithStatus(domain.StatusDone)
	s.epics.Set(id, next)
	s.index.Put(next)
}
