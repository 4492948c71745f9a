package app

import "github.com/hylla/kanplan/internal/domain"

// conflicts reports whether candidate's scheduled footprint overlaps another item.
//
// Epics that own subtasks are represented by those subtasks. A subtask is
// checked against its siblings and every other item, but never against its own
// parent epic's window.
func (s *Store) conflicts(candidate domain.Item) bool {
	footprint := s.footprint(candidate)
	if len(footprint) == 0 {
		return false
	}
	if s.alreadyScheduled(candidate) {
		return false
	}
	others := s.comparisonSet(candidate)
	for _, window := range footprint {
		for _, other := range others {
			if window.Overlaps(other.Window) {
				return true
			}
		}
	}
	return false
}

// footprint lists the scheduled windows candidate would occupy.
func (s *Store) footprint(candidate domain.Item) []domain.Window {
	var windows []domain.Window
	if candidate.Kind == domain.KindEpic && len(candidate.SubtaskIDs) > 0 {
		for _, sub := range s.subtasksOf(candidate) {
			if sub.Window.Scheduled() {
				windows = append(windows, sub.Window)
			}
		}
		return windows
	}
	window := candidate.Window
	if candidate.Kind == domain.KindEpic {
		window = candidate.BaseWindow
	}
	if window.Scheduled() {
		windows = append(windows, window)
	}
	return windows
}

// alreadyScheduled reports whether the same id is already stored with the same
// footprint. An epic without subtasks is placed by its base window, so that is
// what must match; an epic with subtasks is placed by subtasks already stored.
func (s *Store) alreadyScheduled(candidate domain.Item) bool {
	switch candidate.Kind {
	case domain.KindEpic:
		stored, ok := s.epics.Get(candidate.ID)
		if !ok {
			return false
		}
		if len(stored.SubtaskIDs) > 0 {
			return true
		}
		return stored.BaseWindow.Equal(candidate.BaseWindow)
	case domain.KindSubtask:
		stored, ok := s.subtasks.Get(candidate.ID)
		return ok && stored.Window.Equal(candidate.Window)
	default:
		stored, ok := s.tasks.Get(candidate.ID)
		return ok && stored.Window.Equal(candidate.Window)
	}
}

// comparisonSet gathers the items candidate must not overlap.
func (s *Store) comparisonSet(candidate domain.Item) []domain.Item {
	var out []domain.Item
	parentID := 0
	if candidate.Kind == domain.KindSubtask {
		parentID = candidate.EpicID
		if parent, ok := s.epics.Get(parentID); ok {
			for _, sib := range s.subtasksOf(parent) {
				if sib.ID != candidate.ID {
					out = append(out, sib)
				}
			}
		}
	}
	for _, entry := range s.index.Items() {
		if entry.ID == candidate.ID || entry.ID == parentID {
			continue
		}
		if entry.Kind == domain.KindEpic {
			if epic, ok := s.epics.Get(entry.ID); ok && len(epic.SubtaskIDs) > 0 {
				for _, sub := range s.subtasksOf(epic) {
					if sub.ID != candidate.ID {
						out = append(out, sub)
					}
				}
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}
