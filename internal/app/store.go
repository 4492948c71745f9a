package app

import (
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hylla/kanplan/internal/domain"
)

// itemMap keeps items of one kind in insertion order.
type itemMap = orderedmap.OrderedMap[int, domain.Item]

// Store owns every item and the derived views over them. It is not safe for
// concurrent use; Service serializes access.
type Store struct {
	tasks    *itemMap
	epics    *itemMap
	subtasks *itemMap
	index    *PrioritizedIndex
	history  *History
	ids      idSequence
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		tasks:    orderedmap.New[int, domain.Item](),
		epics:    orderedmap.New[int, domain.Item](),
		subtasks: orderedmap.New[int, domain.Item](),
		index:    NewPrioritizedIndex(),
		history:  NewHistory(),
	}
}

// NextID mints a fresh item id.
func (s *Store) NextID() int {
	return s.ids.Next()
}

// Counter returns the last id handed out.
func (s *Store) Counter() int {
	return s.ids.Current()
}

// SeedCounter raises the id counter after a replay so new ids follow stored ones.
func (s *Store) SeedCounter(n int) {
	s.ids.Seed(n)
}

// lookup finds an item in any of the kind maps.
func (s *Store) lookup(id int) (domain.Item, bool) {
	if item, ok := s.tasks.Get(id); ok {
		return item, true
	}
	if item, ok := s.epics.Get(id); ok {
		return item, true
	}
	if item, ok := s.subtasks.Get(id); ok {
		return item, true
	}
	return domain.Item{}, false
}

// Exists reports whether any item uses id.
func (s *Store) Exists(id int) bool {
	_, ok := s.lookup(id)
	return ok
}

// Kind returns the kind stored under id.
func (s *Store) Kind(id int) (domain.Kind, bool) {
	item, ok := s.lookup(id)
	if !ok {
		return "", false
	}
	return item.Kind, true
}

// Add inserts a new item. Re-adding an id that holds the same kind and window
// replaces the stored value; any other reuse of an id is rejected.
func (s *Store) Add(item domain.Item) error {
	if item.ID <= 0 {
		return domain.ErrInvalidID
	}
	if existing, ok := s.lookup(item.ID); ok {
		if !sameFootprint(existing, item) {
			return ErrDuplicateID
		}
		return s.Update(item)
	}

	switch item.Kind {
	case domain.KindTask:
		if s.conflicts(item) {
			return ErrScheduleConflict
		}
		item = item.Clone()
		s.tasks.Set(item.ID, item)
		s.index.Put(item)
	case domain.KindEpic:
		item = item.Clone()
		item.SubtaskIDs = nil
		item.Window = item.BaseWindow
		if s.conflicts(item) {
			return ErrScheduleConflict
		}
		s.epics.Set(item.ID, item)
		s.index.Put(item)
	case domain.KindSubtask:
		if _, ok := s.epics.Get(item.EpicID); !ok {
			return ErrMissingParent
		}
		if s.conflicts(item) {
			return ErrScheduleConflict
		}
		s.subtasks.Set(item.ID, item.Clone())
		s.attach(item.EpicID, item.ID)
		s.recomputeEpic(item.EpicID)
	default:
		return domain.ErrInvalidKind
	}
	return nil
}

// sameFootprint reports whether a re-add matches the stored item closely enough
// to be treated as a resubmission.
func sameFootprint(existing, item domain.Item) bool {
	if existing.Kind != item.Kind {
		return false
	}
	switch item.Kind {
	case domain.KindEpic:
		return existing.BaseWindow.Equal(item.BaseWindow)
	case domain.KindSubtask:
		return existing.EpicID == item.EpicID && existing.Window.Equal(item.Window)
	default:
		return existing.Window.Equal(item.Window)
	}
}

// Get returns the item stored under id and records the view in history.
func (s *Store) Get(id int) (domain.Item, error) {
	item, ok := s.lookup(id)
	if !ok {
		return domain.Item{}, ErrNotFound
	}
	s.history.Record(item)
	return item.Clone(), nil
}

// List returns tasks, then epics, then subtasks, each in insertion order.
func (s *Store) List() []domain.Item {
	out := make([]domain.Item, 0, s.tasks.Len()+s.epics.Len()+s.subtasks.Len())
	out = append(out, values(s.tasks)...)
	out = append(out, values(s.epics)...)
	out = append(out, values(s.subtasks)...)
	return out
}

// Tasks returns the plain tasks in insertion order.
func (s *Store) Tasks() []domain.Item {
	return values(s.tasks)
}

// Epics returns the epics in insertion order.
func (s *Store) Epics() []domain.Item {
	return values(s.epics)
}

// Subtasks returns the subtasks in insertion order.
func (s *Store) Subtasks() []domain.Item {
	return values(s.subtasks)
}

// SubtasksOf returns the subtasks of one epic in attachment order.
func (s *Store) SubtasksOf(epicID int) ([]domain.Item, error) {
	epic, ok := s.epics.Get(epicID)
	if !ok {
		return nil, ErrNotFound
	}
	subs := s.subtasksOf(epic)
	for i := range subs {
		subs[i] = subs[i].Clone()
	}
	return subs, nil
}

// ListKind returns the items of one kind.
func (s *Store) ListKind(kind domain.Kind) []domain.Item {
	switch kind {
	case domain.KindTask:
		return s.Tasks()
	case domain.KindEpic:
		return s.Epics()
	case domain.KindSubtask:
		return s.Subtasks()
	default:
		return nil
	}
}

// values copies one ordered map into a slice.
func values(m *itemMap) []domain.Item {
	out := make([]domain.Item, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Clone())
	}
	return out
}

// Remove deletes the item stored under id and reports whether it existed.
// Removing an epic removes its subtasks first.
func (s *Store) Remove(id int) bool {
	if _, ok := s.tasks.Delete(id); ok {
		s.index.Remove(id)
		s.history.Remove(id)
		return true
	}
	if epic, ok := s.epics.Get(id); ok {
		for _, subID := range epic.SubtaskIDs {
			s.subtasks.Delete(subID)
			s.history.Remove(subID)
		}
		s.epics.Delete(id)
		s.index.Remove(id)
		s.history.Remove(id)
		return true
	}
	if sub, ok := s.subtasks.Delete(id); ok {
		s.history.Remove(id)
		s.detach(sub.EpicID, id)
		s.recomputeEpic(sub.EpicID)
		return true
	}
	return false
}

// RemoveAll empties the store and rewinds the id counter.
func (s *Store) RemoveAll() {
	s.tasks = orderedmap.New[int, domain.Item]()
	s.epics = orderedmap.New[int, domain.Item]()
	s.subtasks = orderedmap.New[int, domain.Item]()
	s.index.Clear()
	s.history.Clear()
	s.ids.Reset()
}

// Update replaces the item stored under item.ID with the same kind.
func (s *Store) Update(item domain.Item) error {
	switch item.Kind {
	case domain.KindTask:
		return s.updateTask(item)
	case domain.KindEpic:
		return s.updateEpic(item)
	case domain.KindSubtask:
		return s.updateSubtask(item)
	default:
		return domain.ErrInvalidKind
	}
}

// updateTask replaces a plain task and its index entry.
func (s *Store) updateTask(item domain.Item) error {
	if _, ok := s.tasks.Get(item.ID); !ok {
		return ErrNotFound
	}
	if s.conflicts(item) {
		return ErrScheduleConflict
	}
	item = item.Clone()
	s.tasks.Set(item.ID, item)
	s.index.Put(item)
	return nil
}

// updateEpic replaces an epic's caller-owned fields. The subtask list is kept,
// the done rollup is applied, and the derived window is recomputed.
func (s *Store) updateEpic(item domain.Item) error {
	existing, ok := s.epics.Get(item.ID)
	if !ok {
		return ErrNotFound
	}
	next := item.Clone()
	next.SubtaskIDs = slices.Clone(existing.SubtaskIDs)
	if s.conflicts(next) {
		return ErrScheduleConflict
	}
	subs := s.subtasksOf(next)
	next.Status = resolveEpicStatus(existing.Status, item.Status, subs)
	next.Window = aggregateWindow(next.BaseWindow, subs)
	s.epics.Set(next.ID, next)
	s.index.Put(next)
	return nil
}

// updateSubtask replaces a subtask, moving it between epics when EpicID changed.
func (s *Store) updateSubtask(item domain.Item) error {
	existing, ok := s.subtasks.Get(item.ID)
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.epics.Get(item.EpicID); !ok {
		return ErrMissingParent
	}
	if s.conflicts(item) {
		return ErrScheduleConflict
	}
	s.subtasks.Set(item.ID, item.Clone())
	if existing.EpicID != item.EpicID {
		s.detach(existing.EpicID, item.ID)
		s.recomputeEpic(existing.EpicID)
		s.attach(item.EpicID, item.ID)
	}
	s.recomputeEpic(item.EpicID)
	s.completeEpicIfDone(item.EpicID)
	return nil
}

// attach appends a subtask id to its epic's list once.
func (s *Store) attach(epicID, subID int) {
	epic, ok := s.epics.Get(epicID)
	if !ok || slices.Contains(epic.SubtaskIDs, subID) {
		return
	}
	next := epic.Clone()
	next.SubtaskIDs = append(next.SubtaskIDs, subID)
	s.epics.Set(epicID, next)
}

// detach drops a subtask id from its epic's list.
func (s *Store) detach(epicID, subID int) {
	epic, ok := s.epics.Get(epicID)
	if !ok {
		return
	}
	next := epic.Clone()
	next.SubtaskIDs = slices.DeleteFunc(next.SubtaskIDs, func(id int) bool { return id == subID })
	s.epics.Set(epicID, next)
}

// Prioritized returns the scheduled tasks and epics, earliest start first.
func (s *Store) Prioritized() []domain.Item {
	return s.index.Items()
}

// History returns the items read by id, oldest view first.
func (s *Store) History() []domain.Item {
	return s.history.List()
}
