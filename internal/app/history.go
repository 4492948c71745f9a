package app

import (
	list "github.com/bahlo/generic-list-go"

	"github.com/hylla/kanplan/internal/domain"
)

// History keeps the items read by id, oldest view first, one entry per id.
type History struct {
	order *list.List[domain.Item]
	byID  map[int]*list.Element[domain.Item]
}

// NewHistory constructs an empty history.
func NewHistory() *History {
	return &History{
		order: list.New[domain.Item](),
		byID:  map[int]*list.Element[domain.Item]{},
	}
}

// Record moves item to the most recent position, replacing any earlier view of the same id.
func (h *History) Record(item domain.Item) {
	if el, ok := h.byID[item.ID]; ok {
		h.order.Remove(el)
	}
	h.byID[item.ID] = h.order.PushBack(item.Clone())
}

// Remove drops the entry for id. Unknown ids are ignored.
func (h *History) Remove(id int) {
	el, ok := h.byID[id]
	if !ok {
		return
	}
	h.order.Remove(el)
	delete(h.byID, id)
}

// Clear drops every entry.
func (h *History) Clear() {
	h.order.Init()
	clear(h.byID)
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.byID)
}

// List returns the entries from oldest to most recent view.
func (h *History) List() []domain.Item {
	out := make([]domain.Item, 0, h.order.Len())
	for el := h.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.Clone())
	}
	return out
}
