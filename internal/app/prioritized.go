package app

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/hylla/kanplan/internal/domain"
)

// prioritizedKey orders index entries by start time, then by id.
type prioritizedKey struct {
	start int64
	id    int
}

// comparePrioritizedKeys implements the gods comparator contract for prioritizedKey.
func comparePrioritizedKeys(a, b interface{}) int {
	ka := a.(prioritizedKey)
	kb := b.(prioritizedKey)
	switch {
	case ka.start < kb.start:
		return -1
	case ka.start > kb.start:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

// PrioritizedIndex holds the independently scheduled items ordered by start time.
// Items without a scheduled window are never stored.
type PrioritizedIndex struct {
	tree *redblacktree.Tree
	keys map[int]prioritizedKey
}

// NewPrioritizedIndex constructs an empty index.
func NewPrioritizedIndex() *PrioritizedIndex {
	return &PrioritizedIndex{
		tree: redblacktree.NewWith(comparePrioritizedKeys),
		keys: map[int]prioritizedKey{},
	}
}

// Put inserts item, replacing any entry with the same id. An unscheduled item
// only removes the previous entry.
func (p *PrioritizedIndex) Put(item domain.Item) {
	p.Remove(item.ID)
	if !item.Window.Scheduled() {
		return
	}
	key := prioritizedKey{start: item.Window.Start.UnixNano(), id: item.ID}
	p.tree.Put(key, item.Clone())
	p.keys[item.ID] = key
}

// Remove drops the entry for id and reports whether one existed.
func (p *PrioritizedIndex) Remove(id int) bool {
	key, ok := p.keys[id]
	if !ok {
		return false
	}
	p.tree.Remove(key)
	delete(p.keys, id)
	return true
}

// Get returns the indexed entry for id.
func (p *PrioritizedIndex) Get(id int) (domain.Item, bool) {
	key, ok := p.keys[id]
	if !ok {
		return domain.Item{}, false
	}
	value, found := p.tree.Get(key)
	if !found {
		return domain.Item{}, false
	}
	return value.(domain.Item), true
}

// Len returns the number of indexed items.
func (p *PrioritizedIndex) Len() int {
	return p.tree.Size()
}

// Clear drops every entry.
func (p *PrioritizedIndex) Clear() {
	p.tree.Clear()
	clear(p.keys)
}

// Items returns the indexed items, earliest start first.
func (p *PrioritizedIndex) Items() []domain.Item {
	out := make([]domain.Item, 0, p.tree.Size())
	it := p.tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(domain.Item).Clone())
	}
	return out
}
