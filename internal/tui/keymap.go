package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit        key.Binding
	reload      key.Binding
	toggleHelp  key.Binding
	moveLeft    key.Binding
	moveRight   key.Binding
	moveUp      key.Binding
	moveDown    key.Binding
	addTask     key.Binding
	addEpic     key.Binding
	addSubtask  key.Binding
	itemInfo    key.Binding
	statusLeft  key.Binding
	statusRight key.Binding
	deleteItem  key.Binding
	prioritized key.Binding
	history     key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "item up")),
		moveDown:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "item down")),
		addTask:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		addEpic:     key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new epic")),
		addSubtask:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "new subtask of epic")),
		itemInfo:    key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "item info")),
		statusLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "status back")),
		statusRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "status forward")),
		deleteItem:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete item")),
		prioritized: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prioritized")),
		history:     key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "history")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.itemInfo, k.statusRight, k.prioritized, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.addEpic, k.addSubtask, k.itemInfo, k.deleteItem, k.toggleHelp, k.reload, k.quit},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.statusLeft, k.statusRight},
		{k.prioritized, k.history},
	}
}
