// Package menu holds the scan menus and the items they contain.
package menu

// Policy decides what happens once a menu has been scanned or an item in it
// has been selected.
type Policy string

const (
	// PolicyRepeat rescans the menu from the first item.
	PolicyRepeat Policy = "repeat"
	// PolicyFinish returns control to the caller.
	PolicyFinish Policy = "finish"
)

// Visibility controls whether a menu is always on screen.
type Visibility string

const (
	VisibilityAlways      Visibility = "always"
	VisibilityCollapsible Visibility = "collapsible"
)

// Menu is an ordered list of items. Structure is fixed once the tree is built.
type Menu struct {
	Name       string
	Items      []Item
	Policy     Policy
	Visibility Visibility

	parent   *Menu
	children map[string]*Menu
}

func newMenu(name string, policy Policy, visibility Visibility, items []Item) *Menu {
	return &Menu{
		Name:       name,
		Items:      items,
		Policy:     policy,
		Visibility: visibility,
		children:   map[string]*Menu{},
	}
}

// Parent is the menu this one was first attached to, or nil.
func (m *Menu) Parent() *Menu {
	return m.parent
}

// Child resolves a navigation target by name.
func (m *Menu) Child(name string) (*Menu, bool) {
	child, ok := m.children[name]
	return child, ok
}

func (m *Menu) Collapsible() bool {
	return m.Visibility == VisibilityCollapsible
}
