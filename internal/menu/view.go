package menu

// View is a read-only copy of a menu's current labels.
type View struct {
	Name        string   `json:"name"`
	Collapsible bool     `json:"collapsible"`
	Items       []string `json:"items"`
}

// Snapshot copies every menu in layout order. Labels change while scanning,
// so call it from the scan loop.
func (t *Tree) Snapshot() []View {
	views := make([]View, 0, len(t.order))
	for _, m := range t.order {
		view := View{Name: m.Name, Collapsible: m.Collapsible(), Items: make([]string, 0, len(m.Items))}
		for _, item := range m.Items {
			view.Items = append(view.Items, item.Label())
		}
		views = append(views, view)
	}
	return views
}
