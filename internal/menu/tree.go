package menu

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwadden/commboard/internal/domain"
)

// Tree is the built set of menus reachable by name.
type Tree struct {
	root     *Menu
	menus    map[string]*Menu
	order    []*Menu
	warnings []string
}

func (t *Tree) Root() *Menu { return t.root }

func (t *Tree) Menu(name string) (*Menu, bool) {
	m, ok := t.menus[name]
	return m, ok
}

// Menus returns every menu in table order.
func (t *Tree) Menus() []*Menu {
	return append([]*Menu(nil), t.order...)
}

// Warnings lists item-level problems that were replaced by placeholders.
func (t *Tree) Warnings() []string {
	return append([]string(nil), t.warnings...)
}

// GuessSlots returns the word-guess items in table order.
func (t *Tree) GuessSlots() []*WordGuess {
	var out []*WordGuess
	for _, m := range t.order {
		for _, it := range m.Items {
			if g, ok := it.(*WordGuess); ok {
				out = append(out, g)
			}
		}
	}
	return out
}

// EmailSlots returns the send-email items in table order.
func (t *Tree) EmailSlots() []*SendEmail {
	var out []*SendEmail
	for _, m := range t.order {
		for _, it := range m.Items {
			if e, ok := it.(*SendEmail); ok {
				out = append(out, e)
			}
		}
	}
	return out
}

// ErrNoFreeEmailSlot is returned when every email button already has a
// recipient.
var ErrNoFreeEmailSlot = errors.New("no free email slot")

// AssignRecipient gives the first email button without recipients a name and
// addresses. Call it before scanning starts or from the loop.
func (t *Tree) AssignRecipient(name string, addresses []string) (*SendEmail, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(addresses) == 0 {
		return nil, errors.New("recipient needs a name and at least one address")
	}
	for _, slot := range t.EmailSlots() {
		if slot.IsEmpty() {
			slot.SetRecipient(name, addresses)
			return slot, nil
		}
	}
	return nil, ErrNoFreeEmailSlot
}

// Build validates the table and constructs the menu graph. Unknown item kinds
// and navigation to undefined menus become placeholders and are logged.
func Build(table Table, logger *slog.Logger) (*Tree, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := Validate(table); err != nil {
		return nil, err
	}

	tree := &Tree{menus: map[string]*Menu{}}
	names := map[string]struct{}{}
	for _, spec := range table.Menus {
		names[strings.TrimSpace(spec.Name)] = struct{}{}
	}

	for _, spec := range table.Menus {
		name := strings.TrimSpace(spec.Name)
		visibility := spec.Visibility
		if visibility == "" {
			visibility = VisibilityAlways
		}
		items := make([]Item, 0, len(spec.Items))
		for i, itemSpec := range spec.Items {
			item, warning := buildItem(itemSpec, names)
			if warning != "" {
				warning = fmt.Sprintf("%s item %d (%q): %s", name, i, itemSpec.Label, warning)
				tree.warnings = append(tree.warnings, warning)
				logger.Warn("menu: replaced item with placeholder", "menu", name, "index", i, "reason", warning)
			}
			items = append(items, item)
		}
		m := newMenu(name, spec.Scan, visibility, items)
		tree.menus[name] = m
		tree.order = append(tree.order, m)
	}
	tree.root = tree.menus[strings.TrimSpace(table.Root)]

	// Attach breadth-first from the root so parents follow the natural
	// navigation path; the root itself never gets a parent.
	visited := map[*Menu]bool{tree.root: true}
	queue := []*Menu{tree.root}
	for next := 0; ; next++ {
		if next == len(queue) {
			// Menus unreachable from the root still get their children.
			for _, m := range tree.order {
				if !visited[m] {
					visited[m] = true
					queue = append(queue, m)
					break
				}
			}
			if next == len(queue) {
				break
			}
		}
		m := queue[next]
		for _, it := range m.Items {
			nav, ok := it.(*NavigateMenu)
			if !ok {
				continue
			}
			child := tree.menus[nav.Target]
			m.children[nav.Target] = child
			if child != tree.root && child != m && child.parent == nil {
				child.parent = m
			}
			if !visited[child] {
				visited[child] = true
				queue = append(queue, child)
			}
		}
	}

	logger.Debug("menu: tree built", "root", tree.root.Name, "menus", len(tree.order), "warnings", len(tree.warnings))
	return tree, nil
}

func buildItem(spec ItemSpec, menus map[string]struct{}) (Item, string) {
	b := newBase(spec.Label, spec.Announce, spec.Wait)
	kind := strings.ToLower(strings.TrimSpace(spec.Kind))
	switch kind {
	case "navigate":
		target := strings.TrimSpace(spec.Target)
		if _, ok := menus[target]; !ok {
			return &Placeholder{base: b, Reason: "unknown menu " + target}, fmt.Sprintf("navigation target %q is not defined", target)
		}
		return &NavigateMenu{base: b, Target: target, Collapse: spec.Collapse}, ""
	case "text", "letter", "space", "word", "punctuation", "terminal_punctuation":
		category, ok := textCategory(kind, spec.Category)
		if !ok {
			return &Placeholder{base: b, Reason: "unknown text category"}, fmt.Sprintf("unknown text category %q", spec.Category)
		}
		return &EmitText{base: b, Text: emitted(spec, category), Category: category}, ""
	case "guess":
		return &WordGuess{base: b, Slot: spec.Slot}, ""
	case "buffer":
		action := domain.BufferAction(strings.ToLower(strings.TrimSpace(firstNonEmpty(spec.Action, spec.Label))))
		switch action {
		case domain.BufferActionDelete, domain.BufferActionClear, domain.BufferActionRead:
			return &BufferAction{base: b, Action: action}, ""
		}
		return &Placeholder{base: b, Reason: "unknown buffer action"}, fmt.Sprintf("unknown buffer action %q", action)
	case "request":
		return &Request{base: b, Message: firstNonEmpty(spec.Message, spec.Label)}, ""
	case "toggle":
		return &ToggleRun{base: b}, ""
	case "email":
		return &SendEmail{base: b, Name: firstNonEmpty(spec.Name, spec.Label), Recipients: append([]string(nil), spec.Recipients...)}, ""
	case "placeholder":
		return &Placeholder{base: b, Reason: "not implemented"}, ""
	default:
		return &Placeholder{base: b, Reason: "unknown kind " + kind}, fmt.Sprintf("unknown item kind %q", spec.Kind)
	}
}

func textCategory(kind string, explicit string) (domain.TextCategory, bool) {
	name := strings.ToLower(strings.TrimSpace(explicit))
	if kind != "text" {
		name = kind
	}
	if name == "" {
		name = string(domain.TextCategoryLetter)
	}
	switch category := domain.TextCategory(name); category {
	case domain.TextCategoryLetter, domain.TextCategorySpace, domain.TextCategoryWord,
		domain.TextCategoryPunctuation, domain.TextCategoryTerminalPunctuation:
		return category, true
	}
	return "", false
}

func emitted(spec ItemSpec, category domain.TextCategory) string {
	if spec.Text != "" {
		return spec.Text
	}
	if category == domain.TextCategorySpace {
		return " "
	}
	return strings.ToLower(spec.Label)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
