package menu

import (
	"strings"

	"github.com/dwadden/commboard/internal/domain"
)

// Item is a selectable entry in a menu. The set of implementations is closed;
// callers dispatch on the concrete type.
type Item interface {
	Label() string
	SetLabel(label string)
	// Announcement is the text spoken when the item is highlighted.
	Announcement() string
	// IsEmpty reports whether the item should be skipped without highlighting.
	IsEmpty() bool
	WaitMultiplier() float64
	item()
}

type base struct {
	label    string
	announce string
	wait     float64
}

func newBase(label string, announce string, wait float64) base {
	if wait < 1 {
		wait = 1
	}
	return base{label: label, announce: announce, wait: wait}
}

func (b *base) Label() string { return b.label }

func (b *base) SetLabel(label string) { b.label = label }

func (b *base) Announcement() string {
	if strings.TrimSpace(b.announce) != "" {
		return b.announce
	}
	return b.label
}

func (b *base) IsEmpty() bool { return false }

func (b *base) WaitMultiplier() float64 { return b.wait }

func (b *base) item() {}

// NavigateMenu descends into another menu.
type NavigateMenu struct {
	base
	Target string
	// Collapse hides a collapsible target again once its scan returns.
	Collapse bool
}

// EmitText writes text to the buffer.
type EmitText struct {
	base
	Text     string
	Category domain.TextCategory
}

// WordGuess writes the word currently shown in its slot.
type WordGuess struct {
	base
	Slot int
}

func (g *WordGuess) IsEmpty() bool { return strings.TrimSpace(g.label) == "" }

// BufferAction runs an editing action on the buffer.
type BufferAction struct {
	base
	Action domain.BufferAction
}

// Request beeps to get a caregiver's attention and then speaks Message.
type Request struct {
	base
	Message string
}

// ToggleRun stops the current scan run and returns to listening.
type ToggleRun struct {
	base
}

// SendEmail mails the buffer text to Recipients.
type SendEmail struct {
	base
	Name       string
	Recipients []string
}

func (e *SendEmail) IsEmpty() bool { return len(e.Recipients) == 0 }

// SetRecipient assigns a display name and addresses, relabelling the item.
func (e *SendEmail) SetRecipient(name string, addresses []string) {
	e.Name = name
	e.Recipients = append([]string(nil), addresses...)
	e.label = name
}

// Placeholder stands in for features that are not available, including
// unresolved layout entries.
type Placeholder struct {
	base
	Reason string
}
