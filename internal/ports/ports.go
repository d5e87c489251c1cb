package ports

import (
	"context"
	"time"

	"github.com/dwadden/commboard/internal/domain"
)

// Sensor yields the latest raw attention reading. Sample must not block; it
// is called from the event loop at the classifier's sampling cadence.
type Sensor interface {
	Sample() (bool, error)
}

// Announcer narrates highlighted items and action results.
type Announcer interface {
	// Announce speaks text without waiting for it to finish.
	Announce(text string)
	// Speak speaks text and calls onFinished once playback has ended.
	Speak(text string, onFinished func())
}

// Tone plays pure tones used for cues and requests.
type Tone interface {
	Beep(frequencyHz int, duration time.Duration)
}

// TextBuffer holds the message being composed.
type TextBuffer interface {
	Write(text string, category domain.TextCategory)
	ExecuteAction(action domain.BufferAction, onFinished func())
	Text() string
	OnChange(listener func(text string)) int
	RemoveChangeListener(id int)
}

// VisibilitySink shows and hides collapsible menus. Presentation only.
type VisibilitySink interface {
	Show(menu string)
	Hide(menu string)
}

// EventSink emits engine state and events to the front end.
type EventSink interface {
	ScannerStateChanged(state domain.ScannerState, reason domain.ScannerStateReason)
	Highlighted(menu string, index int, label string)
	Unhighlighted(menu string, index int)
	AttentionChanged(state domain.AttendingState)
	BufferChanged(text string)
	ScanError(code domain.ErrorCode, detail string)
}

// MailMessage is an outbound message composed from the buffer.
type MailMessage struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// WordGuesser proposes completions for a partial word.
type WordGuesser interface {
	Guess(ctx context.Context, prefix string, limit int) ([]string, error)
}

// TextExpander transforms final text before it is read aloud or sent.
type TextExpander interface {
	Apply(text string) (string, error)
}
