// Package buffer holds the message being composed.
package buffer

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/ports"
)

// Buffer is a ports.TextBuffer. It is safe for concurrent use; change
// listeners run on the goroutine that made the change, without the lock held.
type Buffer struct {
	announcer ports.Announcer
	expander  ports.TextExpander
	logger    *slog.Logger

	mu        sync.Mutex
	text      string
	nextID    int
	listeners map[int]func(string)
}

// New returns an empty buffer. expander may be nil.
func New(announcer ports.Announcer, expander ports.TextExpander, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		announcer: announcer,
		expander:  expander,
		logger:    logger,
		listeners: map[int]func(string){},
	}
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Write appends text according to its category. Letters and words are
// capitalized at the start of a sentence; words replace a partial word and
// are followed by a space; terminal punctuation ends the sentence.
func (b *Buffer) Write(text string, category domain.TextCategory) {
	b.mu.Lock()
	switch category {
	case domain.TextCategoryLetter:
		b.text += b.capitalizeAtSentenceStart(text)
	case domain.TextCategorySpace:
		b.text += " "
	case domain.TextCategoryWord:
		b.text = strings.TrimRightFunc(b.text, isWordRune)
		b.text += b.capitalizeAtSentenceStart(text) + " "
	case domain.TextCategoryTerminalPunctuation:
		if b.atWordStart() && !b.atSentenceStart() {
			b.text = strings.TrimSuffix(b.text, " ")
		}
		b.text += text + " "
	default:
		b.text += text
	}
	current := b.text
	b.mu.Unlock()
	b.notify(current)
}

// ExecuteAction runs an editing action and calls onFinished once it is done.
// Reading speaks the expanded text and finishes when speech ends.
func (b *Buffer) ExecuteAction(action domain.BufferAction, onFinished func()) {
	switch action {
	case domain.BufferActionDelete:
		b.mu.Lock()
		if _, size := utf8.DecodeLastRuneInString(b.text); size > 0 {
			b.text = b.text[:len(b.text)-size]
		}
		current := b.text
		b.mu.Unlock()
		b.notify(current)
		onFinished()
	case domain.BufferActionClear:
		b.mu.Lock()
		b.text = ""
		b.mu.Unlock()
		b.notify("")
		onFinished()
	case domain.BufferActionRead:
		text := b.Expanded()
		if b.announcer == nil || strings.TrimSpace(text) == "" {
			onFinished()
			return
		}
		b.announcer.Speak(text, onFinished)
	default:
		b.logger.Warn("buffer: unknown action", "action", action)
		onFinished()
	}
}

// Expanded returns the text after abbreviation expansion. Expansion errors
// leave the text unchanged.
func (b *Buffer) Expanded() string {
	text := b.Text()
	if b.expander == nil {
		return text
	}
	expanded, err := b.expander.Apply(text)
	if err != nil {
		b.logger.Warn("buffer: expansion failed", "error", err)
		return text
	}
	return expanded
}

func (b *Buffer) OnChange(listener func(text string)) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners[b.nextID] = listener
	return b.nextID
}

func (b *Buffer) RemoveChangeListener(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

func (b *Buffer) notify(text string) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(string), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(text)
	}
}

func (b *Buffer) atWordStart() bool {
	return b.text == "" || strings.HasSuffix(b.text, " ")
}

func (b *Buffer) atSentenceStart() bool {
	trimmed := strings.TrimRight(b.text, " ")
	if trimmed == "" {
		return true
	}
	if !strings.HasSuffix(b.text, " ") {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return last == '.' || last == '!' || last == '?'
}

func (b *Buffer) capitalizeAtSentenceStart(text string) string {
	if !b.atSentenceStart() || text == "" {
		return text
	}
	r, size := utf8.DecodeRuneInString(text)
	return string(unicode.ToUpper(r)) + text[size:]
}

func isWordRune(r rune) bool {
	return r != ' '
}
