// Package guess keeps the word-guess slots in step with the buffer.
package guess

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/menu"
	"github.com/dwadden/commboard/internal/ports"
)

const defaultTimeout = 3 * time.Second

// Poster delivers callbacks onto the event loop.
type Poster interface {
	Post(fn func())
}

// Updater relabels guess slots whenever the buffer changes. Lookups run off
// the loop; labels are only written on the loop, and only the result of the
// latest change is applied.
type Updater struct {
	guesser ports.WordGuesser
	slots   []*menu.WordGuess
	poster  Poster
	events  ports.EventSink
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	latest  uint64
	failing bool
}

func NewUpdater(guesser ports.WordGuesser, slots []*menu.WordGuess, poster Poster, events ports.EventSink, logger *slog.Logger, timeout time.Duration) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Updater{
		guesser: guesser,
		slots:   slots,
		poster:  poster,
		events:  events,
		logger:  logger,
		timeout: timeout,
	}
}

// Attach subscribes to buffer changes and returns the listener id.
func (u *Updater) Attach(buf ports.TextBuffer) int {
	return buf.OnChange(u.Update)
}

// Update starts a lookup for the partial word at the end of text. Text that
// ends in a space or punctuation clears every slot.
func (u *Updater) Update(text string) {
	u.mu.Lock()
	u.latest++
	seq := u.latest
	u.mu.Unlock()

	word := partialWord(text)
	if word == "" || u.guesser == nil || len(u.slots) == 0 {
		u.poster.Post(func() { u.apply(seq, nil) })
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		defer cancel()
		words, err := u.guesser.Guess(ctx, word, len(u.slots))
		if err != nil {
			u.fail(seq, err)
			return
		}
		u.recovered(seq)
		u.poster.Post(func() { u.apply(seq, words) })
	}()
}

// apply runs on the loop. Missing guesses leave their slot blank.
func (u *Updater) apply(seq uint64, words []string) {
	u.mu.Lock()
	stale := seq != u.latest
	u.mu.Unlock()
	if stale {
		return
	}
	for i, slot := range u.slots {
		label := ""
		if i < len(words) {
			label = words[i]
		}
		slot.SetLabel(label)
	}
}

// fail logs every current failure but reports only the first of a streak.
// Results of superseded lookups are ignored.
func (u *Updater) fail(seq uint64, err error) {
	u.mu.Lock()
	if seq != u.latest {
		u.mu.Unlock()
		return
	}
	first := !u.failing
	u.failing = true
	u.mu.Unlock()

	u.logger.Warn("guess: lookup failed", "error", err)
	if first && u.events != nil {
		detail := err.Error()
		u.poster.Post(func() { u.events.ScanError(domain.ErrorCodeGuess, detail) })
	}
}

func (u *Updater) recovered(seq uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if seq == u.latest && u.failing {
		u.failing = false
		u.logger.Info("guess: lookups recovered")
	}
}

func partialWord(text string) string {
	if text == "" || strings.HasSuffix(text, " ") {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	word := fields[len(fields)-1]
	for _, r := range word {
		if !unicode.IsLetter(r) && r != '\'' {
			return ""
		}
	}
	return strings.ToLower(word)
}
