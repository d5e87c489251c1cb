package audio

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/ports"
)

// SpeechConfig selects the espeak-ng binary and voice.
type SpeechConfig struct {
	Command        string
	Voice          string
	WordsPerMinute int
}

// Speaker is a ports.Announcer backed by espeak-ng. A new utterance cuts off
// the one still playing. Completion callbacks are posted to the loop.
type Speaker struct {
	cfg      SpeechConfig
	poster   Poster
	reporter reporter

	mu      sync.Mutex
	current *utterance
}

var _ ports.Announcer = (*Speaker)(nil)

func NewSpeaker(cfg SpeechConfig, poster Poster, events ports.EventSink, logger *slog.Logger) *Speaker {
	if cfg.Command == "" {
		cfg.Command = "espeak-ng"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		cfg:      cfg,
		poster:   poster,
		reporter: reporter{poster: poster, events: events, logger: logger},
	}
}

func (s *Speaker) Announce(text string) {
	s.say(text, nil)
}

// Speak calls onFinished once playback ends, fails or is cut off.
func (s *Speaker) Speak(text string, onFinished func()) {
	s.say(text, onFinished)
}

// Close stops any utterance in progress and waits for it to exit.
func (s *Speaker) Close() {
	s.mu.Lock()
	u := s.current
	s.current = nil
	s.mu.Unlock()
	if u != nil {
		u.interrupt()
		<-u.done
	}
}

func (s *Speaker) say(text string, onFinished func()) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.finish(onFinished)
		return
	}

	u := newUtterance(s.cfg.Command, s.args(text))

	s.mu.Lock()
	s.current.interrupt()
	if err := u.cmd.Start(); err != nil {
		s.current = nil
		s.mu.Unlock()
		s.reporter.report(domain.ErrorCodeSpeech, "audio: speech failed to start", fmt.Errorf("failed to start %s: %w", s.cfg.Command, err))
		s.finish(onFinished)
		return
	}
	s.current = u
	s.mu.Unlock()

	go func() {
		err := u.wait()
		s.mu.Lock()
		if s.current == u {
			s.current = nil
		}
		s.mu.Unlock()
		if err != nil {
			s.reporter.report(domain.ErrorCodeSpeech, "audio: speech failed", err)
		}
		s.finish(onFinished)
	}()
}

func (s *Speaker) args(text string) []string {
	args := []string{}
	if s.cfg.Voice != "" {
		args = append(args, "-v", s.cfg.Voice)
	}
	if s.cfg.WordsPerMinute > 0 {
		args = append(args, "-s", strconv.Itoa(s.cfg.WordsPerMinute))
	}
	return append(args, "--", text)
}

func (s *Speaker) finish(onFinished func()) {
	if onFinished == nil {
		return
	}
	if s.poster == nil {
		onFinished()
		return
	}
	s.poster.Post(onFinished)
}
