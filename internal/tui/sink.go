// Package tui is a terminal front end for the scanning board.
package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dwadden/commboard/internal/domain"
)

type stateMsg struct {
	state  domain.ScannerState
	reason domain.ScannerStateReason
}

type highlightMsg struct {
	menu  string
	index int
	label string
}

type unhighlightMsg struct {
	menu  string
	index int
}

type attentionMsg struct {
	state domain.AttendingState
}

type bufferMsg struct {
	text string
}

type errorMsg struct {
	code   domain.ErrorCode
	detail string
}

type visibilityMsg struct {
	menu    string
	visible bool
}

// Sink turns backend events into tea messages. Events that arrive before
// Attach are held and delivered in order once a program is attached. Sends
// happen on a separate goroutine so the scan loop never waits on rendering.
type Sink struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	pending []tea.Msg
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

func NewSink() *Sink {
	return &Sink{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Attach starts delivering messages with send, typically tea.Program.Send.
func (s *Sink) Attach(send func(tea.Msg)) {
	s.mu.Lock()
	if s.send != nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.send = send
	s.mu.Unlock()

	go s.pump()
	s.signal()
}

// Close stops delivery. Pending messages are dropped.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pending = nil
	close(s.done)
}

func (s *Sink) ScannerStateChanged(state domain.ScannerState, reason domain.ScannerStateReason) {
	s.push(stateMsg{state: state, reason: reason})
}

func (s *Sink) Highlighted(menu string, index int, label string) {
	s.push(highlightMsg{menu: menu, index: index, label: label})
}

func (s *Sink) Unhighlighted(menu string, index int) {
	s.push(unhighlightMsg{menu: menu, index: index})
}

func (s *Sink) AttentionChanged(state domain.AttendingState) {
	s.push(attentionMsg{state: state})
}

func (s *Sink) BufferChanged(text string) {
	s.push(bufferMsg{text: text})
}

func (s *Sink) ScanError(code domain.ErrorCode, detail string) {
	s.push(errorMsg{code: code, detail: detail})
}

func (s *Sink) Show(menu string) {
	s.push(visibilityMsg{menu: menu, visible: true})
}

func (s *Sink) Hide(menu string) {
	s.push(visibilityMsg{menu: menu, visible: false})
}

func (s *Sink) push(msg tea.Msg) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, msg)
	s.mu.Unlock()
	s.signal()
}

func (s *Sink) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sink) pump() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		if s.send == nil {
			s.mu.Unlock()
			continue
		}
		batch := s.pending
		s.pending = nil
		send := s.send
		s.mu.Unlock()

		for _, msg := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			send(msg)
		}
	}
}
