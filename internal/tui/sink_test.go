package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dwadden/commboard/internal/domain"
)

func TestSinkDeliversHeldEventsInOrder(t *testing.T) {
	t.Parallel()

	sink := NewSink()
	defer sink.Close()

	sink.ScanError(domain.ErrorCodeLayout, "bad item")
	sink.BufferChanged("a")

	received := make(chan tea.Msg, 8)
	sink.Attach(func(msg tea.Msg) { received <- msg })
	sink.Show("email")

	want := []tea.Msg{
		errorMsg{code: domain.ErrorCodeLayout, detail: "bad item"},
		bufferMsg{text: "a"},
		visibilityMsg{menu: "email", visible: true},
	}
	for i, expected := range want {
		select {
		case got := <-received:
			if got != expected {
				t.Fatalf("message %d: expected %#v, got %#v", i, expected, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestSinkDropsEventsAfterClose(t *testing.T) {
	t.Parallel()

	sink := NewSink()
	received := make(chan tea.Msg, 8)
	sink.Attach(func(msg tea.Msg) { received <- msg })
	sink.Close()
	sink.AttentionChanged(domain.AttendingStateAttending)

	select {
	case msg := <-received:
		t.Fatalf("unexpected message after close: %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
