package scan

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dwadden/commboard/internal/classifier"
	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/loop"
	"github.com/dwadden/commboard/internal/menu"
	"github.com/dwadden/commboard/internal/ports"
)

type harness struct {
	t          *testing.T
	sched      *loop.Manual
	classifier *classifier.Classifier
	settings   *Settings
	events     *fakeEvents
	announcer  *fakeAnnouncer
	tone       *fakeTone
	buffer     *fakeBuffer
	visibility *fakeVisibility
	mailer     *fakeMailer
	engine     *Engine
	tree       *menu.Tree
}

func newHarness(t *testing.T, table menu.Table) *harness {
	t.Helper()

	tree, err := menu.Build(table, nil)
	if err != nil {
		t.Fatalf("build menus: %v", err)
	}
	h := &harness{
		t:          t,
		sched:      loop.NewManual(time.Time{}),
		settings:   NewSettings(time.Second, false),
		events:     &fakeEvents{},
		announcer:  &fakeAnnouncer{},
		tone:       &fakeTone{},
		buffer:     &fakeBuffer{},
		visibility: &fakeVisibility{},
		mailer:     &fakeMailer{},
		tree:       tree,
	}
	h.classifier = classifier.New(h.sched, nil, h.events, nil, classifier.Config{MinConsecutive: 1})
	h.classifier.SetMode(domain.DetectorModeScanning)
	h.engine = NewEngine(Deps{
		Scheduler:  h.sched,
		Classifier: h.classifier,
		Settings:   h.settings,
		Announcer:  h.announcer,
		Tone:       h.tone,
		Buffer:     h.buffer,
		Visibility: h.visibility,
		Events:     h.events,
		Mailer:     h.mailer,
	}, Config{})
	return h
}

func (h *harness) menu(name string) *menu.Menu {
	h.t.Helper()
	m, ok := h.tree.Menu(name)
	if !ok {
		h.t.Fatalf("menu %s not found", name)
	}
	return m
}

// gaze holds the switch for d and releases it, then drains posted work.
func (h *harness) gaze(d time.Duration) {
	h.classifier.Press()
	h.sched.Advance(d)
	h.classifier.Release()
	h.sched.Flush()
}

// waitFor flushes the scheduler until cond holds, for work that completes on
// another goroutine.
func (h *harness) waitFor(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.sched.Flush()
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	h.t.Fatalf("condition not met before deadline")
}

func letters(labels ...string) []menu.ItemSpec {
	out := make([]menu.ItemSpec, 0, len(labels))
	for _, label := range labels {
		out = append(out, menu.ItemSpec{Kind: "letter", Label: label})
	}
	return out
}

func singleMenu(policy menu.Policy, items ...menu.ItemSpec) menu.Table {
	return menu.Table{Root: "main", Menus: []menu.MenuSpec{{Name: "main", Scan: policy, Items: items}}}
}

type fakeEvents struct {
	mu            sync.Mutex
	highlights    []string
	unhighlights  []string
	states        []domain.ScannerState
	reasons       []domain.ScannerStateReason
	errors        []domain.ErrorCode
	attention     []domain.AttendingState
	bufferChanges []string
}

func (f *fakeEvents) ScannerStateChanged(state domain.ScannerState, reason domain.ScannerStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	f.reasons = append(f.reasons, reason)
}

func (f *fakeEvents) Highlighted(menuName string, index int, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highlights = append(f.highlights, fmt.Sprintf("%s:%d", menuName, index))
}

func (f *fakeEvents) Unhighlighted(menuName string, index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhighlights = append(f.unhighlights, fmt.Sprintf("%s:%d", menuName, index))
}

func (f *fakeEvents) AttentionChanged(state domain.AttendingState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attention = append(f.attention, state)
}

func (f *fakeEvents) BufferChanged(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bufferChanges = append(f.bufferChanges, text)
}

func (f *fakeEvents) ScanError(code domain.ErrorCode, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, code)
}

func (f *fakeEvents) highlighted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.highlights...)
}

func (f *fakeEvents) errorCodes() []domain.ErrorCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ErrorCode(nil), f.errors...)
}

type fakeAnnouncer struct {
	mu        sync.Mutex
	announced []string
	spoken    []string
}

func (f *fakeAnnouncer) Announce(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, text)
}

func (f *fakeAnnouncer) Speak(text string, onFinished func()) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	if onFinished != nil {
		onFinished()
	}
}

func (f *fakeAnnouncer) speech() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func (f *fakeAnnouncer) announcements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.announced...)
}

type beep struct {
	freq     int
	duration time.Duration
}

type fakeTone struct {
	beeps []beep
}

func (f *fakeTone) Beep(freq int, duration time.Duration) {
	f.beeps = append(f.beeps, beep{freq: freq, duration: duration})
}

type fakeBuffer struct {
	writes        []string
	actions       []domain.BufferAction
	finishedTwice bool
}

func (f *fakeBuffer) Write(text string, category domain.TextCategory) {
	f.writes = append(f.writes, fmt.Sprintf("%s:%s", category, text))
}

func (f *fakeBuffer) ExecuteAction(action domain.BufferAction, onFinished func()) {
	f.actions = append(f.actions, action)
	onFinished()
	if f.finishedTwice {
		onFinished()
	}
}

func (f *fakeBuffer) Text() string                 { return "hello there" }
func (f *fakeBuffer) OnChange(func(string)) int    { return 1 }
func (f *fakeBuffer) RemoveChangeListener(int)     {}

type fakeVisibility struct {
	calls []string
}

func (f *fakeVisibility) Show(name string) { f.calls = append(f.calls, "show:"+name) }
func (f *fakeVisibility) Hide(name string) { f.calls = append(f.calls, "hide:"+name) }

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []ports.MailMessage
}

func (f *fakeMailer) Send(_ context.Context, msg ports.MailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeMailer) messages() []ports.MailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.MailMessage(nil), f.sent...)
}
