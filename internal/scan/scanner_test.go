package scan

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/loop"
	"github.com/dwadden/commboard/internal/menu"
)

type scannerHarness struct {
	sched     *loop.Manual
	events    *fakeEvents
	announcer *fakeAnnouncer
	tone      *fakeTone
	buffer    *fakeBuffer
	scanner   *Scanner
}

func newScannerHarness(t *testing.T, table menu.Table) *scannerHarness {
	t.Helper()

	tree, err := menu.Build(table, nil)
	if err != nil {
		t.Fatalf("build menus: %v", err)
	}
	h := &scannerHarness{
		sched:     loop.NewManual(time.Time{}),
		events:    &fakeEvents{},
		announcer: &fakeAnnouncer{},
		tone:      &fakeTone{},
		buffer:    &fakeBuffer{},
	}
	h.scanner = NewScanner(tree.Root(), nil, Deps{
		Scheduler: h.sched,
		Settings:  NewSettings(time.Second, false),
		Announcer: h.announcer,
		Tone:      h.tone,
		Buffer:    h.buffer,
		Events:    h.events,
	}, Config{})
	return h
}

func (h *scannerHarness) hold(d time.Duration) {
	h.scanner.SwitchDown()
	h.sched.Flush()
	h.sched.Advance(d)
	h.scanner.SwitchUp()
	h.sched.Flush()
}

func TestScannerListensThenScansOnLongSignal(t *testing.T) {
	t.Parallel()

	h := newScannerHarness(t, singleMenu(menu.PolicyRepeat, letters("A", "B")...))
	h.scanner.Start()
	h.sched.Flush()

	if got := h.scanner.Status().State; got != domain.ScannerStateListening {
		t.Fatalf("expected listening, got %s", got)
	}
	if h.scanner.classifier.Mode() != domain.DetectorModeListening {
		t.Fatalf("classifier should sample slowly while listening")
	}

	h.hold(500 * time.Millisecond)
	if got := h.scanner.Status().State; got != domain.ScannerStateListening {
		t.Fatalf("short signal should not start scanning, got %s", got)
	}

	h.hold(2100 * time.Millisecond)
	status := h.scanner.Status()
	if status.State != domain.ScannerStateScanning {
		t.Fatalf("expected scanning, got %s", status.State)
	}
	if status.RunID == "" || status.Menu != "main" || status.Item != "A" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if h.scanner.classifier.Mode() != domain.DetectorModeScanning {
		t.Fatalf("classifier should sample fast while scanning")
	}
	if len(h.tone.beeps) != 1 {
		t.Fatalf("expected long signal cue, got %v", h.tone.beeps)
	}
	wantReasons := []domain.ScannerStateReason{domain.ScannerReasonStarted, domain.ScannerReasonLongSignal}
	if !reflect.DeepEqual(h.events.reasons, wantReasons) {
		t.Fatalf("unexpected reasons: %v", h.events.reasons)
	}
	if got := h.announcer.announcements(); len(got) == 0 || got[0] != listeningMessage {
		t.Fatalf("listening was not announced: %v", got)
	}
}

func TestScannerReturnsToListeningAfterRootAbort(t *testing.T) {
	t.Parallel()

	h := newScannerHarness(t, singleMenu(menu.PolicyRepeat, letters("A", "B")...))
	h.scanner.ScanNow()
	h.sched.Flush()

	h.hold(2500 * time.Millisecond)
	status := h.scanner.Status()
	if status.State != domain.ScannerStateListening {
		t.Fatalf("expected listening after abort, got %s", status.State)
	}
	if status.RunID != "" || status.Menu != "" {
		t.Fatalf("status should be cleared: %+v", status)
	}
	if last := h.events.reasons[len(h.events.reasons)-1]; last != domain.ScannerReasonScanFinished {
		t.Fatalf("unexpected reason %s", last)
	}
	if len(h.buffer.writes) != 0 {
		t.Fatalf("abort selected %v", h.buffer.writes)
	}
}

func TestScannerStopReturnsToIdle(t *testing.T) {
	t.Parallel()

	h := newScannerHarness(t, singleMenu(menu.PolicyRepeat, letters("A", "B", "C")...))
	h.scanner.ScanNow()
	h.sched.Advance(1500 * time.Millisecond)
	h.scanner.Stop()
	h.sched.Flush()

	highlights := len(h.events.highlighted())
	h.sched.Advance(10 * time.Second)

	if got := len(h.events.highlighted()); got != highlights {
		t.Fatalf("scan kept running after stop")
	}
	if got := h.scanner.Status().State; got != domain.ScannerStateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if h.scanner.classifier.Mode() != domain.DetectorModeIdle {
		t.Fatalf("classifier should be idle")
	}
	announced := h.announcer.announcements()
	if announced[len(announced)-1] != stoppingMessage {
		t.Fatalf("stop was not announced: %v", announced)
	}

	// Switch input is ignored while idle.
	h.hold(300 * time.Millisecond)
	if len(h.buffer.writes) != 0 {
		t.Fatalf("idle scanner selected %v", h.buffer.writes)
	}
}

func TestScannerStopWhileListening(t *testing.T) {
	t.Parallel()

	h := newScannerHarness(t, singleMenu(menu.PolicyRepeat, letters("A")...))
	h.scanner.Start()
	h.sched.Flush()
	h.scanner.Stop()
	h.sched.Flush()

	if got := h.scanner.Status().State; got != domain.ScannerStateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if begin, end := h.scanner.classifier.ListenerCount(); begin != 0 || end != 0 {
		t.Fatalf("listening subscription leaked")
	}
}

func TestScannerToggleRunGoesBackToListening(t *testing.T) {
	t.Parallel()

	items := []menu.ItemSpec{{Kind: "toggle", Label: "Stop"}, {Kind: "letter", Label: "A"}}
	h := newScannerHarness(t, singleMenu(menu.PolicyRepeat, items...))
	h.scanner.ScanNow()
	h.sched.Flush()

	h.hold(300 * time.Millisecond)
	h.sched.Advance(2 * time.Second)

	if got := h.scanner.Status().State; got != domain.ScannerStateListening {
		t.Fatalf("expected listening, got %s", got)
	}
	if last := h.events.reasons[len(h.events.reasons)-1]; last != domain.ScannerReasonRunToggled {
		t.Fatalf("unexpected reason %s", last)
	}
}

func TestScannerPublicAPIIsSafeFromManyGoroutines(t *testing.T) {
	t.Parallel()

	h := newScannerHarness(t, singleMenu(menu.PolicyRepeat, letters("A")...))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.scanner.Start()
			_ = h.scanner.Status()
			h.scanner.Settings().SetScanSpeed(2 * time.Second)
		}()
	}
	wg.Wait()
	h.sched.Flush()

	if got := h.scanner.Status().State; got != domain.ScannerStateListening {
		t.Fatalf("expected listening, got %s", got)
	}
	if n := len(h.events.reasons); n != 1 {
		t.Fatalf("expected one transition, got %d", n)
	}
}
