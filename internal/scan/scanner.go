package scan

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dwadden/commboard/internal/classifier"
	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/loop"
	"github.com/dwadden/commboard/internal/menu"
	"github.com/dwadden/commboard/internal/ports"
)

const (
	listeningMessage = "Listening"
	stoppingMessage  = "Stopping"
)

// listenSession waits for a long signal before scanning starts.
type listenSession struct {
	beginID   classifier.ListenerID
	endID     classifier.ListenerID
	cue       loop.Timer
	gazing    bool
	gazeStart time.Time
}

// Scanner moves between idle, listening and scanning. Its exported methods
// are safe to call from any goroutine; work is posted to the scheduler.
type Scanner struct {
	sched      loop.Scheduler
	root       *menu.Menu
	engine     *Engine
	classifier *classifier.Classifier
	settings   *Settings
	announcer  ports.Announcer
	tone       ports.Tone
	logger     *slog.Logger
	cfg        Config
	status     *statusTracker

	state  domain.ScannerState
	listen *listenSession
}

// NewScanner builds the classifier and engine around root. sensor may be nil
// when only the switch is used.
func NewScanner(root *menu.Menu, sensor ports.Sensor, deps Deps, cfg Config) *Scanner {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	tracker := newStatusTracker(deps.Events)
	deps.Events = tracker
	deps.Classifier = classifier.New(deps.Scheduler, sensor, tracker, deps.Logger, cfg.Classifier)
	engine := NewEngine(deps, cfg)

	return &Scanner{
		sched:      deps.Scheduler,
		root:       root,
		engine:     engine,
		classifier: engine.classifier,
		settings:   engine.settings,
		announcer:  engine.announcer,
		tone:       engine.tone,
		logger:     engine.logger,
		cfg:        cfg,
		status:     tracker,
		state:      domain.ScannerStateIdle,
	}
}

func (s *Scanner) Settings() *Settings {
	return s.settings
}

// Status returns a snapshot of the scanner state.
func (s *Scanner) Status() domain.Status {
	return s.status.snapshot()
}

// Start begins listening for a long signal. It is ignored unless idle.
func (s *Scanner) Start() {
	s.sched.Post(func() {
		if s.state != domain.ScannerStateIdle {
			return
		}
		s.enterListening(domain.ScannerReasonStarted)
	})
}

// ScanNow skips listening and starts scanning the root menu.
func (s *Scanner) ScanNow() {
	s.sched.Post(func() {
		if s.state == domain.ScannerStateScanning {
			return
		}
		s.leaveListening()
		s.enterScanning(domain.ScannerReasonStarted)
	})
}

// Stop cancels listening or scanning and returns to idle.
func (s *Scanner) Stop() {
	s.sched.Post(func() {
		if s.state == domain.ScannerStateIdle {
			return
		}
		s.leaveListening()
		s.engine.Stop()
		s.classifier.SetMode(domain.DetectorModeIdle)
		s.announcer.Announce(stoppingMessage)
		s.setState(domain.ScannerStateIdle, domain.ScannerReasonStopRequested)
	})
}

// SwitchDown reports a discrete switch closure.
func (s *Scanner) SwitchDown() {
	s.sched.Post(s.classifier.Press)
}

// SwitchUp reports a discrete switch opening.
func (s *Scanner) SwitchUp() {
	s.sched.Post(s.classifier.Release)
}

func (s *Scanner) enterListening(reason domain.ScannerStateReason) {
	s.classifier.SetMode(domain.DetectorModeListening)
	ls := &listenSession{}
	ls.beginID = s.classifier.OnBegin(func() { s.onListenBegin(ls) })
	ls.endID = s.classifier.OnEnd(func() { s.onListenEnd(ls) })
	s.listen = ls
	s.announcer.Announce(listeningMessage)
	s.setState(domain.ScannerStateListening, reason)
}

func (s *Scanner) leaveListening() {
	ls := s.listen
	if ls == nil {
		return
	}
	if ls.cue != nil {
		ls.cue.Stop()
	}
	s.classifier.RemoveBeginListener(ls.beginID)
	s.classifier.RemoveEndListener(ls.endID)
	s.listen = nil
}

func (s *Scanner) onListenBegin(ls *listenSession) {
	if s.listen != ls {
		return
	}
	ls.gazing = true
	ls.gazeStart = s.sched.Now()
	if ls.cue != nil {
		ls.cue.Stop()
	}
	ls.cue = s.sched.AfterFunc(s.cfg.Long, func() {
		ls.cue = nil
		s.tone.Beep(s.cfg.CueFrequency, s.cfg.CueDuration)
	})
}

func (s *Scanner) onListenEnd(ls *listenSession) {
	if s.listen != ls || !ls.gazing {
		return
	}
	ls.gazing = false
	if ls.cue != nil {
		ls.cue.Stop()
		ls.cue = nil
	}
	if s.sched.Now().Sub(ls.gazeStart) < s.cfg.Long {
		return
	}
	s.leaveListening()
	s.enterScanning(domain.ScannerReasonLongSignal)
}

func (s *Scanner) enterScanning(reason domain.ScannerStateReason) {
	s.classifier.SetMode(domain.DetectorModeScanning)
	s.setState(domain.ScannerStateScanning, reason)
	runID := s.engine.Run(s.root, func(exit domain.ScannerStateReason) {
		s.status.setRun("")
		s.enterListening(exit)
	})
	// The run may already have ended if the root had nothing to scan.
	if s.engine.Running() {
		s.status.setRun(runID)
	}
}

func (s *Scanner) setState(state domain.ScannerState, reason domain.ScannerStateReason) {
	s.state = state
	s.logger.Info("scan: scanner state changed", "state", state, "reason", reason)
	s.status.ScannerStateChanged(state, reason)
}

// statusTracker records a snapshot of the events it forwards.
type statusTracker struct {
	next ports.EventSink

	mu     sync.RWMutex
	status domain.Status
}

func newStatusTracker(next ports.EventSink) *statusTracker {
	if next == nil {
		next = nopEvents{}
	}
	return &statusTracker{
		next: next,
		status: domain.Status{
			State:     domain.ScannerStateIdle,
			Attention: domain.AttendingStateResting,
		},
	}
}

func (t *statusTracker) snapshot() domain.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *statusTracker) setRun(id string) {
	t.mu.Lock()
	t.status.RunID = id
	t.mu.Unlock()
}

func (t *statusTracker) ScannerStateChanged(state domain.ScannerState, reason domain.ScannerStateReason) {
	t.mu.Lock()
	t.status.State = state
	t.status.Message = string(reason)
	if state != domain.ScannerStateScanning {
		t.status.Menu = ""
		t.status.Item = ""
	}
	t.mu.Unlock()
	t.next.ScannerStateChanged(state, reason)
}

func (t *statusTracker) Highlighted(menuName string, index int, label string) {
	t.mu.Lock()
	t.status.Menu = menuName
	t.status.Item = label
	t.mu.Unlock()
	t.next.Highlighted(menuName, index, label)
}

func (t *statusTracker) Unhighlighted(menuName string, index int) {
	t.mu.Lock()
	t.status.Item = ""
	t.mu.Unlock()
	t.next.Unhighlighted(menuName, index)
}

func (t *statusTracker) AttentionChanged(state domain.AttendingState) {
	t.mu.Lock()
	t.status.Attention = state
	t.mu.Unlock()
	t.next.AttentionChanged(state)
}

func (t *statusTracker) BufferChanged(text string) {
	t.next.BufferChanged(text)
}

func (t *statusTracker) ScanError(code domain.ErrorCode, detail string) {
	t.next.ScanError(code, detail)
}
