// Package scan drives menu scanning: highlighting items in turn, classifying
// gaze dwell, dispatching selections and walking the menu tree.
package scan

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dwadden/commboard/internal/classifier"
	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/loop"
	"github.com/dwadden/commboard/internal/menu"
	"github.com/dwadden/commboard/internal/ports"
)

// Deps are the collaborators an Engine drives. Nil collaborators are
// replaced with silent implementations.
type Deps struct {
	Scheduler  loop.Scheduler
	Classifier *classifier.Classifier
	Settings   *Settings
	Announcer  ports.Announcer
	Tone       ports.Tone
	Buffer     ports.TextBuffer
	Visibility ports.VisibilitySink
	Events     ports.EventSink
	Mailer     ports.Mailer
	Expander   ports.TextExpander
	Logger     *slog.Logger
}

// run is one scan started from the root. Cancelling it drops every callback
// that still refers to it.
type run struct {
	id        uuid.UUID
	cancelled bool
	exit      func(reason domain.ScannerStateReason)
	// shown lists collapsible menus revealed by this run, outermost first.
	shown []string
}

// session is one ScanMenu invocation.
type session struct {
	run        *run
	menu       *menu.Menu
	onComplete func()

	index int
	cycle int

	dwell loop.Timer
	cue   loop.Timer

	subscribed bool
	beginID    classifier.ListenerID
	endID      classifier.ListenerID

	highlighted int
	gazing      bool
	gazeIndex   int
	gazeStart   time.Time

	done bool
}

// Engine must only be used from the scheduler's goroutine.
type Engine struct {
	sched      loop.Scheduler
	classifier *classifier.Classifier
	settings   *Settings
	announcer  ports.Announcer
	tone       ports.Tone
	buffer     ports.TextBuffer
	visibility ports.VisibilitySink
	events     ports.EventSink
	mailer     ports.Mailer
	expander   ports.TextExpander
	logger     *slog.Logger
	cfg        Config

	run    *run
	active *session
}

func NewEngine(deps Deps, cfg Config) *Engine {
	deps = withNopDeps(deps)
	return &Engine{
		sched:      deps.Scheduler,
		classifier: deps.Classifier,
		settings:   deps.Settings,
		announcer:  deps.Announcer,
		tone:       deps.Tone,
		buffer:     deps.Buffer,
		visibility: deps.Visibility,
		events:     deps.Events,
		mailer:     deps.Mailer,
		expander:   deps.Expander,
		logger:     deps.Logger,
		cfg:        cfg.withDefaults(),
	}
}

// Run starts a scan of root under a fresh run. exit is called once when the
// run ends on its own: the root scan completed or a ToggleRun item was
// selected. It is not called after Stop.
func (e *Engine) Run(root *menu.Menu, exit func(reason domain.ScannerStateReason)) string {
	if e.run != nil && !e.run.cancelled {
		panic("scan: run started while another run is active")
	}
	r := &run{id: uuid.New(), exit: exit}
	e.run = r
	e.logger.Info("scan: run started", "run", r.id.String(), "menu", root.Name)
	e.scanMenu(r, root, 0, 0, func() {
		e.exitRun(r, domain.ScannerReasonScanFinished)
	})
	return r.id.String()
}

// ScanMenu scans m and calls onComplete when the menu hands control back.
// It joins the current run. With no active run it starts one that ends,
// and then calls onComplete, when m completes or a ToggleRun is selected.
func (e *Engine) ScanMenu(m *menu.Menu, onComplete func()) {
	if e.run != nil && !e.run.cancelled {
		e.scanMenu(e.run, m, 0, 0, onComplete)
		return
	}
	r := &run{id: uuid.New(), exit: func(domain.ScannerStateReason) { onComplete() }}
	e.run = r
	e.scanMenu(r, m, 0, 0, func() {
		e.exitRun(r, domain.ScannerReasonScanFinished)
	})
}

// Stop cancels the active run, tears down the leaf session and idles the
// classifier. In-flight item completions are dropped.
func (e *Engine) Stop() {
	if e.run != nil {
		e.run.cancelled = true
		e.logger.Info("scan: run stopped", "run", e.run.id.String())
	}
	if s := e.active; s != nil && !s.done {
		e.teardown(s)
	}
	if e.run != nil {
		e.hideShown(e.run)
	}
	e.active = nil
	e.run = nil
	e.classifier.SetMode(domain.DetectorModeIdle)
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.run != nil && !e.run.cancelled
}

func (e *Engine) exitRun(r *run, reason domain.ScannerStateReason) {
	if r.cancelled {
		return
	}
	r.cancelled = true
	if s := e.active; s != nil && !s.done {
		e.teardown(s)
	}
	e.active = nil
	e.hideShown(r)
	if e.run == r {
		e.run = nil
	}
	e.logger.Info("scan: run finished", "run", r.id.String(), "reason", reason)
	if r.exit != nil {
		r.exit(reason)
	}
}

func (e *Engine) scanMenu(r *run, m *menu.Menu, index int, cycle int, onComplete func()) {
	if r.cancelled {
		return
	}
	if e.active != nil && !e.active.done {
		panic(fmt.Sprintf("scan: menu %s started while %s is still scanning", m.Name, e.active.menu.Name))
	}
	s := &session{
		run:         r,
		menu:        m,
		onComplete:  onComplete,
		index:       index,
		cycle:       cycle,
		highlighted: -1,
	}
	e.active = s
	e.subscribe(s)
	e.logger.Debug("scan: menu entered", "run", r.id.String(), "menu", m.Name, "index", index, "cycle", cycle)
	e.step(s)
}

func (e *Engine) step(s *session) {
	skipped := 0
	for {
		if s.done || s.run.cancelled {
			return
		}
		if s.cycle >= e.cfg.LoopLimit {
			e.teardown(s)
			if s.menu.Policy == menu.PolicyRepeat {
				e.scanMenu(s.run, s.menu, 0, 0, s.onComplete)
				return
			}
			s.onComplete()
			return
		}
		if !s.menu.Items[s.index].IsEmpty() {
			break
		}
		skipped++
		if skipped > len(s.menu.Items) {
			// Nothing in the menu can be highlighted.
			e.logger.Warn("scan: menu has no selectable items", "menu", s.menu.Name)
			e.teardown(s)
			s.onComplete()
			return
		}
		e.advance(s)
	}

	item := s.menu.Items[s.index]
	e.highlight(s, s.index)
	if e.settings.Sound() {
		e.announcer.Announce(item.Announcement())
	}
	if s.dwell != nil {
		panic("scan: dwell timer already armed for " + s.menu.Name)
	}
	wait := time.Duration(float64(e.settings.ScanSpeed()) * item.WaitMultiplier())
	if wait < e.cfg.MinDwell {
		wait = e.cfg.MinDwell
	}
	s.dwell = e.sched.AfterFunc(wait, func() { e.onDwell(s) })
}

func (e *Engine) advance(s *session) {
	if s.index == len(s.menu.Items)-1 {
		s.cycle++
	}
	s.index = (s.index + 1) % len(s.menu.Items)
}

func (e *Engine) onDwell(s *session) {
	if s.done || s.run.cancelled {
		return
	}
	s.dwell = nil
	e.unhighlight(s)
	e.advance(s)
	e.step(s)
}

func (e *Engine) subscribe(s *session) {
	if s.subscribed {
		panic("scan: duplicate listener registration for " + s.menu.Name)
	}
	s.beginID = e.classifier.OnBegin(func() { e.onBegin(s) })
	s.endID = e.classifier.OnEnd(func() { e.onEnd(s) })
	s.subscribed = true
}

func (e *Engine) onBegin(s *session) {
	if s.done {
		return
	}
	s.gazing = true
	s.gazeIndex = s.index
	s.gazeStart = e.sched.Now()
	if s.cue != nil {
		s.cue.Stop()
	}
	s.cue = e.sched.AfterFunc(e.cfg.Long, func() {
		s.cue = nil
		e.tone.Beep(e.cfg.CueFrequency, e.cfg.CueDuration)
	})
}

func (e *Engine) onEnd(s *session) {
	if s.done || !s.gazing {
		return
	}
	s.gazing = false
	if s.cue != nil {
		s.cue.Stop()
		s.cue = nil
	}
	elapsed := e.sched.Now().Sub(s.gazeStart)
	outcome := classifyDwell(elapsed, e.cfg.Short, e.cfg.Long)
	e.logger.Debug("scan: gaze ended", "menu", s.menu.Name, "elapsed", elapsed, "outcome", outcome.String())
	switch outcome {
	case dwellConfirm:
		e.teardown(s)
		e.selectItem(s, s.gazeIndex)
	case dwellAbort:
		e.teardown(s)
		s.onComplete()
	}
}

// teardown cancels timers and listeners and clears the highlight. The
// session never acts again afterwards.
func (e *Engine) teardown(s *session) {
	if s.dwell != nil {
		s.dwell.Stop()
		s.dwell = nil
	}
	if s.cue != nil {
		s.cue.Stop()
		s.cue = nil
	}
	if s.subscribed {
		e.classifier.RemoveBeginListener(s.beginID)
		e.classifier.RemoveEndListener(s.endID)
		s.subscribed = false
	}
	e.unhighlight(s)
	s.done = true
	if e.active == s {
		e.active = nil
	}
}

func (e *Engine) highlight(s *session, index int) {
	s.highlighted = index
	e.events.Highlighted(s.menu.Name, index, s.menu.Items[index].Label())
}

func (e *Engine) unhighlight(s *session) {
	if s.highlighted < 0 {
		return
	}
	e.events.Unhighlighted(s.menu.Name, s.highlighted)
	s.highlighted = -1
}

// selectItem runs the item's action and continues once it has finished.
func (e *Engine) selectItem(s *session, index int) {
	item := s.menu.Items[index]
	e.logger.Info("scan: item selected", "run", s.run.id.String(), "menu", s.menu.Name, "index", index, "label", item.Label())

	fired := false
	finished := func() {
		if fired {
			e.logger.Error("scan: item finished more than once", "menu", s.menu.Name, "index", index)
			e.events.ScanError(domain.ErrorCodeInvariant, fmt.Sprintf("%s item %d finished twice", s.menu.Name, index))
			return
		}
		fired = true
		if s.run.cancelled {
			return
		}
		e.continueAfter(s, index, item)
	}
	done := e.onLoop(s.run, finished)
	// finished is posted rather than called so continuations never run
	// inside a collaborator's call stack.
	action := func() { e.perform(s.run, item, done) }
	if e.settings.Sound() {
		e.announcer.Speak(item.Announcement(), e.onLoop(s.run, action))
		return
	}
	action()
}

func (e *Engine) continueAfter(s *session, index int, item menu.Item) {
	r := s.run
	m := s.menu
	switch it := item.(type) {
	case *menu.NavigateMenu:
		child, ok := m.Child(it.Target)
		if !ok {
			e.events.ScanError(domain.ErrorCodeLayout, "unknown menu "+it.Target)
			e.resume(s, index)
			return
		}
		collapse := child.Collapsible() || it.Collapse
		if collapse {
			e.visibility.Show(child.Name)
			r.shown = append(r.shown, child.Name)
		}
		e.scanMenu(r, child, 0, 0, func() {
			if collapse {
				e.hide(r, child.Name)
			}
			e.resume(s, index)
		})
	case *menu.ToggleRun:
		e.exitRun(r, domain.ScannerReasonRunToggled)
	default:
		if m.Policy == menu.PolicyRepeat {
			e.scanMenu(r, m, 0, 0, s.onComplete)
			return
		}
		s.onComplete()
	}
}

func (e *Engine) hide(r *run, name string) {
	for i := len(r.shown) - 1; i >= 0; i-- {
		if r.shown[i] == name {
			r.shown = append(r.shown[:i], r.shown[i+1:]...)
			break
		}
	}
	e.visibility.Hide(name)
}

// hideShown hides every menu the run still has open, innermost first.
func (e *Engine) hideShown(r *run) {
	for i := len(r.shown) - 1; i >= 0; i-- {
		e.visibility.Hide(r.shown[i])
	}
	r.shown = nil
}

// resume hands control back to a parent after a submenu returned. A repeat
// parent starts over; a finish parent continues after the navigating item.
func (e *Engine) resume(s *session, index int) {
	m := s.menu
	if m.Policy == menu.PolicyRepeat {
		e.scanMenu(s.run, m, 0, 0, s.onComplete)
		return
	}
	next, cycle := index+1, s.cycle
	if next == len(m.Items) {
		next, cycle = 0, cycle+1
	}
	e.scanMenu(s.run, m, next, cycle, s.onComplete)
}

// onLoop returns a goroutine-safe callback that runs fn on the loop unless r
// has been cancelled by then.
func (e *Engine) onLoop(r *run, fn func()) func() {
	return func() {
		e.sched.Post(func() {
			if r.cancelled {
				return
			}
			fn()
		})
	}
}
