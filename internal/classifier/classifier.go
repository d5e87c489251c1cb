// Package classifier turns a sampled attention reading into debounced
// begin/end events.
package classifier

import (
	"log/slog"
	"time"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/loop"
	"github.com/dwadden/commboard/internal/ports"
)

const (
	DefaultMinConsecutive    = 3
	DefaultListeningInterval = time.Second / 5
	DefaultScanningInterval  = time.Second / 20
)

// ListenerID identifies a registered begin or end listener.
type ListenerID uint64

type Config struct {
	// MinConsecutive is the number of consistent readings needed to flip state.
	MinConsecutive    int
	ListeningInterval time.Duration
	ScanningInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinConsecutive <= 0 {
		c.MinConsecutive = DefaultMinConsecutive
	}
	if c.ListeningInterval <= 0 {
		c.ListeningInterval = DefaultListeningInterval
	}
	if c.ScanningInterval <= 0 {
		c.ScanningInterval = DefaultScanningInterval
	}
	return c
}

type listener struct {
	id ListenerID
	fn func()
}

// Classifier must only be used from the scheduler's goroutine.
type Classifier struct {
	sched  loop.Scheduler
	sensor ports.Sensor
	events ports.EventSink
	logger *slog.Logger
	cfg    Config

	mode        domain.DetectorMode
	state       domain.AttendingState
	consecutive int
	tick        loop.Timer

	nextID  ListenerID
	begin   []listener
	end     []listener
	failing bool
}

// New returns an idle classifier. sensor may be nil when only discrete input
// (Press/Release) is available.
func New(sched loop.Scheduler, sensor ports.Sensor, events ports.EventSink, logger *slog.Logger, cfg Config) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		sched:  sched,
		sensor: sensor,
		events: events,
		logger: logger,
		cfg:    cfg.withDefaults(),
		mode:   domain.DetectorModeIdle,
		state:  domain.AttendingStateResting,
	}
}

func (c *Classifier) Mode() domain.DetectorMode {
	return c.mode
}

func (c *Classifier) State() domain.AttendingState {
	return c.state
}

// SetMode changes the sampling cadence. Entering idle stops sampling and
// resets the classification to resting without emitting end.
func (c *Classifier) SetMode(mode domain.DetectorMode) {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
	c.mode = mode
	c.consecutive = 0
	if mode == domain.DetectorModeIdle {
		if c.state != domain.AttendingStateResting {
			c.state = domain.AttendingStateResting
			c.notifyAttention()
		}
		return
	}
	c.scheduleTick()
}

func (c *Classifier) OnBegin(fn func()) ListenerID {
	c.nextID++
	c.begin = append(c.begin, listener{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *Classifier) OnEnd(fn func()) ListenerID {
	c.nextID++
	c.end = append(c.end, listener{id: c.nextID, fn: fn})
	return c.nextID
}

// RemoveBeginListener reports whether id was registered.
func (c *Classifier) RemoveBeginListener(id ListenerID) bool {
	var ok bool
	c.begin, ok = removeListener(c.begin, id)
	return ok
}

func (c *Classifier) RemoveEndListener(id ListenerID) bool {
	var ok bool
	c.end, ok = removeListener(c.end, id)
	return ok
}

// ListenerCount returns the number of registered begin and end listeners.
func (c *Classifier) ListenerCount() (begin int, end int) {
	return len(c.begin), len(c.end)
}

// Observe feeds one raw reading through the debounce filter.
func (c *Classifier) Observe(positive bool) {
	if c.mode == domain.DetectorModeIdle {
		return
	}
	contrary := positive == (c.state == domain.AttendingStateResting)
	if !contrary {
		c.consecutive = 0
		return
	}
	c.consecutive++
	if c.consecutive < c.cfg.MinConsecutive {
		return
	}
	c.consecutive = 0
	if positive {
		c.transition(domain.AttendingStateAttending)
	} else {
		c.transition(domain.AttendingStateResting)
	}
}

// Press is a discrete, already debounced switch closure.
func (c *Classifier) Press() {
	if c.mode == domain.DetectorModeIdle || c.state == domain.AttendingStateAttending {
		return
	}
	c.consecutive = 0
	c.transition(domain.AttendingStateAttending)
}

// Release is a discrete, already debounced switch opening.
func (c *Classifier) Release() {
	if c.mode == domain.DetectorModeIdle || c.state == domain.AttendingStateResting {
		return
	}
	c.consecutive = 0
	c.transition(domain.AttendingStateResting)
}

func (c *Classifier) transition(next domain.AttendingState) {
	c.state = next
	c.notifyAttention()
	if next == domain.AttendingStateAttending {
		c.emit(&c.begin)
		return
	}
	c.emit(&c.end)
}

// emit calls a snapshot of the listeners, skipping any removed by an earlier
// listener in the same emission.
func (c *Classifier) emit(set *[]listener) {
	snapshot := append([]listener(nil), (*set)...)
	for _, l := range snapshot {
		if !containsListener(*set, l.id) {
			continue
		}
		l.fn()
	}
}

func (c *Classifier) scheduleTick() {
	if c.sensor == nil {
		return
	}
	interval := c.cfg.ListeningInterval
	if c.mode == domain.DetectorModeScanning {
		interval = c.cfg.ScanningInterval
	}
	c.tick = c.sched.AfterFunc(interval, c.sample)
}

func (c *Classifier) sample() {
	c.tick = nil
	if c.mode == domain.DetectorModeIdle {
		return
	}
	positive, err := c.sensor.Sample()
	if err != nil {
		positive = false
		if !c.failing {
			c.failing = true
			c.logger.Warn("classifier: sensor unavailable", "error", err)
			if c.events != nil {
				c.events.ScanError(domain.ErrorCodeSensor, err.Error())
			}
		}
	} else if c.failing {
		c.failing = false
		c.logger.Info("classifier: sensor recovered")
	}
	c.Observe(positive)
	if c.tick == nil && c.mode != domain.DetectorModeIdle {
		c.scheduleTick()
	}
}

func (c *Classifier) notifyAttention() {
	if c.events != nil {
		c.events.AttentionChanged(c.state)
	}
}

func removeListener(set []listener, id ListenerID) ([]listener, bool) {
	for i, l := range set {
		if l.id == id {
			return append(set[:i:i], set[i+1:]...), true
		}
	}
	return set, false
}

func containsListener(set []listener, id ListenerID) bool {
	for _, l := range set {
		if l.id == id {
			return true
		}
	}
	return false
}
