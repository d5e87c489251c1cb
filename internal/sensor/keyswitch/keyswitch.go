// Package keyswitch turns key presses into switch signals. It stands in for
// the camera and is always available.
package keyswitch

import (
	"strings"
	"time"

	"github.com/dwadden/commboard/internal/loop"
)

const (
	DefaultTapHold      = 500 * time.Millisecond
	DefaultExtendedHold = 2500 * time.Millisecond
)

// Target receives switch transitions.
type Target interface {
	SwitchDown()
	SwitchUp()
}

// Config sets how long synthesized signals are held.
type Config struct {
	TapHold      time.Duration
	ExtendedHold time.Duration
}

// Switch drives a Target from hold, latch and timed-tap inputs. Its methods
// may be called from any goroutine; state changes happen on the loop.
type Switch struct {
	sched  loop.Scheduler
	target Target
	cfg    Config

	held    bool
	release loop.Timer
}

func New(sched loop.Scheduler, target Target, cfg Config) *Switch {
	if cfg.TapHold <= 0 {
		cfg.TapHold = DefaultTapHold
	}
	if cfg.ExtendedHold <= 0 {
		cfg.ExtendedHold = DefaultExtendedHold
	}
	return &Switch{sched: sched, target: target, cfg: cfg}
}

// Down presses the switch until Up is called.
func (s *Switch) Down() {
	s.sched.Post(s.down)
}

func (s *Switch) Up() {
	s.sched.Post(s.up)
}

// Toggle latches the switch down or releases it. Terminals without key
// release events use this for holding.
func (s *Switch) Toggle() {
	s.sched.Post(func() {
		if s.held {
			s.up()
			return
		}
		s.down()
	})
}

// Tap holds the switch long enough to confirm a highlight.
func (s *Switch) Tap() {
	s.sched.Post(func() { s.hold(s.cfg.TapHold) })
}

// Extended holds the switch long enough to go back a level.
func (s *Switch) Extended() {
	s.sched.Post(func() { s.hold(s.cfg.ExtendedHold) })
}

// HandleKey maps g to a tap, e to an extended hold and space to the latch.
// It reports whether the key was used.
func (s *Switch) HandleKey(key string) bool {
	switch strings.ToLower(key) {
	case "g":
		s.Tap()
	case "e":
		s.Extended()
	case " ", "space":
		s.Toggle()
	default:
		return false
	}
	return true
}

func (s *Switch) hold(d time.Duration) {
	if s.held {
		return
	}
	s.down()
	s.release = s.sched.AfterFunc(d, func() {
		s.release = nil
		s.up()
	})
}

func (s *Switch) down() {
	if s.held {
		return
	}
	s.held = true
	s.target.SwitchDown()
}

func (s *Switch) up() {
	if !s.held {
		return
	}
	if s.release != nil {
		s.release.Stop()
		s.release = nil
	}
	s.held = false
	s.target.SwitchUp()
}
