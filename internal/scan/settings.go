package scan

import (
	"sync"
	"time"
)

const (
	DefaultScanSpeed = 1500 * time.Millisecond
	MaxScanSpeed     = 3 * time.Second
)

// Settings holds the user-adjustable controls. It is safe for concurrent use.
type Settings struct {
	mu        sync.RWMutex
	scanSpeed time.Duration
	sound     bool
}

func NewSettings(scanSpeed time.Duration, sound bool) *Settings {
	s := &Settings{sound: sound}
	s.SetScanSpeed(scanSpeed)
	return s
}

func (s *Settings) ScanSpeed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanSpeed
}

// SetScanSpeed clamps d to [0, MaxScanSpeed] and returns the stored value.
func (s *Settings) SetScanSpeed(d time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}
	if d > MaxScanSpeed {
		d = MaxScanSpeed
	}
	s.mu.Lock()
	s.scanSpeed = d
	s.mu.Unlock()
	return d
}

func (s *Settings) Sound() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sound
}

func (s *Settings) SetSound(on bool) {
	s.mu.Lock()
	s.sound = on
	s.mu.Unlock()
}
