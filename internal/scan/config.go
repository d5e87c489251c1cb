package scan

import (
	"time"

	"github.com/dwadden/commboard/internal/classifier"
)

// Config holds timing constants for scanning and item actions.
type Config struct {
	Short     time.Duration
	Long      time.Duration
	LoopLimit int
	// MinDwell bounds how fast a scan may step when the scan speed is near 0.
	MinDwell time.Duration

	CueFrequency int
	CueDuration  time.Duration

	RequestFrequency int
	RequestBeep      time.Duration
	RequestPause     time.Duration

	ToggleCue  time.Duration
	ToggleWait time.Duration

	EmailTimeout   time.Duration
	EmailSignature string

	Classifier classifier.Config
}

func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Short <= 0 {
		c.Short = 200 * time.Millisecond
	}
	if c.Long <= 0 {
		c.Long = 2 * time.Second
	}
	if c.LoopLimit <= 0 {
		c.LoopLimit = 2
	}
	if c.MinDwell <= 0 {
		c.MinDwell = 100 * time.Millisecond
	}
	if c.CueFrequency <= 0 {
		c.CueFrequency = 300
	}
	if c.CueDuration <= 0 {
		c.CueDuration = 250 * time.Millisecond
	}
	if c.RequestFrequency <= 0 {
		c.RequestFrequency = 400
	}
	if c.RequestBeep <= 0 {
		c.RequestBeep = time.Second
	}
	if c.RequestPause <= 0 {
		c.RequestPause = 500 * time.Millisecond
	}
	if c.ToggleCue <= 0 {
		c.ToggleCue = 500 * time.Millisecond
	}
	if c.ToggleWait <= 0 {
		c.ToggleWait = 500 * time.Millisecond
	}
	if c.EmailTimeout <= 0 {
		c.EmailTimeout = 30 * time.Second
	}
	if c.EmailSignature == "" {
		c.EmailSignature = "Commboard"
	}
	return c
}
