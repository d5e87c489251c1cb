// Package camera classifies webcam frames as resting or gazing by comparing
// them to two captured templates.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dwadden/commboard/internal/ports"
)

var (
	ErrNoFrame         = errors.New("no camera frame available")
	ErrNoTemplates     = errors.New("rest and gaze templates have not been captured")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrAlreadyStarted  = errors.New("camera already started")
)

// Template names a reference frame.
type Template string

const (
	TemplateRest Template = "rest"
	TemplateGaze Template = "gaze"
)

// Detector is a ports.Sensor. A reader goroutine keeps the latest frame;
// Sample compares it against the templates without blocking.
type Detector struct {
	capture *FFMPEGCapture
	cfg     CaptureConfig
	logger  *slog.Logger

	mu        sync.Mutex
	session   *FrameSession
	latest    []byte
	readErr   error
	templates map[Template][]byte
}

var _ ports.Sensor = (*Detector)(nil)

func NewDetector(capture *FFMPEGCapture, cfg CaptureConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		capture:   capture,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		templates: map[Template][]byte{},
	}
}

// Start launches the capture process and begins reading frames.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.session != nil {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.mu.Unlock()

	session, err := d.capture.Start(ctx, d.cfg)
	if err != nil {
		return fmt.Errorf("failed to start camera: %w", err)
	}
	d.mu.Lock()
	d.session = session
	d.readErr = nil
	d.mu.Unlock()

	d.logger.Info("camera: capture started", "device", d.cfg.InputDevice, "width", d.cfg.Width, "height", d.cfg.Height)
	go d.consume(session)
	return nil
}

// Close stops the capture process.
func (d *Detector) Close() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Stop()
}

// Capture stores the latest frame as the given template.
func (d *Detector) Capture(t Template) error {
	if t != TemplateRest && t != TemplateGaze {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, t)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return ErrNoFrame
	}
	d.templates[t] = append([]byte(nil), d.latest...)
	d.logger.Info("camera: template captured", "template", string(t))
	return nil
}

// Ready reports whether both templates exist.
func (d *Detector) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.templates[TemplateRest] != nil && d.templates[TemplateGaze] != nil
}

// Sample reports whether the latest frame is closer to the gaze template.
func (d *Detector) Sample() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return false, d.readErr
	}
	if d.latest == nil {
		return false, ErrNoFrame
	}
	rest, gaze := d.templates[TemplateRest], d.templates[TemplateGaze]
	if rest == nil || gaze == nil {
		return false, ErrNoTemplates
	}
	return Distance(d.latest, gaze) < Distance(d.latest, rest), nil
}

type frameReader interface {
	ReadFrame(frame []byte) error
}

func (d *Detector) consume(src frameReader) {
	size := d.cfg.FrameSize()
	for {
		frame := make([]byte, size)
		if err := src.ReadFrame(frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = fmt.Errorf("camera stream ended: %w", err)
			}
			d.logger.Warn("camera: frame read failed", "error", err)
			d.mu.Lock()
			d.readErr = err
			d.mu.Unlock()
			return
		}
		d.mu.Lock()
		d.latest = frame
		d.mu.Unlock()
	}
}

// Distance is the L1 distance between two equally sized frames. Extra bytes
// in the longer frame count at full weight.
func Distance(a, b []byte) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	total := 0
	for i := range a {
		if i >= len(b) {
			total += int(a[i])
			continue
		}
		diff := int(a[i]) - int(b[i])
		if diff < 0 {
			diff = -diff
		}
		total += diff
	}
	return total
}
