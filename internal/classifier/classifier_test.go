package classifier

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/loop"
)

func TestDebounceRequiresConsecutiveReadings(t *testing.T) {
	t.Parallel()

	c, _, rec := newTestClassifier(nil, 3)
	c.SetMode(domain.DetectorModeScanning)

	for _, reading := range []bool{true, true, false, true, true} {
		c.Observe(reading)
	}
	if rec.begins != 0 {
		t.Fatalf("expected no begin after interrupted run, got %d", rec.begins)
	}

	c.Observe(true)
	if rec.begins != 1 {
		t.Fatalf("expected begin after three consecutive positives, got %d", rec.begins)
	}
	if c.State() != domain.AttendingStateAttending {
		t.Fatalf("expected attending, got %s", c.State())
	}

	for _, reading := range []bool{false, false, true, false, false} {
		c.Observe(reading)
	}
	if rec.ends != 0 {
		t.Fatalf("expected no end after interrupted run, got %d", rec.ends)
	}
	c.Observe(false)
	if rec.ends != 1 {
		t.Fatalf("expected end, got %d", rec.ends)
	}
}

func TestObserveIgnoredWhileIdle(t *testing.T) {
	t.Parallel()

	c, _, rec := newTestClassifier(nil, 1)
	c.Observe(true)
	c.Press()
	if rec.begins != 0 {
		t.Fatalf("idle classifier emitted begin")
	}
}

func TestPressBypassesDebounce(t *testing.T) {
	t.Parallel()

	c, _, rec := newTestClassifier(nil, 10)
	c.SetMode(domain.DetectorModeListening)

	c.Press()
	c.Press()
	if rec.begins != 1 {
		t.Fatalf("expected one begin, got %d", rec.begins)
	}
	c.Release()
	c.Release()
	if rec.ends != 1 {
		t.Fatalf("expected one end, got %d", rec.ends)
	}
}

func TestListenerRemovalByHandle(t *testing.T) {
	t.Parallel()

	sched := loop.NewManual(time.Time{})
	c := New(sched, nil, nil, nil, Config{MinConsecutive: 1})
	c.SetMode(domain.DetectorModeScanning)

	calls := 0
	first := c.OnBegin(func() { calls++ })
	c.OnBegin(func() { calls += 10 })
	if !c.RemoveBeginListener(first) {
		t.Fatalf("expected removal to succeed")
	}
	if c.RemoveBeginListener(first) {
		t.Fatalf("second removal should fail")
	}

	c.Press()
	if calls != 10 {
		t.Fatalf("removed listener was called, calls=%d", calls)
	}
}

func TestListenerRemovedDuringEmissionIsSkipped(t *testing.T) {
	t.Parallel()

	sched := loop.NewManual(time.Time{})
	c := New(sched, nil, nil, nil, Config{MinConsecutive: 1})
	c.SetMode(domain.DetectorModeScanning)

	var second ListenerID
	secondCalled := false
	c.OnBegin(func() { c.RemoveBeginListener(second) })
	second = c.OnBegin(func() { secondCalled = true })

	c.Press()
	if secondCalled {
		t.Fatalf("listener removed mid-emission was still called")
	}
}

func TestTickCadenceFollowsMode(t *testing.T) {
	t.Parallel()

	sensor := &scriptedSensor{}
	c, sched, _ := newTestClassifier(sensor, 3)

	c.SetMode(domain.DetectorModeListening)
	sched.Advance(time.Second)
	if got := sensor.count(); got != 5 {
		t.Fatalf("expected 5 samples per second while listening, got %d", got)
	}

	c.SetMode(domain.DetectorModeScanning)
	sched.Advance(time.Second)
	if got := sensor.count(); got != 25 {
		t.Fatalf("expected 20 more samples while scanning, got %d", got)
	}

	c.SetMode(domain.DetectorModeIdle)
	sched.Advance(time.Second)
	if got := sensor.count(); got != 25 {
		t.Fatalf("idle classifier kept sampling, got %d", got)
	}
	if sched.Pending() != 0 {
		t.Fatalf("expected no pending tick while idle")
	}
}

func TestSampledReadingsEmitBegin(t *testing.T) {
	t.Parallel()

	sensor := &scriptedSensor{readings: []bool{true, true, true}}
	c, sched, rec := newTestClassifier(sensor, 3)
	c.SetMode(domain.DetectorModeScanning)

	sched.Advance(100 * time.Millisecond)
	if rec.begins != 0 {
		t.Fatalf("begin fired before threshold")
	}
	sched.Advance(50 * time.Millisecond)
	if rec.begins != 1 {
		t.Fatalf("expected begin on third sample, got %d", rec.begins)
	}
	if len(rec.attention) != 1 || rec.attention[0] != domain.AttendingStateAttending {
		t.Fatalf("unexpected attention events: %v", rec.attention)
	}
}

func TestSensorErrorIsNegativeAndReportedOnce(t *testing.T) {
	t.Parallel()

	sensor := &scriptedSensor{err: errors.New("camera unplugged")}
	c, sched, rec := newTestClassifier(sensor, 1)
	c.SetMode(domain.DetectorModeScanning)

	sched.Advance(time.Second)
	if rec.begins != 0 {
		t.Fatalf("failed sensor produced begin")
	}
	if c.State() != domain.AttendingStateResting {
		t.Fatalf("expected resting, got %s", c.State())
	}
	if len(rec.errors) != 1 || rec.errors[0] != domain.ErrorCodeSensor {
		t.Fatalf("expected one sensor error, got %v", rec.errors)
	}

	// The discrete switch still works while the sensor is down.
	c.Press()
	if rec.begins != 1 {
		t.Fatalf("expected press to produce begin")
	}
}

func TestEnteringIdleResetsState(t *testing.T) {
	t.Parallel()

	c, _, rec := newTestClassifier(nil, 1)
	c.SetMode(domain.DetectorModeScanning)
	c.Press()
	c.SetMode(domain.DetectorModeIdle)

	if c.State() != domain.AttendingStateResting {
		t.Fatalf("expected resting after idle")
	}
	if rec.ends != 0 {
		t.Fatalf("idle reset should not emit end")
	}
}

func newTestClassifier(sensor *scriptedSensor, threshold int) (*Classifier, *loop.Manual, *recorder) {
	sched := loop.NewManual(time.Time{})
	rec := &recorder{}
	var c *Classifier
	if sensor == nil {
		c = New(sched, nil, rec, nil, Config{MinConsecutive: threshold})
	} else {
		c = New(sched, sensor, rec, nil, Config{MinConsecutive: threshold})
	}
	c.OnBegin(func() { rec.begins++ })
	c.OnEnd(func() { rec.ends++ })
	return c, sched, rec
}

type scriptedSensor struct {
	mu       sync.Mutex
	readings []bool
	err      error
	samples  int
}

func (s *scriptedSensor) Sample() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples++
	if s.err != nil {
		return false, s.err
	}
	if len(s.readings) == 0 {
		return false, nil
	}
	reading := s.readings[0]
	s.readings = s.readings[1:]
	return reading, nil
}

func (s *scriptedSensor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

type recorder struct {
	begins    int
	ends      int
	attention []domain.AttendingState
	errors    []domain.ErrorCode
}

func (r *recorder) ScannerStateChanged(domain.ScannerState, domain.ScannerStateReason) {}
func (r *recorder) Highlighted(string, int, string)                                  {}
func (r *recorder) Unhighlighted(string, int)                                         {}
func (r *recorder) BufferChanged(string)                                              {}

func (r *recorder) AttentionChanged(state domain.AttendingState) {
	r.attention = append(r.attention, state)
}

func (r *recorder) ScanError(code domain.ErrorCode, _ string) {
	r.errors = append(r.errors, code)
}
