package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwadden/commboard/internal/config"
	"github.com/dwadden/commboard/internal/domain"
)

func TestBuildSuccess(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("COMMBOARD_ENV_FILE", filepath.Join(home, "missing.env"))
	t.Setenv("COMMBOARD_RECIPIENTS", "Mom=mom@example.com")

	services, err := Build(Options{LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if services.Scanner == nil || services.Switch == nil || services.Buffer == nil {
		t.Fatalf("expected scanner, switch and buffer")
	}
	if services.Camera != nil {
		t.Fatalf("keyboard sensor should not build a camera")
	}
	if got := services.Tree.EmailSlots()[0].Label(); got != "Mom" {
		t.Fatalf("expected recipient on first email slot, got %q", got)
	}
	if services.Scanner.Status().State != domain.ScannerStateIdle {
		t.Fatalf("scanner should start idle")
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "bad.rules")
	if err := os.WriteFile(rules, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg := testConfig(t)
	cfg.Rules.Path = rules
	if _, err := BuildWithConfig(cfg, Options{LogOutput: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildFailsOnInvalidLayout(t *testing.T) {
	dir := t.TempDir()
	layout := filepath.Join(dir, "layout.yaml")
	if err := os.WriteFile(layout, []byte("root: missing\nmenus: []\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg := testConfig(t)
	cfg.Layout.Path = layout
	_, err := BuildWithConfig(cfg, Options{LogOutput: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "layout") {
		t.Fatalf("expected layout error, got %v", err)
	}
}

func TestLayoutWarningsAreReported(t *testing.T) {
	dir := t.TempDir()
	layout := filepath.Join(dir, "layout.yaml")
	contents := `
root: main
menus:
  - name: main
    scan: repeat
    items:
      - kind: letter
        label: A
      - kind: teleport
        label: Beam me up
`
	if err := os.WriteFile(layout, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg := testConfig(t)
	cfg.Layout.Path = layout
	events := &recordingEvents{}
	services, err := BuildWithConfig(cfg, Options{Events: events, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer services.Close()

	if codes := events.errorCodes(); len(codes) != 1 || codes[0] != domain.ErrorCodeLayout {
		t.Fatalf("expected one layout warning, got %v", codes)
	}
}

func TestStartRunsLoopAndReportsMissingCamera(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sensor.Kind = config.SensorCamera
	cfg.Sensor.FFMPEGCommand = filepath.Join(t.TempDir(), "no-ffmpeg")

	events := &recordingEvents{}
	services, err := BuildWithConfig(cfg, Options{Events: events, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Camera == nil {
		t.Fatalf("expected camera detector")
	}
	services.Start(context.Background())
	services.Start(context.Background())

	services.Scanner.Start()
	waitFor(t, func() bool {
		return services.Scanner.Status().State == domain.ScannerStateListening
	})
	waitFor(t, func() bool {
		for _, code := range events.errorCodes() {
			if code == domain.ErrorCodeSensor {
				return true
			}
		}
		return false
	})

	if err := services.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestRemoteSensorBeforeConnect(t *testing.T) {
	t.Parallel()

	r := &remoteSensor{}
	if _, err := r.Sample(); err != errNotConnected {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	r.close()
}

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger := NewLogger(&out, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(out.String(), "hidden") || !strings.Contains(out.String(), "shown") {
		t.Fatalf("unexpected log output %q", out.String())
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("COMMBOARD_ENV_FILE", filepath.Join(home, "missing.env"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Speech.Command = filepath.Join(home, "no-espeak")
	cfg.Speech.ToneCommand = filepath.Join(home, "no-ffplay")
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type recordingEvents struct {
	discardEvents

	mu    sync.Mutex
	codes []domain.ErrorCode
}

func (r *recordingEvents) ScanError(code domain.ErrorCode, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *recordingEvents) errorCodes() []domain.ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ErrorCode(nil), r.codes...)
}
