package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwadden/commboard/internal/domain"
)

func TestSpeakerSpeakPassesVoiceAndText(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "args.txt")
	script := writeScript(t, "espeak.sh", "#!/usr/bin/env bash\necho \"$@\" > "+out+"\n")
	poster := newChanPoster()
	s := NewSpeaker(SpeechConfig{Command: script, Voice: "en-us", WordsPerMinute: 150}, poster, nil, nil)

	finished := make(chan struct{})
	s.Speak("  hello there ", func() { close(finished) })
	poster.runNext(t)

	select {
	case <-finished:
	default:
		t.Fatalf("onFinished was not posted")
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("script did not run: %v", err)
	}
	if strings.TrimSpace(string(got)) != "-v en-us -s 150 -- hello there" {
		t.Fatalf("unexpected args: %q", string(got))
	}
}

func TestSpeakerEmptyTextFinishesWithoutProcess(t *testing.T) {
	t.Parallel()

	poster := newChanPoster()
	s := NewSpeaker(SpeechConfig{Command: filepath.Join(t.TempDir(), "missing")}, poster, nil, nil)
	done := false
	s.Speak("   ", func() { done = true })
	poster.runNext(t)
	if !done {
		t.Fatalf("expected completion for empty text")
	}
}

func TestSpeakerFailureIsReportedAndStillFinishes(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no voice' 1>&2\nexit 1\n")
	poster := newChanPoster()
	events := &errorEvents{}
	s := NewSpeaker(SpeechConfig{Command: script}, poster, events, nil)

	done := false
	s.Speak("hi", func() { done = true })
	poster.runNext(t)
	poster.runNext(t)

	if !done {
		t.Fatalf("expected completion after failure")
	}
	if len(events.codes) != 1 || events.codes[0] != domain.ErrorCodeSpeech {
		t.Fatalf("unexpected errors %v", events.codes)
	}
	if !strings.Contains(events.details[0], "no voice") {
		t.Fatalf("expected stderr in detail, got %q", events.details[0])
	}
}

func TestSpeakerMissingBinaryFinishes(t *testing.T) {
	t.Parallel()

	poster := newChanPoster()
	events := &errorEvents{}
	s := NewSpeaker(SpeechConfig{Command: filepath.Join(t.TempDir(), "missing")}, poster, events, nil)
	done := false
	s.Speak("hi", func() { done = true })
	poster.runNext(t)
	poster.runNext(t)
	if !done || len(events.codes) != 1 {
		t.Fatalf("expected completion and one error, got done=%v errors=%v", done, events.codes)
	}
}

func TestNewUtteranceCutsOffPrevious(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "slow.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	poster := newChanPoster()
	events := &errorEvents{}
	s := NewSpeaker(SpeechConfig{Command: script}, poster, events, nil)

	first := make(chan struct{})
	start := time.Now()
	s.Speak("first", func() { close(first) })
	s.Announce("second")
	poster.runNext(t)

	select {
	case <-first:
	default:
		t.Fatalf("first utterance should finish once cut off")
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("first utterance was not interrupted")
	}
	s.Close()
	if len(events.codes) != 0 {
		t.Fatalf("interruptions must not be reported, got %v", events.codes)
	}
}

func TestTonePlayerArgs(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "args.txt")
	script := writeScript(t, "ffplay.sh", "#!/usr/bin/env bash\necho \"$@\" > "+out+".tmp && mv "+out+".tmp "+out+"\n")
	p := NewTonePlayer(script, nil, nil, nil)
	p.Beep(400, time.Second)
	p.Beep(0, time.Second)

	deadline := time.Now().Add(3 * time.Second)
	for {
		got, err := os.ReadFile(out)
		if err == nil {
			want := "-nodisp -autoexit -hide_banner -loglevel error -f lavfi -i sine=frequency=400:duration=1.000"
			if strings.TrimSpace(string(got)) != want {
				t.Fatalf("unexpected args: %q", string(got))
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("tone command did not run")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestUtteranceWaitIgnoresInterrupt(t *testing.T) {
	t.Parallel()

	u := newUtterance("bash", []string{"-c", "sleep 5"})
	if err := u.cmd.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	u.interrupt()
	if err := u.wait(); err != nil {
		t.Fatalf("expected nil after interrupt, got %v", err)
	}
}

func TestWaitReturnsTrimmedStderr(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "stderr.sh", "#!/usr/bin/env bash\nprintf '  voice missing\\n\\n' 1>&2\nexit 3\n")
	u := newUtterance(script, nil)
	if err := u.cmd.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	err := u.wait()
	if err == nil || err.Error() != "voice missing" {
		t.Fatalf("expected trimmed stderr, got %v", err)
	}
}

type chanPoster struct {
	fns chan func()
}

func newChanPoster() *chanPoster {
	return &chanPoster{fns: make(chan func(), 8)}
}

func (p *chanPoster) Post(fn func()) {
	p.fns <- fn
}

func (p *chanPoster) runNext(t *testing.T) {
	t.Helper()
	select {
	case fn := <-p.fns:
		fn()
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for posted callback")
	}
}

type errorEvents struct {
	mu      sync.Mutex
	codes   []domain.ErrorCode
	details []string
}

func (e *errorEvents) ScannerStateChanged(domain.ScannerState, domain.ScannerStateReason) {}
func (e *errorEvents) Highlighted(string, int, string)                                  {}
func (e *errorEvents) Unhighlighted(string, int)                                         {}
func (e *errorEvents) AttentionChanged(domain.AttendingState)                            {}
func (e *errorEvents) BufferChanged(string)                                              {}

func (e *errorEvents) ScanError(code domain.ErrorCode, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes = append(e.codes, code)
	e.details = append(e.details, detail)
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
