package audio

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/ports"
)

// TonePlayer is a ports.Tone that renders sine waves with ffplay's lavfi
// source. Beeps do not block and may overlap.
type TonePlayer struct {
	command  string
	reporter reporter
}

var _ ports.Tone = (*TonePlayer)(nil)

func NewTonePlayer(command string, poster Poster, events ports.EventSink, logger *slog.Logger) *TonePlayer {
	if command == "" {
		command = "ffplay"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TonePlayer{
		command:  command,
		reporter: reporter{poster: poster, events: events, logger: logger},
	}
}

func (p *TonePlayer) Beep(frequencyHz int, duration time.Duration) {
	if frequencyHz <= 0 || duration <= 0 {
		return
	}
	u := newUtterance(p.command, toneArgs(frequencyHz, duration))
	if err := u.cmd.Start(); err != nil {
		p.reporter.report(domain.ErrorCodeTone, "audio: tone failed to start", fmt.Errorf("failed to start %s: %w", p.command, err))
		return
	}
	go func() {
		if err := u.wait(); err != nil {
			p.reporter.report(domain.ErrorCodeTone, "audio: tone failed", err)
		}
	}()
}

func toneArgs(frequencyHz int, duration time.Duration) []string {
	source := "sine=frequency=" + strconv.Itoa(frequencyHz) +
		":duration=" + strconv.FormatFloat(duration.Seconds(), 'f', 3, 64)
	return []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", source,
	}
}
