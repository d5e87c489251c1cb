// Package audio speaks and beeps through external players.
package audio

import (
	"bytes"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/ports"
)

// Poster delivers callbacks onto the event loop.
type Poster interface {
	Post(fn func())
}

type utterance struct {
	cmd         *exec.Cmd
	stderr      bytes.Buffer
	interrupted atomic.Bool
	done        chan struct{}
}

// waitDelay bounds how long Wait lingers on output held open by children of
// a killed process.
const waitDelay = 500 * time.Millisecond

func newUtterance(command string, args []string) *utterance {
	u := &utterance{cmd: exec.Command(command, args...), done: make(chan struct{})}
	u.cmd.Stderr = &u.stderr
	u.cmd.WaitDelay = waitDelay
	return u
}

func (u *utterance) interrupt() {
	if u == nil || u.cmd.Process == nil {
		return
	}
	u.interrupted.Store(true)
	_ = u.cmd.Process.Kill()
}

// wait reports a failed exit unless the process was interrupted on purpose.
func (u *utterance) wait() error {
	defer close(u.done)
	err := u.cmd.Wait()
	if err == nil || u.interrupted.Load() {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && u.stderr.Len() > 0 {
		return errors.New(strings.TrimSpace(u.stderr.String()))
	}
	return err
}

// reporter forwards player failures to the logger and the event sink.
type reporter struct {
	poster Poster
	events ports.EventSink
	logger *slog.Logger
}

func (r reporter) report(code domain.ErrorCode, msg string, err error) {
	r.logger.Warn(msg, "error", err)
	if r.events == nil {
		return
	}
	detail := err.Error()
	if r.poster == nil {
		r.events.ScanError(code, detail)
		return
	}
	r.poster.Post(func() { r.events.ScanError(code, detail) })
}
