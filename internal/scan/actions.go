package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/menu"
	"github.com/dwadden/commboard/internal/ports"
)

const (
	notImplementedMessage = "Not implemented"
	emailFailedMessage    = "An error occurred."
)

var ErrNoMailer = errors.New("email is not configured")

// perform executes the side effect of item and calls done exactly once when
// it has finished. done is safe to call from any goroutine.
func (e *Engine) perform(r *run, item menu.Item, done func()) {
	switch it := item.(type) {
	case *menu.NavigateMenu:
		done()
	case *menu.EmitText:
		e.buffer.Write(it.Text, it.Category)
		done()
	case *menu.WordGuess:
		e.buffer.Write(it.Label(), domain.TextCategoryWord)
		done()
	case *menu.BufferAction:
		e.buffer.ExecuteAction(it.Action, done)
	case *menu.Request:
		e.request(r, it, done)
	case *menu.ToggleRun:
		e.tone.Beep(e.cfg.RequestFrequency, e.cfg.ToggleCue)
		e.after(r, e.cfg.ToggleCue+e.cfg.ToggleWait, done)
	case *menu.SendEmail:
		e.sendEmail(r, it, done)
	case *menu.Placeholder:
		e.announcer.Speak(notImplementedMessage, done)
	default:
		e.logger.Error("scan: no action for item", "type", fmt.Sprintf("%T", item))
		e.announcer.Speak(notImplementedMessage, done)
	}
}

// request beeps, pauses, speaks the message and then waits one scan interval
// so the listener has time to respond before scanning resumes.
func (e *Engine) request(r *run, it *menu.Request, done func()) {
	e.tone.Beep(e.cfg.RequestFrequency, e.cfg.RequestBeep)
	e.after(r, e.cfg.RequestBeep+e.cfg.RequestPause, func() {
		e.announcer.Speak(it.Message, e.onLoop(r, func() {
			e.after(r, e.settings.ScanSpeed(), done)
		}))
	})
}

func (e *Engine) sendEmail(r *run, it *menu.SendEmail, done func()) {
	body := e.buffer.Text()
	if e.expander != nil {
		expanded, err := e.expander.Apply(body)
		if err != nil {
			e.logger.Warn("scan: text expansion failed", "error", err)
		} else {
			body = expanded
		}
	}
	msg := ports.MailMessage{
		To:      append([]string(nil), it.Recipients...),
		Subject: "A message from " + e.cfg.EmailSignature,
		Body:    body,
	}
	name := strings.TrimSpace(it.Name)
	if name == "" {
		name = strings.Join(it.Recipients, ", ")
	}

	mailer := e.mailer
	timeout := e.cfg.EmailTimeout
	go func() {
		err := ErrNoMailer
		if mailer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			err = mailer.Send(ctx, msg)
			cancel()
		}
		e.sched.Post(func() {
			status := "Message sent to " + name
			if err != nil {
				status = emailFailedMessage
				e.logger.Warn("scan: email failed", "recipients", len(msg.To), "error", err)
				e.events.ScanError(domain.ErrorCodeEmail, err.Error())
			} else {
				e.logger.Info("scan: email sent", "recipients", len(msg.To))
			}
			if r.cancelled {
				return
			}
			e.announcer.Speak(status, done)
		})
	}()
}

// after runs fn on the loop after d unless r is cancelled first.
func (e *Engine) after(r *run, d time.Duration, fn func()) {
	e.sched.AfterFunc(d, func() {
		if r.cancelled {
			return
		}
		fn()
	})
}
