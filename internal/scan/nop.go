package scan

import (
	"log/slog"
	"time"

	"github.com/dwadden/commboard/internal/domain"
)

func withNopDeps(deps Deps) Deps {
	if deps.Scheduler == nil {
		panic("scan: scheduler is required")
	}
	if deps.Classifier == nil {
		panic("scan: classifier is required")
	}
	if deps.Settings == nil {
		deps.Settings = NewSettings(DefaultScanSpeed, false)
	}
	if deps.Announcer == nil {
		deps.Announcer = silentAnnouncer{}
	}
	if deps.Tone == nil {
		deps.Tone = silentTone{}
	}
	if deps.Buffer == nil {
		deps.Buffer = &discardBuffer{}
	}
	if deps.Visibility == nil {
		deps.Visibility = nopVisibility{}
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return deps
}

type silentAnnouncer struct{}

func (silentAnnouncer) Announce(string) {}

func (silentAnnouncer) Speak(_ string, onFinished func()) {
	if onFinished != nil {
		onFinished()
	}
}

type silentTone struct{}

func (silentTone) Beep(int, time.Duration) {}

type discardBuffer struct {
	listeners int
}

func (b *discardBuffer) Write(string, domain.TextCategory) {}

func (b *discardBuffer) ExecuteAction(_ domain.BufferAction, onFinished func()) {
	if onFinished != nil {
		onFinished()
	}
}

func (b *discardBuffer) Text() string { return "" }

func (b *discardBuffer) OnChange(func(string)) int {
	b.listeners++
	return b.listeners
}

func (b *discardBuffer) RemoveChangeListener(int) {}

type nopVisibility struct{}

func (nopVisibility) Show(string) {}
func (nopVisibility) Hide(string) {}

type nopEvents struct{}

func (nopEvents) ScannerStateChanged(domain.ScannerState, domain.ScannerStateReason) {}
func (nopEvents) Highlighted(string, int, string)                                  {}
func (nopEvents) Unhighlighted(string, int)                                         {}
func (nopEvents) AttentionChanged(domain.AttendingState)                            {}
func (nopEvents) BufferChanged(string)                                              {}
func (nopEvents) ScanError(domain.ErrorCode, string)                                {}
