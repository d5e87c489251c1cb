package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/dwadden/commboard/internal/bootstrap"
	"github.com/dwadden/commboard/internal/camera"
	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/menu"
)

const (
	eventState      = "commboard:state"
	eventHighlight  = "commboard:highlight"
	eventAttention  = "commboard:attention"
	eventBuffer     = "commboard:buffer"
	eventVisibility = "commboard:visibility"
	eventError      = "commboard:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(bootstrap.Options{Events: a, Visibility: a})
	if err != nil {
		a.bootErr = err
		a.ScanError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	services.Start(ctx)
	services.Scanner.Start()
}

func (a *App) shutdown(context.Context) {
	if a.services == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn("app: shutdown incomplete", "error", err)
	}
}

// Start begins listening for a long signal.
func (a *App) Start() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.services.Scanner.Start()
	return a.settledStatus(), nil
}

// ScanNow starts scanning the root menu without waiting for a long signal.
func (a *App) ScanNow() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.services.Scanner.ScanNow()
	return a.settledStatus(), nil
}

// Stop returns the scanner to idle.
func (a *App) Stop() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.services.Scanner.Stop()
	return a.settledStatus(), nil
}

// SwitchDown presses the on-screen or keyboard switch.
func (a *App) SwitchDown() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Switch.Down()
	return nil
}

func (a *App) SwitchUp() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Switch.Up()
	return nil
}

// PressKey handles the keyboard substitutes for gazes. It reports whether
// the key was used.
func (a *App) PressKey(key string) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Switch.HandleKey(key), nil
}

// SetScanSpeed sets the dwell per item in milliseconds and returns the value
// actually stored.
func (a *App) SetScanSpeed(ms int) (int, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	stored := a.services.Scanner.Settings().SetScanSpeed(time.Duration(ms) * time.Millisecond)
	return int(stored / time.Millisecond), nil
}

func (a *App) SetSound(on bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Scanner.Settings().SetSound(on)
	return nil
}

// GetSettings returns the scan speed in milliseconds and the sound switch.
func (a *App) GetSettings() (map[string]any, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	settings := a.services.Scanner.Settings()
	return map[string]any{
		"scanSpeedMs": int(settings.ScanSpeed() / time.Millisecond),
		"sound":       settings.Sound(),
	}, nil
}

// CaptureTemplate stores the current camera frame as the rest or gaze
// template.
func (a *App) CaptureTemplate(kind string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if a.services.Camera == nil {
		return fmt.Errorf("camera sensor is not configured")
	}
	return a.services.Camera.Capture(camera.Template(strings.ToLower(strings.TrimSpace(kind))))
}

// AddRecipient assigns the next free email button. addresses may be
// separated by spaces or commas.
func (a *App) AddRecipient(name string, addresses string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	fields := strings.Fields(strings.ReplaceAll(addresses, ",", " "))
	var (
		label     string
		assignErr error
	)
	if err := a.services.Loop.Call(func() {
		var slot *menu.SendEmail
		slot, assignErr = a.services.Tree.AssignRecipient(name, fields)
		if assignErr == nil {
			label = slot.Label()
		}
	}); err != nil {
		return "", err
	}
	return label, assignErr
}

// GetMenus returns every menu with its current labels.
func (a *App) GetMenus() ([]menu.View, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	var views []menu.View
	err := a.services.Loop.Call(func() {
		views = a.services.Tree.Snapshot()
	})
	return views, err
}

// GetStatus returns the current scanner status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.ScannerStateIdle, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.ScannerStateIdle}
	}
	return a.services.Scanner.Status()
}

func (a *App) GetBufferText() string {
	if a.services == nil {
		return ""
	}
	return a.services.Buffer.Text()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"sensor":       cfg.Sensor.Kind,
		"voice":        cfg.Speech.Voice,
		"layoutFile":   cfg.Layout.Path,
		"rulesFile":    cfg.Rules.Path,
		"settingsFile": cfg.SettingsFile,
		"emailFrom":    cfg.Email.From,
		"wordGuessing": fmt.Sprintf("%t", cfg.Wordnik.APIKey != ""),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// settledStatus waits for posted scanner work to run before reading the
// status.
func (a *App) settledStatus() domain.Status {
	_ = a.services.Loop.Call(func() {})
	return a.services.Scanner.Status()
}

// ScannerStateChanged emits scanner lifecycle updates to the frontend.
func (a *App) ScannerStateChanged(state domain.ScannerState, reason domain.ScannerStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": scannerReasonMessage(reason),
	})
}

func (a *App) Highlighted(menuName string, index int, label string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventHighlight, map[string]any{
		"menu":   menuName,
		"index":  index,
		"label":  label,
		"active": true,
	})
}

func (a *App) Unhighlighted(menuName string, index int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventHighlight, map[string]any{
		"menu":   menuName,
		"index":  index,
		"active": false,
	})
}

func (a *App) AttentionChanged(state domain.AttendingState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAttention, map[string]string{"state": string(state)})
}

func (a *App) BufferChanged(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventBuffer, map[string]string{"text": text})
}

// ScanError emits backend errors to the UI.
func (a *App) ScanError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// Show reveals a collapsible menu.
func (a *App) Show(menuName string) {
	a.emitVisibility(menuName, true)
}

func (a *App) Hide(menuName string) {
	a.emitVisibility(menuName, false)
}

func (a *App) emitVisibility(menuName string, visible bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventVisibility, map[string]any{"menu": menuName, "visible": visible})
}

func scannerReasonMessage(reason domain.ScannerStateReason) string {
	switch reason {
	case domain.ScannerReasonReady:
		return "Ready"
	case domain.ScannerReasonStarted:
		return "Started"
	case domain.ScannerReasonLongSignal:
		return "Long signal received; scanning"
	case domain.ScannerReasonScanFinished:
		return "Scan finished; listening"
	case domain.ScannerReasonRunToggled:
		return "Scanning paused; listening"
	case domain.ScannerReasonStopRequested:
		return "Stopped"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeSensor:
		return "Attention sensor unavailable"
	case domain.ErrorCodeSpeech:
		return "Speech output failed"
	case domain.ErrorCodeTone:
		return "Tone output failed"
	case domain.ErrorCodeEmail:
		return "Email could not be sent"
	case domain.ErrorCodeGuess:
		return "Word guessing unavailable"
	case domain.ErrorCodeBuffer:
		return "Buffer action failed"
	case domain.ErrorCodeLayout:
		return "Menu layout problem"
	case domain.ErrorCodeInvariant:
		return "Internal scanning error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
