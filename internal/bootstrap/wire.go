package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dwadden/commboard/internal/audio"
	"github.com/dwadden/commboard/internal/buffer"
	"github.com/dwadden/commboard/internal/camera"
	"github.com/dwadden/commboard/internal/config"
	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/guess"
	"github.com/dwadden/commboard/internal/loop"
	"github.com/dwadden/commboard/internal/menu"
	"github.com/dwadden/commboard/internal/ports"
	"github.com/dwadden/commboard/internal/providers/attention"
	"github.com/dwadden/commboard/internal/providers/smtp"
	"github.com/dwadden/commboard/internal/providers/wordnik"
	"github.com/dwadden/commboard/internal/rules"
	"github.com/dwadden/commboard/internal/scan"
	"github.com/dwadden/commboard/internal/sensor/keyswitch"
)

// Services is the assembled runtime graph.
type Services struct {
	Config  config.Config
	Logger  *slog.Logger
	Loop    *loop.Loop
	Scanner *scan.Scanner
	Buffer  *buffer.Buffer
	Tree    *menu.Tree
	Switch  *keyswitch.Switch
	// Camera is set when the camera sensor is configured.
	Camera *camera.Detector

	events  ports.EventSink
	speaker *audio.Speaker
	remote  *remoteSensor

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Options lets front ends supply their sinks and log destination.
type Options struct {
	Events     ports.EventSink
	Visibility ports.VisibilitySink
	LogOutput  io.Writer
}

// Build loads configuration and wires all backend dependencies.
func Build(opts Options) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return BuildWithConfig(cfg, opts)
}

// BuildWithConfig wires the runtime from an already loaded configuration.
// Nothing runs until Start.
func BuildWithConfig(cfg config.Config, opts Options) (*Services, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	logger := NewLogger(opts.LogOutput, cfg.Log.Level)
	events := opts.Events
	if events == nil {
		events = discardEvents{}
	}

	table, err := loadTable(cfg.Layout.Path)
	if err != nil {
		return nil, err
	}
	tree, err := menu.Build(table, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build menus: %w", err)
	}
	for _, warning := range tree.Warnings() {
		events.ScanError(domain.ErrorCodeLayout, warning)
	}
	for _, recipient := range cfg.Email.Recipients {
		if _, err := tree.AssignRecipient(recipient.Name, recipient.Addresses); err != nil {
			logger.Warn("bootstrap: recipient not assigned", "name", recipient.Name, "error", err)
		}
	}

	expander, err := rules.NewExpander(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, err
	}

	lp := loop.New()
	speaker := audio.NewSpeaker(audio.SpeechConfig{
		Command:        cfg.Speech.Command,
		Voice:          cfg.Speech.Voice,
		WordsPerMinute: cfg.Speech.WordsPerMinute,
	}, lp, events, logger)
	tone := audio.NewTonePlayer(cfg.Speech.ToneCommand, lp, events, logger)

	buf := buffer.New(speaker, expander, logger)
	buf.OnChange(events.BufferChanged)

	guesser := wordnik.NewGuesser(wordnik.Config{
		APIKey:         cfg.Wordnik.APIKey,
		APIBaseURL:     cfg.Wordnik.APIBaseURL,
		MinCorpusCount: cfg.Wordnik.MinCorpusCount,
	})
	var wordGuesser ports.WordGuesser
	if strings.TrimSpace(cfg.Wordnik.APIKey) != "" {
		wordGuesser = guesser
	} else {
		logger.Info("bootstrap: word guessing disabled, WORDNIK_API_KEY is not set")
	}
	guess.NewUpdater(wordGuesser, tree.GuessSlots(), lp, events, logger, 0).Attach(buf)

	mailer := smtp.NewMailer(smtp.Config{
		Host:      cfg.Email.Host,
		Port:      cfg.Email.Port,
		Username:  cfg.Email.Username,
		Password:  cfg.Email.Password,
		From:      cfg.Email.From,
		Signature: cfg.Email.Signature,
		Footer:    cfg.Email.Footer,
		TLS:       cfg.Email.TLS,
	})

	services := &Services{
		Config:  cfg,
		Logger:  logger,
		Loop:    lp,
		Buffer:  buf,
		Tree:    tree,
		events:  events,
		speaker: speaker,
	}

	var sensor ports.Sensor
	switch cfg.Sensor.Kind {
	case config.SensorCamera:
		services.Camera = camera.NewDetector(camera.NewFFMPEGCapture(cfg.Sensor.FFMPEGCommand), camera.CaptureConfig{
			InputFormat: cfg.Sensor.InputFormat,
			InputDevice: cfg.Sensor.InputDevice,
			Width:       cfg.Sensor.Width,
			Height:      cfg.Sensor.Height,
			FrameRate:   cfg.Sensor.FrameRate,
		}, logger)
		sensor = services.Camera
	case config.SensorRemote:
		services.remote = &remoteSensor{provider: attention.NewProvider(attention.Config{
			URL:   cfg.Sensor.RemoteURL,
			Token: cfg.Sensor.RemoteToken,
		})}
		sensor = services.remote
	}

	scanCfg := scan.DefaultConfig()
	scanCfg.Short = cfg.Scan.ShortSignal
	scanCfg.Long = cfg.Scan.LongSignal
	scanCfg.LoopLimit = cfg.Scan.LoopLimit
	scanCfg.EmailSignature = cfg.Email.Signature
	scanCfg.Classifier.MinConsecutive = cfg.Scan.MinConsecutive

	services.Scanner = scan.NewScanner(tree.Root(), sensor, scan.Deps{
		Scheduler:  lp,
		Settings:   scan.NewSettings(cfg.Scan.ScanSpeed, cfg.Scan.Sound),
		Announcer:  speaker,
		Tone:       tone,
		Buffer:     buf,
		Visibility: opts.Visibility,
		Events:     events,
		Mailer:     mailer,
		Expander:   expander,
		Logger:     logger,
	}, scanCfg)
	services.Switch = keyswitch.New(lp, services.Scanner, keyswitch.Config{
		ExtendedHold: cfg.Scan.LongSignal + keyswitch.DefaultTapHold,
	})

	logger.Info("bootstrap: services built",
		"root", tree.Root().Name,
		"menus", len(tree.Menus()),
		"sensor", cfg.Sensor.Kind,
		"settings", cfg.SettingsFile,
	)
	return services, nil
}

// Start runs the event loop and connects the configured sensor. Sensor
// failures are reported and leave the switch as the only input.
func (s *Services) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})
	stopped := s.stopped
	s.mu.Unlock()

	go func() {
		defer close(stopped)
		if err := s.Loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.Logger.Error("bootstrap: event loop stopped", "error", err)
		}
	}()

	switch {
	case s.Camera != nil:
		if err := s.Camera.Start(ctx); err != nil {
			s.sensorFailed(err)
		}
	case s.remote != nil:
		if err := s.remote.connect(ctx); err != nil {
			s.sensorFailed(err)
		}
	}
}

// Close stops scanning, the sensor and the event loop.
func (s *Services) Close() error {
	s.Scanner.Stop()

	var errs []error
	if s.Camera != nil {
		if err := s.Camera.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.remote != nil {
		s.remote.close()
	}
	s.speaker.Close()

	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.mu.Unlock()
	if cancel != nil {
		// Let the posted Stop run before the loop exits.
		_ = s.Loop.Call(func() {})
		cancel()
		<-stopped
	}
	s.Loop.Close()
	return errors.Join(errs...)
}

func (s *Services) sensorFailed(err error) {
	s.Logger.Warn("bootstrap: sensor unavailable, switch input only", "sensor", s.Config.Sensor.Kind, "error", err)
	s.Loop.Post(func() { s.events.ScanError(domain.ErrorCodeSensor, err.Error()) })
}

func loadTable(path string) (menu.Table, error) {
	if strings.TrimSpace(path) == "" {
		return menu.DefaultTable()
	}
	table, err := menu.LoadTable(path)
	if err != nil {
		return menu.Table{}, fmt.Errorf("failed to load layout: %w", err)
	}
	return table, nil
}

// NewLogger returns a text logger at the named level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

var errNotConnected = errors.New("attention detector is not connected")

// remoteSensor is a ports.Sensor that exists before the detector connects.
type remoteSensor struct {
	provider *attention.Provider

	mu      sync.Mutex
	session *attention.Session
}

func (r *remoteSensor) connect(ctx context.Context) error {
	session, err := r.provider.Connect(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.session = session
	r.mu.Unlock()
	return nil
}

func (r *remoteSensor) close() {
	r.mu.Lock()
	session := r.session
	r.session = nil
	r.mu.Unlock()
	if session != nil {
		_ = session.Close()
	}
}

func (r *remoteSensor) Sample() (bool, error) {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return false, errNotConnected
	}
	return session.Sample()
}

type discardEvents struct{}

func (discardEvents) ScannerStateChanged(domain.ScannerState, domain.ScannerStateReason) {}
func (discardEvents) Highlighted(string, int, string)                                  {}
func (discardEvents) Unhighlighted(string, int)                                         {}
func (discardEvents) AttentionChanged(domain.AttendingState)                            {}
func (discardEvents) BufferChanged(string)                                              {}
func (discardEvents) ScanError(domain.ErrorCode, string)                                {}
