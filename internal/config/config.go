package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Sensor kinds.
const (
	SensorKeyboard = "keyboard"
	SensorCamera   = "camera"
	SensorRemote   = "remote"
)

const maxScanSpeed = 3 * time.Second

var ErrUnknownSensor = errors.New("unknown sensor kind")

// Config stores runtime configuration for the board.
type Config struct {
	Scan    ScanConfig
	Sensor  SensorConfig
	Speech  SpeechConfig
	Layout  LayoutConfig
	Rules   RulesConfig
	Email   EmailConfig
	Wordnik WordnikConfig
	Log     LogConfig

	// SettingsFile is the TOML file that was applied, if any.
	SettingsFile string
}

type ScanConfig struct {
	ScanSpeed      time.Duration
	Sound          bool
	ShortSignal    time.Duration
	LongSignal     time.Duration
	LoopLimit      int
	MinConsecutive int
}

type SensorConfig struct {
	Kind          string
	FFMPEGCommand string
	InputFormat   string
	InputDevice   string
	Width         int
	Height        int
	FrameRate     int
	RemoteURL     string
	RemoteToken   string
}

type SpeechConfig struct {
	Command        string
	Voice          string
	WordsPerMinute int
	ToneCommand    string
}

type LayoutConfig struct {
	Path string
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Signature  string
	Footer     string
	TLS        string
	Recipients []Recipient
}

// Recipient is a named email button.
type Recipient struct {
	Name      string   `toml:"name"`
	Addresses []string `toml:"addresses"`
}

type WordnikConfig struct {
	APIKey         string
	APIBaseURL     string
	MinCorpusCount int
}

type LogConfig struct {
	Level string
}

// Load resolves configuration from defaults, an optional TOML settings file
// and the environment, in increasing priority. A .env file is loaded first
// without overriding variables that are already set.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "commboard")

	cfg := defaults(configDir)
	settingsPath := envOrDefault("COMMBOARD_CONFIG", filepath.Join(configDir, "config.toml"))
	applied, err := applyFile(&cfg, settingsPath)
	if err != nil {
		return Config{}, err
	}
	if applied {
		cfg.SettingsFile = settingsPath
	}
	applyEnv(&cfg)

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults(configDir string) Config {
	return Config{
		Scan: ScanConfig{
			ScanSpeed:      1500 * time.Millisecond,
			Sound:          true,
			ShortSignal:    200 * time.Millisecond,
			LongSignal:     2 * time.Second,
			LoopLimit:      2,
			MinConsecutive: 3,
		},
		Sensor: SensorConfig{
			Kind:          SensorKeyboard,
			FFMPEGCommand: "ffmpeg",
			InputFormat:   "v4l2",
			InputDevice:   "/dev/video0",
			Width:         64,
			Height:        48,
			FrameRate:     20,
			RemoteURL:     "ws://127.0.0.1:8765/attention",
		},
		Speech: SpeechConfig{
			Command:     "espeak-ng",
			ToneCommand: "ffplay",
		},
		Layout: LayoutConfig{},
		Rules: RulesConfig{
			Path:           filepath.Join(configDir, "abbreviations.rules"),
			IterationLimit: 30,
		},
		Email: EmailConfig{
			Port:      587,
			Signature: "Commboard",
			TLS:       "mandatory",
		},
		Wordnik: WordnikConfig{
			APIBaseURL:     "https://api.wordnik.com/v4",
			MinCorpusCount: 1000,
		},
		Log: LogConfig{Level: "info"},
	}
}

func loadDotEnv() error {
	path := envOrDefault("COMMBOARD_ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}

// fileConfig mirrors the TOML settings file. Zero values leave defaults in
// place; Sound is a pointer so false can be set explicitly.
type fileConfig struct {
	Scan struct {
		ScanSpeedMS    int   `toml:"scan_speed_ms"`
		Sound          *bool `toml:"sound"`
		ShortSignalMS  int   `toml:"short_signal_ms"`
		LongSignalMS   int   `toml:"long_signal_ms"`
		LoopLimit      int   `toml:"loop_limit"`
		MinConsecutive int   `toml:"min_consecutive"`
	} `toml:"scan"`
	Sensor struct {
		Kind          string `toml:"kind"`
		FFMPEGCommand string `toml:"ffmpeg_command"`
		InputFormat   string `toml:"input_format"`
		InputDevice   string `toml:"input_device"`
		Width         int    `toml:"width"`
		Height        int    `toml:"height"`
		FrameRate     int    `toml:"frame_rate"`
		RemoteURL     string `toml:"remote_url"`
	} `toml:"sensor"`
	Speech struct {
		Command        string `toml:"command"`
		Voice          string `toml:"voice"`
		WordsPerMinute int    `toml:"words_per_minute"`
		ToneCommand    string `toml:"tone_command"`
	} `toml:"speech"`
	Layout struct {
		Path string `toml:"path"`
	} `toml:"layout"`
	Rules struct {
		Path           string `toml:"path"`
		IterationLimit int    `toml:"iteration_limit"`
	} `toml:"rules"`
	Email struct {
		Host       string      `toml:"host"`
		Port       int         `toml:"port"`
		Username   string      `toml:"username"`
		From       string      `toml:"from"`
		Signature  string      `toml:"signature"`
		Footer     string      `toml:"footer"`
		TLS        string      `toml:"tls"`
		Recipients []Recipient `toml:"recipients"`
	} `toml:"email"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// applyFile merges the settings file into cfg. A missing file is not an
// error. Secrets are only read from the environment.
func applyFile(cfg *Config, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read settings file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return false, fmt.Errorf("settings file %q has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	setDuration(&cfg.Scan.ScanSpeed, fc.Scan.ScanSpeedMS)
	if fc.Scan.Sound != nil {
		cfg.Scan.Sound = *fc.Scan.Sound
	}
	setDuration(&cfg.Scan.ShortSignal, fc.Scan.ShortSignalMS)
	setDuration(&cfg.Scan.LongSignal, fc.Scan.LongSignalMS)
	setInt(&cfg.Scan.LoopLimit, fc.Scan.LoopLimit)
	setInt(&cfg.Scan.MinConsecutive, fc.Scan.MinConsecutive)

	setString(&cfg.Sensor.Kind, fc.Sensor.Kind)
	setString(&cfg.Sensor.FFMPEGCommand, fc.Sensor.FFMPEGCommand)
	setString(&cfg.Sensor.InputFormat, fc.Sensor.InputFormat)
	setString(&cfg.Sensor.InputDevice, fc.Sensor.InputDevice)
	setInt(&cfg.Sensor.Width, fc.Sensor.Width)
	setInt(&cfg.Sensor.Height, fc.Sensor.Height)
	setInt(&cfg.Sensor.FrameRate, fc.Sensor.FrameRate)
	setString(&cfg.Sensor.RemoteURL, fc.Sensor.RemoteURL)

	setString(&cfg.Speech.Command, fc.Speech.Command)
	setString(&cfg.Speech.Voice, fc.Speech.Voice)
	setInt(&cfg.Speech.WordsPerMinute, fc.Speech.WordsPerMinute)
	setString(&cfg.Speech.ToneCommand, fc.Speech.ToneCommand)

	setString(&cfg.Layout.Path, fc.Layout.Path)
	setString(&cfg.Rules.Path, fc.Rules.Path)
	setInt(&cfg.Rules.IterationLimit, fc.Rules.IterationLimit)

	setString(&cfg.Email.Host, fc.Email.Host)
	setInt(&cfg.Email.Port, fc.Email.Port)
	setString(&cfg.Email.Username, fc.Email.Username)
	setString(&cfg.Email.From, fc.Email.From)
	setString(&cfg.Email.Signature, fc.Email.Signature)
	setString(&cfg.Email.Footer, fc.Email.Footer)
	setString(&cfg.Email.TLS, fc.Email.TLS)
	if len(fc.Email.Recipients) > 0 {
		cfg.Email.Recipients = fc.Email.Recipients
	}

	setString(&cfg.Log.Level, fc.Log.Level)
	return true, nil
}

func applyEnv(cfg *Config) {
	cfg.Scan.ScanSpeed = envOrDefaultMillis("COMMBOARD_SCAN_SPEED_MS", cfg.Scan.ScanSpeed)
	cfg.Scan.Sound = envOrDefaultBool("COMMBOARD_SOUND", cfg.Scan.Sound)
	cfg.Scan.ShortSignal = envOrDefaultMillis("COMMBOARD_SHORT_SIGNAL_MS", cfg.Scan.ShortSignal)
	cfg.Scan.LongSignal = envOrDefaultMillis("COMMBOARD_LONG_SIGNAL_MS", cfg.Scan.LongSignal)
	cfg.Scan.LoopLimit = envOrDefaultInt("COMMBOARD_LOOP_LIMIT", cfg.Scan.LoopLimit)
	cfg.Scan.MinConsecutive = envOrDefaultInt("COMMBOARD_MIN_CONSECUTIVE", cfg.Scan.MinConsecutive)

	cfg.Sensor.Kind = strings.ToLower(envOrDefault("COMMBOARD_SENSOR", cfg.Sensor.Kind))
	cfg.Sensor.FFMPEGCommand = envOrDefault("COMMBOARD_FFMPEG_COMMAND", cfg.Sensor.FFMPEGCommand)
	cfg.Sensor.InputFormat = envOrDefault("COMMBOARD_CAMERA_FORMAT", cfg.Sensor.InputFormat)
	cfg.Sensor.InputDevice = envOrDefault("COMMBOARD_CAMERA_DEVICE", cfg.Sensor.InputDevice)
	cfg.Sensor.Width = envOrDefaultInt("COMMBOARD_CAMERA_WIDTH", cfg.Sensor.Width)
	cfg.Sensor.Height = envOrDefaultInt("COMMBOARD_CAMERA_HEIGHT", cfg.Sensor.Height)
	cfg.Sensor.FrameRate = envOrDefaultInt("COMMBOARD_CAMERA_FPS", cfg.Sensor.FrameRate)
	cfg.Sensor.RemoteURL = envOrDefault("COMMBOARD_DETECTOR_URL", cfg.Sensor.RemoteURL)
	cfg.Sensor.RemoteToken = envOrDefault("COMMBOARD_DETECTOR_TOKEN", cfg.Sensor.RemoteToken)

	cfg.Speech.Command = envOrDefault("COMMBOARD_ESPEAK_COMMAND", cfg.Speech.Command)
	cfg.Speech.Voice = envOrDefault("COMMBOARD_VOICE", cfg.Speech.Voice)
	cfg.Speech.WordsPerMinute = envOrDefaultInt("COMMBOARD_SPEECH_WPM", cfg.Speech.WordsPerMinute)
	cfg.Speech.ToneCommand = envOrDefault("COMMBOARD_FFPLAY_COMMAND", cfg.Speech.ToneCommand)

	cfg.Layout.Path = envOrDefault("COMMBOARD_LAYOUT_FILE", cfg.Layout.Path)
	cfg.Rules.Path = envOrDefault("COMMBOARD_RULES_FILE", cfg.Rules.Path)
	cfg.Rules.IterationLimit = envOrDefaultInt("COMMBOARD_RULE_ITERATION_LIMIT", cfg.Rules.IterationLimit)

	cfg.Email.Host = envOrDefault("COMMBOARD_SMTP_HOST", cfg.Email.Host)
	cfg.Email.Port = envOrDefaultInt("COMMBOARD_SMTP_PORT", cfg.Email.Port)
	cfg.Email.Username = envOrDefault("COMMBOARD_SMTP_USERNAME", cfg.Email.Username)
	cfg.Email.Password = envOrDefault("COMMBOARD_SMTP_PASSWORD", cfg.Email.Password)
	cfg.Email.From = firstNonEmpty(os.Getenv("COMMBOARD_SMTP_FROM"), cfg.Email.From, cfg.Email.Username)
	cfg.Email.Signature = envOrDefault("COMMBOARD_EMAIL_SIGNATURE", cfg.Email.Signature)
	cfg.Email.Footer = envOrDefault("COMMBOARD_EMAIL_FOOTER", cfg.Email.Footer)
	cfg.Email.TLS = strings.ToLower(envOrDefault("COMMBOARD_SMTP_TLS", cfg.Email.TLS))
	if raw := strings.TrimSpace(os.Getenv("COMMBOARD_RECIPIENTS")); raw != "" {
		cfg.Email.Recipients = parseRecipients(raw)
	}

	cfg.Wordnik.APIKey = envOrDefault("WORDNIK_API_KEY", cfg.Wordnik.APIKey)
	cfg.Wordnik.APIBaseURL = envOrDefault("WORDNIK_API_BASE", cfg.Wordnik.APIBaseURL)
	cfg.Wordnik.MinCorpusCount = envOrDefaultInt("WORDNIK_MIN_CORPUS_COUNT", cfg.Wordnik.MinCorpusCount)

	cfg.Log.Level = strings.ToLower(envOrDefault("COMMBOARD_LOG_LEVEL", cfg.Log.Level))
}

// normalize clamps out-of-range values back to defaults and rejects settings
// that cannot be repaired.
func normalize(cfg *Config) error {
	base := defaults("")
	if cfg.Scan.ScanSpeed < 0 {
		cfg.Scan.ScanSpeed = 0
	}
	if cfg.Scan.ScanSpeed > maxScanSpeed {
		cfg.Scan.ScanSpeed = maxScanSpeed
	}
	if cfg.Scan.ShortSignal <= 0 {
		cfg.Scan.ShortSignal = base.Scan.ShortSignal
	}
	if cfg.Scan.LongSignal <= cfg.Scan.ShortSignal {
		cfg.Scan.ShortSignal = base.Scan.ShortSignal
		cfg.Scan.LongSignal = base.Scan.LongSignal
	}
	if cfg.Scan.LoopLimit <= 0 {
		cfg.Scan.LoopLimit = base.Scan.LoopLimit
	}
	if cfg.Scan.MinConsecutive <= 0 {
		cfg.Scan.MinConsecutive = base.Scan.MinConsecutive
	}
	if cfg.Sensor.Width <= 0 || cfg.Sensor.Height <= 0 {
		cfg.Sensor.Width = base.Sensor.Width
		cfg.Sensor.Height = base.Sensor.Height
	}
	if cfg.Sensor.FrameRate <= 0 {
		cfg.Sensor.FrameRate = base.Sensor.FrameRate
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = base.Rules.IterationLimit
	}
	if cfg.Email.Port <= 0 {
		cfg.Email.Port = base.Email.Port
	}
	if cfg.Wordnik.MinCorpusCount <= 0 {
		cfg.Wordnik.MinCorpusCount = base.Wordnik.MinCorpusCount
	}

	switch cfg.Sensor.Kind {
	case SensorKeyboard, SensorCamera, SensorRemote:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSensor, cfg.Sensor.Kind)
	}
	return nil
}

// parseRecipients reads "Mom=mom@example.com;Dad=dad@example.com dad@work.example".
func parseRecipients(raw string) []Recipient {
	var out []Recipient
	for _, entry := range strings.Split(raw, ";") {
		name, addresses, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		fields := strings.Fields(strings.ReplaceAll(addresses, ",", " "))
		if name == "" || len(fields) == 0 {
			continue
		}
		out = append(out, Recipient{Name: name, Addresses: fields})
	}
	return out
}

func setString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func setInt(dst *int, value int) {
	if value != 0 {
		*dst = value
	}
}

func setDuration(dst *time.Duration, millis int) {
	if millis != 0 {
		*dst = time.Duration(millis) * time.Millisecond
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
