package domain

// ScannerState models the orchestrator lifecycle.
type ScannerState string

const (
	ScannerStateIdle      ScannerState = "idle"
	ScannerStateListening ScannerState = "listening"
	ScannerStateScanning  ScannerState = "scanning"
)

// ScannerStateReason provides a structured reason for state transitions.
type ScannerStateReason string

const (
	ScannerReasonReady         ScannerStateReason = "ready"
	ScannerReasonStarted       ScannerStateReason = "started"
	ScannerReasonLongSignal    ScannerStateReason = "long_signal"
	ScannerReasonScanFinished  ScannerStateReason = "scan_finished"
	ScannerReasonRunToggled    ScannerStateReason = "run_toggled"
	ScannerReasonStopRequested ScannerStateReason = "stop_requested"
)

// DetectorMode controls how often the attention sensor is sampled.
type DetectorMode string

const (
	DetectorModeIdle      DetectorMode = "idle"
	DetectorModeListening DetectorMode = "listening"
	DetectorModeScanning  DetectorMode = "scanning"
)

// AttendingState is the debounced classification of the attention signal.
type AttendingState string

const (
	AttendingStateResting   AttendingState = "resting"
	AttendingStateAttending AttendingState = "attending"
)

// TextCategory tells the buffer how a piece of emitted text should be written.
type TextCategory string

const (
	TextCategoryLetter              TextCategory = "letter"
	TextCategorySpace               TextCategory = "space"
	TextCategoryWord                TextCategory = "word"
	TextCategoryPunctuation         TextCategory = "punctuation"
	TextCategoryTerminalPunctuation TextCategory = "terminal_punctuation"
)

// BufferAction names an editing action the buffer can perform.
type BufferAction string

const (
	BufferActionDelete BufferAction = "delete"
	BufferActionClear  BufferAction = "clear"
	BufferActionRead   BufferAction = "read"
)

// ErrorCode identifies non-fatal backend errors reported to the user.
type ErrorCode string

const (
	ErrorCodeStartup   ErrorCode = "startup"
	ErrorCodeSensor    ErrorCode = "sensor"
	ErrorCodeSpeech    ErrorCode = "speech"
	ErrorCodeTone      ErrorCode = "tone"
	ErrorCodeEmail     ErrorCode = "email"
	ErrorCodeGuess     ErrorCode = "guess"
	ErrorCodeBuffer    ErrorCode = "buffer"
	ErrorCodeLayout    ErrorCode = "layout"
	ErrorCodeInvariant ErrorCode = "invariant"
)

// Status summarizes the current runtime status.
type Status struct {
	State     ScannerState   `json:"state"`
	Attention AttendingState `json:"attention"`
	RunID     string         `json:"runId,omitempty"`
	Menu      string         `json:"menu,omitempty"`
	Item      string         `json:"item,omitempty"`
	Message   string         `json:"message,omitempty"`
}
