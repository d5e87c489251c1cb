package scan

import "time"

type dwellOutcome int

const (
	dwellNoise dwellOutcome = iota
	dwellConfirm
	dwellAbort
)

func (o dwellOutcome) String() string {
	switch o {
	case dwellConfirm:
		return "confirm"
	case dwellAbort:
		return "abort"
	default:
		return "noise"
	}
}

// classifyDwell maps a gaze duration onto [0, short) noise, [short, long)
// confirm and [long, ∞) abort.
func classifyDwell(elapsed, short, long time.Duration) dwellOutcome {
	switch {
	case elapsed < short:
		return dwellNoise
	case elapsed < long:
		return dwellConfirm
	default:
		return dwellAbort
	}
}
