// Package pins describes the addressable I/O positions of a board: their
// static hardware descriptors, the modes they support, and the mutable
// per-position state the board layer keeps at runtime.
package pins

import (
	"fmt"
	"strings"
)

// Mode is the operational role assigned to a pin. Values follow the
// Firmata numbering used by host frameworks.
type Mode int

const (
	ModeInput   Mode = 0
	ModeOutput  Mode = 1
	ModeAnalog  Mode = 2
	ModePWM     Mode = 3
	ModeServo   Mode = 4
	ModeUnknown Mode = 99
)

var modeNames = map[Mode]string{
	ModeInput:   "INPUT",
	ModeOutput:  "OUTPUT",
	ModeAnalog:  "ANALOG",
	ModePWM:     "PWM",
	ModeServo:   "SERVO",
	ModeUnknown: "UNKNOWN",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a mode name such as "input" or "ANALOG" to a Mode.
func ParseMode(s string) (Mode, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == want {
			return m, nil
		}
	}
	return ModeUnknown, fmt.Errorf("unknown mode %q", s)
}
