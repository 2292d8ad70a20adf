package board

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sweeney/odroid-io/internal/pins"
)

// Activator brings up the capability backing a mode on one pin. It must
// leave s untouched when it fails.
type Activator func(hw Hardware, d pins.Descriptor, s *pins.State) error

// Writer drives a pin that is already in the matching mode.
type Writer func(d pins.Descriptor, s *pins.State, value int) error

// Ranger performs one ultrasonic trigger/echo sequence and returns the
// echo time in microseconds.
type Ranger interface {
	Range(ctx context.Context, d pins.Descriptor) (int, error)
}

// RangerFunc adapts a function to Ranger.
type RangerFunc func(ctx context.Context, d pins.Descriptor) (int, error)

func (f RangerFunc) Range(ctx context.Context, d pins.Descriptor) (int, error) {
	return f(ctx, d)
}

// Capabilities is a board's lookup table from operations to the code that
// backs them. A different board supplies a different table.
type Capabilities struct {
	Modes      map[pins.Mode]Activator
	PWMWrite   Writer
	ServoWrite Writer
	PullUp     func(d pins.Descriptor, s *pins.State) error
	PullDown   func(d pins.Descriptor, s *pins.State) error
	Ranger     Ranger
}

// OdroidC2 returns the capability table of the ODROID-C2. The board has
// no PWM, servo, pull resistor or ranging support.
func OdroidC2() Capabilities {
	return Capabilities{
		Modes: map[pins.Mode]Activator{
			pins.ModeInput:  ActivateInput,
			pins.ModeOutput: ActivateOutput,
			pins.ModeAnalog: ActivateAnalog,
			pins.ModePWM:    activateNothing,
			pins.ModeServo:  unsupportedActivation("SERVO mode"),
		},
		PWMWrite:   unsupportedWrite("pwmWrite"),
		ServoWrite: unsupportedWrite("servoWrite"),
		PullUp:     unsupportedPull("enable pull-up resistor"),
		PullDown:   unsupportedPull("enable pull-down resistor"),
		Ranger: RangerFunc(func(context.Context, pins.Descriptor) (int, error) {
			return 0, &UnsupportedOperationError{Op: "pingRead"}
		}),
	}
}

// ActivateInput requests the pin's GPIO line as an input.
func ActivateInput(hw Hardware, d pins.Descriptor, s *pins.State) error {
	if d.GPIO < 0 {
		return &UnsupportedOperationError{Op: "INPUT without a GPIO line"}
	}
	l, err := hw.GPIO.OpenInput(d.GPIO)
	if err != nil {
		return errors.Wrapf(err, "pin %d: open input", d.Position)
	}
	s.Line = l
	return nil
}

// ActivateOutput opens the pin's LED if it has one, otherwise requests
// its GPIO line as an output.
func ActivateOutput(hw Hardware, d pins.Descriptor, s *pins.State) error {
	if d.IsLED() {
		l, err := hw.LEDs.Open(d.LEDPath)
		if err != nil {
			return errors.Wrapf(err, "pin %d: open led", d.Position)
		}
		s.LED = l
		return nil
	}
	if d.GPIO < 0 {
		return &UnsupportedOperationError{Op: "OUTPUT without a GPIO line"}
	}
	l, err := hw.GPIO.OpenOutput(d.GPIO)
	if err != nil {
		return errors.Wrapf(err, "pin %d: open output", d.Position)
	}
	s.Line = l
	return nil
}

// ActivateAnalog accepts pins with an analog channel; channels are read
// lazily by the report loop.
func ActivateAnalog(hw Hardware, d pins.Descriptor, s *pins.State) error {
	if d.AnalogChannel < 0 {
		return &UnsupportedModeError{Position: d.Position, Mode: pins.ModeAnalog}
	}
	return nil
}

func activateNothing(Hardware, pins.Descriptor, *pins.State) error { return nil }

func unsupportedActivation(op string) Activator {
	return func(Hardware, pins.Descriptor, *pins.State) error {
		return &UnsupportedOperationError{Op: op}
	}
}

func unsupportedWrite(op string) Writer {
	return func(pins.Descriptor, *pins.State, int) error {
		return &UnsupportedOperationError{Op: op}
	}
}

func unsupportedPull(op string) func(pins.Descriptor, *pins.State) error {
	return func(pins.Descriptor, *pins.State) error {
		return &UnsupportedOperationError{Op: op}
	}
}
